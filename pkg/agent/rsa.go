package agent

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"fmt"

	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// RSASigner wraps any crypto.Signer backed by an RSA key (a decoded
// key file, or an HSM-resident key) and produces "ssh-rsa" signature
// blobs: SHA-1 digest with PKCS#1 v1.5 padding.
type RSASigner struct {
	signer crypto.Signer
}

func (s *RSASigner) Sign(msg []byte) ([]byte, error) {
	digest := sha1.Sum(msg)
	sig, err := s.signer.Sign(rand.Reader, digest[:], crypto.SHA1)
	if err != nil {
		return nil, err
	}
	return ssh.SerializeSignature(ssh.AlgorithmRSA, sig), nil
}

func NewRSASigner(signer crypto.Signer) (string, *RSASigner, error) {
	publicKey := signer.Public()
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return "", nil, fmt.Errorf("not an RSA key, type %T", publicKey)
	}
	return string(ssh.SerializeRSAPublicKey(pub)), &RSASigner{signer: signer}, nil
}
