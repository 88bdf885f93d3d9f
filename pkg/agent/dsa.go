package agent

import (
	"crypto/dsa"
	"crypto/rand"
	"crypto/sha1"

	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// DSASigner produces "ssh-dss" signature blobs: SHA-1 digest, with r
// and s each padded to 20 octets. crypto/dsa keys don't implement
// crypto.Signer, so the key is held directly.
type DSASigner struct {
	key *dsa.PrivateKey
}

func (s *DSASigner) Sign(msg []byte) ([]byte, error) {
	digest := sha1.Sum(msg)
	r, sv, err := dsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, err
	}
	return ssh.SerializeDSASignatureValues(r, sv)
}

func NewDSASigner(key *dsa.PrivateKey) (string, *DSASigner) {
	return string(ssh.SerializeDSAPublicKey(&key.PublicKey)), &DSASigner{key: key}
}
