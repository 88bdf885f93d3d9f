package hsm

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"fmt"
	"io"
	"math/big"

	"github.com/certusone/yubihsm-go"
	"github.com/certusone/yubihsm-go/commands"
	"github.com/certusone/yubihsm-go/connector"
)

// The yubihsm2 algorithm identifiers for RSA keys, mapped to the
// modulus size the device reports the public key with. yubihsm-go
// does not name these, so the raw values are used.
var rsaModulusSize = map[commands.Algorithm]int{
	9:  2048 / 8, // rsa2048
	10: 3072 / 8, // rsa3072
	11: 4096 / 8, // rsa4096
}

// A yubihsm2-resident RSA key exposed as a crypto.Signer. Signatures
// are PKCS#1 v1.5 over a SHA-1 digest, matching what the "ssh-rsa"
// host algorithm needs.
type YubiHSMSigner struct {
	session   *yubihsm.SessionManager
	keyId     uint16
	publicKey *rsa.PublicKey
}

func NewYubiHSMSigner(conn string /* host:port */, authId uint16, authPassword string, keyId uint16) (*YubiHSMSigner, error) {
	sess, err := yubihsm.NewSessionManager(connector.NewHTTPConnector(conn), authId, authPassword)
	if err != nil {
		return nil, err
	}
	pub, err := getRSAPublicKey(sess, keyId)
	if err != nil {
		return nil, err
	}

	return &YubiHSMSigner{session: sess, keyId: keyId, publicKey: pub}, nil
}

func (hsm *YubiHSMSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts != nil && opts.HashFunc() != crypto.SHA1 {
		return nil, fmt.Errorf("unsupported digest %v, only SHA-1 is supported", opts.HashFunc())
	}
	if len(digest) != sha1.Size {
		return nil, fmt.Errorf("unexpected digest size %d", len(digest))
	}
	signature, err := sign(hsm.session, hsm.keyId, digest)
	if err != nil {
		return nil, err
	}
	// Check that the signature is valid: an invalid signature could
	// be a sign of a fault attack on the HSM, and leak information
	// about the private key.
	if err := rsa.VerifyPKCS1v15(hsm.publicKey, crypto.SHA1, digest, signature); err != nil {
		return nil, fmt.Errorf("invalid signature from the hsm: %v", err)
	}
	return signature, nil
}

func (hsm *YubiHSMSigner) Public() crypto.PublicKey {
	return hsm.publicKey
}

// Close closes the connection to the HSM
func (hsm *YubiHSMSigner) Close() {
	hsm.session.Destroy()
}

func getRSAPublicKey(session *yubihsm.SessionManager, keyID uint16) (*rsa.PublicKey, error) {
	command, err := commands.CreateGetPubKeyCommand(keyID)
	if err != nil {
		return nil, err
	}
	resp, err := session.SendEncryptedCommand(command)
	if err != nil {
		return nil, err
	}
	respCmd, matched := resp.(*commands.GetPubKeyResponse)
	if !matched {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	size, ok := rsaModulusSize[respCmd.Algorithm]
	if !ok || len(respCmd.KeyData) != size {
		return nil, fmt.Errorf("unexpected key type, alg %d, size %d", respCmd.Algorithm, len(respCmd.KeyData))
	}
	// The device returns the modulus; the public exponent of
	// generated keys is fixed.
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(respCmd.KeyData),
		E: 65537,
	}, nil
}

func sign(session *yubihsm.SessionManager, keyID uint16, digest []byte) ([]byte, error) {
	command, err := commands.CreateSignDataPkcs1Command(keyID, digest)
	if err != nil {
		return nil, err
	}
	resp, err := session.SendEncryptedCommand(command)
	if err != nil {
		return nil, err
	}
	respCmd, matched := resp.(*commands.SignDataPkcs1Response)
	if !matched {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	return respCmd.Signature, nil
}
