// Package keyfile decodes legacy SSH private key files: traditional
// OpenSSL RSA and DSA PEM blocks, optionally encrypted with the old
// MD5-based PEM scheme (Proc-Type/DEK-Info headers), and the
// "SSH2 ENCRYPTED" binary container used by the ssh.com
// implementation.
//
// Decoding is synchronous and terminal: it either produces one key
// bound to its SSH host algorithm, or fails with one of the sentinel
// errors in errors.go. Neither format is authenticated, so a wrong
// passphrase is detected heuristically, not cryptographically.
package keyfile

import (
	"fmt"
	"os"
)

// Dispatch on the label in front of " PRIVATE KEY". Labels outside
// this table are rejected rather than sniffed.
var keyParsers = map[string]func([]byte) (*PrivateKeyFile, error){
	labelRSA:  parseRSAPrivateKey,
	labelDSA:  parseDSAPrivateKey,
	labelSSH2: parseSSH2PrivateKey,
}

// Parse decodes a private key file. The passphrase may be nil for
// unencrypted files; for encrypted files a missing passphrase fails
// with ErrPassphraseRequired rather than attempting an empty one.
func Parse(ascii, passphrase []byte) (*PrivateKeyFile, error) {
	c, err := decodeContainer(ascii)
	if err != nil {
		return nil, err
	}
	body := c.body
	if len(c.cipherName) > 0 {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		spec, ok := pemCipherTable[c.cipherName]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnsupportedCipher, c.cipherName)
		}
		key := deriveKey(passphrase, c.salt, spec.keySize)
		// The full salt doubles as the IV.
		body, err = spec.decrypt(key, c.salt, body)
		if err != nil {
			return nil, err
		}
	}
	parse, ok := keyParsers[c.label]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedKeyType, c.label)
	}
	return parse(body)
}

// Encrypted reports whether the file declares PEM-level encryption,
// without decoding the key. Callers use it to decide whether to ask
// for a passphrase.
func Encrypted(ascii []byte) (bool, error) {
	c, err := decodeContainer(ascii)
	if err != nil {
		return false, err
	}
	return len(c.cipherName) > 0, nil
}

// ReadPrivateKeyFile reads and decodes a key file.
func ReadPrivateKeyFile(fileName string, passphrase []byte) (*PrivateKeyFile, error) {
	ascii, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	key, err := Parse(ascii, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parsing private key file %q failed: %w", fileName, err)
	}
	return key, nil
}
