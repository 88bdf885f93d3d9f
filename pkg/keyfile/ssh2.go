package keyfile

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// The binary container used by the ssh.com SSH2 implementation: a
// fixed magic, an advisory total length, the key type and cipher name
// as length-prefixed strings, and a length-prefixed payload whose
// integers carry an explicit bit count.

const ssh2Magic = 0x3f6ff9eb

const (
	ssh2KeyTypeRSA = "if-modn{sign{rsa-pkcs1-sha1},encrypt{rsa-pkcs1v2-oaep}}"
	ssh2KeyTypeDSA = "dl-modp{sign{dsa-nist-sha1},dh{plain}}"
	ssh2CipherNone = "none"

	// Caps on variable-size header fields; real identifiers are tiny.
	ssh2MaxFieldSize = 256
	ssh2MaxKeyBits   = 65536
)

var ssh2KeyReaders = map[string]func(io.Reader) (*PrivateKeyFile, error){
	ssh2KeyTypeRSA: readSSH2RSAKey,
	ssh2KeyTypeDSA: readSSH2DSAKey,
}

func parseSSH2PrivateKey(blob []byte) (*PrivateKeyFile, error) {
	r := bytes.NewReader(blob)
	magic, err := ssh.ReadUint32(r)
	if err != nil || magic != ssh2Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrNotSSH2Key)
	}
	// The total length field is advisory only; it is not
	// cross-checked against the actual container size.
	if _, err := ssh.ReadUint32(r); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrNotSSH2Key)
	}
	keyType, err := ssh.ReadString(r, ssh2MaxFieldSize)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key type field: %v", ErrNotSSH2Key, err)
	}
	cipherName, err := ssh.ReadString(r, ssh2MaxFieldSize)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cipher field: %v", ErrNotSSH2Key, err)
	}
	blobSize, err := ssh.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrNotSSH2Key)
	}
	// Bound by what is actually present, before allocating anything.
	if int64(blobSize) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: payload size %d exceeds remaining %d bytes",
			ErrNotSSH2Key, blobSize, r.Len())
	}
	if string(cipherName) != ssh2CipherNone {
		// Decryption of the inner payload is not implemented; only
		// unencrypted payloads are accepted.
		return nil, fmt.Errorf("%w: SSH2 inner cipher %q", ErrUnsupportedCipher, cipherName)
	}
	payload, err := ssh.ReadBytes(r, int(blobSize))
	if err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrNotSSH2Key)
	}
	pr := bytes.NewReader(payload)
	decryptedLength, err := ssh.ReadUint32(pr)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrNotSSH2Key)
	}
	// The container carries no MAC. A payload decrypted with a wrong
	// key, or a tampered one, is detected only by this length
	// coincidence.
	if uint64(decryptedLength)+4 != uint64(blobSize) {
		return nil, fmt.Errorf("%w: payload self-check failed", ErrInvalidPassphrase)
	}
	readKey, ok := ssh2KeyReaders[string(keyType)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedKeyType, keyType)
	}
	return readKey(pr)
}

// Reads an SSH2 big integer: a 32-bit bit count followed by
// ceil(bits/8) big-endian magnitude bytes. The value is a magnitude;
// the result is non-negative even when the top bit is set.
func readBigIntBits(r io.Reader) (*big.Int, error) {
	bits, err := ssh.ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if bits > ssh2MaxKeyBits {
		return nil, fmt.Errorf("bit count %d exceeds max %d", bits, ssh2MaxKeyBits)
	}
	buf, err := ssh.ReadBytes(r, int((bits+7)/8))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(buf), nil
}

// Field order in the container is e, d, n, u, then the two primes.
// The primes are stored under the labels "p" and "q", but the stored
// values follow the opposite convention: the first is the key's q,
// the second the key's p. With that binding, u is the CRT coefficient
// q^-1 mod p, which newRSAPrivateKey verifies.
func readSSH2RSAKey(r io.Reader) (*PrivateKeyFile, error) {
	var e, d, n, u, wireP, wireQ *big.Int
	for _, dst := range []**big.Int{&e, &d, &n, &u, &wireP, &wireQ} {
		v, err := readBigIntBits(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated RSA key material: %v", ErrInvalidKey, err)
		}
		*dst = v
	}
	return newRSAPrivateKey(n, e, d, wireQ, wireP, u)
}

func readSSH2DSAKey(r io.Reader) (*PrivateKeyFile, error) {
	marker, err := ssh.ReadUint32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated DSA key material: %v", ErrInvalidKey, err)
	}
	if marker != 0 {
		return nil, fmt.Errorf("%w: unexpected DSA marker %d", ErrInvalidKey, marker)
	}
	var p, g, q, y, x *big.Int
	for _, dst := range []**big.Int{&p, &g, &q, &y, &x} {
		v, err := readBigIntBits(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated DSA key material: %v", ErrInvalidKey, err)
		}
		*dst = v
	}
	return newDSAPrivateKey(p, q, g, y, x)
}
