package keyfile

import (
	"crypto/dsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// PrivateKeyFile is the result of decoding a key file: exactly one of
// RSA and DSA is non-nil, and Algorithm is the SSH host algorithm the
// key is bound to (ssh.AlgorithmRSA or ssh.AlgorithmDSA).
type PrivateKeyFile struct {
	Algorithm string
	RSA       *rsa.PrivateKey
	DSA       *dsa.PrivateKey
}

// Assembles an RSA key from its components and validates it. The CRT
// coefficient u, when non-nil, must equal q^-1 mod p for the given
// prime binding; a mismatch means the components are inconsistent and
// the key is rejected.
func newRSAPrivateKey(n, e, d, p, q, u *big.Int) (*PrivateKeyFile, error) {
	if e.Sign() <= 0 || e.BitLen() > 31 {
		return nil, fmt.Errorf("%w: unusable RSA public exponent", ErrInvalidKey)
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key.Precompute()
	if u != nil && key.Precomputed.Qinv.Cmp(u) != 0 {
		return nil, fmt.Errorf("%w: CRT coefficient does not match the primes", ErrInvalidKey)
	}
	return &PrivateKeyFile{Algorithm: ssh.AlgorithmRSA, RSA: key}, nil
}

func newDSAPrivateKey(p, q, g, y, x *big.Int) (*PrivateKeyFile, error) {
	for _, v := range []*big.Int{p, q, g, y, x} {
		if v.Sign() <= 0 {
			return nil, fmt.Errorf("%w: non-positive DSA component", ErrInvalidKey)
		}
	}
	if x.Cmp(q) >= 0 {
		return nil, fmt.Errorf("%w: DSA private value out of range", ErrInvalidKey)
	}
	// The public value must match the private exponent.
	if new(big.Int).Exp(g, x, p).Cmp(y) != 0 {
		return nil, fmt.Errorf("%w: DSA public value does not match private exponent", ErrInvalidKey)
	}
	key := &dsa.PrivateKey{
		PublicKey: dsa.PublicKey{
			Parameters: dsa.Parameters{P: p, Q: q, G: g},
			Y:          y,
		},
		X: x,
	}
	return &PrivateKeyFile{Algorithm: ssh.AlgorithmDSA, DSA: key}, nil
}

// Body of a "RSA PRIVATE KEY" block: PKCS#1, as emitted by
// traditional OpenSSL. Validation and CRT precomputation happen in
// the x509 parser.
func parseRSAPrivateKey(der []byte) (*PrivateKeyFile, error) {
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PrivateKeyFile{Algorithm: ssh.AlgorithmRSA, RSA: key}, nil
}

// Body of a "DSA PRIVATE KEY" block, as emitted by traditional
// OpenSSL:
//
//	DSAPrivateKey ::= SEQUENCE {
//	    version INTEGER,
//	    p INTEGER, q INTEGER, g INTEGER,
//	    pub_key INTEGER, priv_key INTEGER
//	}
type dsaASN1Key struct {
	Version int
	P, Q, G *big.Int
	Y, X    *big.Int
}

func parseDSAPrivateKey(der []byte) (*PrivateKeyFile, error) {
	var k dsaASN1Key
	rest, err := asn1.Unmarshal(der, &k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing %d bytes after DSA key", ErrInvalidKey, len(rest))
	}
	if k.Version != 0 {
		return nil, fmt.Errorf("%w: unsupported DSA key version %d", ErrInvalidKey, k.Version)
	}
	return newDSAPrivateKey(k.P, k.Q, k.G, k.Y, k.X)
}
