package ssh

import (
	"bytes"
	"crypto/dsa"
	"crypto/rsa"
	"fmt"
	"math/big"
)

const (
	AlgorithmRSA = "ssh-rsa"
	AlgorithmDSA = "ssh-dss"
)

// Serializes a non-negative big integer as an ssh mpint: big-endian,
// minimal length, with an extra leading zero octet when the most
// significant bit of the first octet is set.
func SerializeBigInt(n *big.Int) []byte {
	if n.Sign() < 0 {
		panic("negative numbers can not occur in ssh key material")
	}
	if n.Sign() == 0 {
		return SerializeUint32(0)
	}
	mag := n.Bytes()
	if mag[0]&0x80 != 0 {
		mag = append([]byte{0}, mag...)
	}
	return SerializeString(mag)
}

// Returns the "ssh-rsa" public key blob (without outer length field).
func SerializeRSAPublicKey(pub *rsa.PublicKey) []byte {
	return bytes.Join([][]byte{
		SerializeString(AlgorithmRSA),
		SerializeBigInt(big.NewInt(int64(pub.E))),
		SerializeBigInt(pub.N)},
		nil)
}

// Returns the "ssh-dss" public key blob (without outer length field).
func SerializeDSAPublicKey(pub *dsa.PublicKey) []byte {
	return bytes.Join([][]byte{
		SerializeString(AlgorithmDSA),
		SerializeBigInt(pub.P),
		SerializeBigInt(pub.Q),
		SerializeBigInt(pub.G),
		SerializeBigInt(pub.Y)},
		nil)
}

// Wraps a raw signature in an SSH signature blob (without outer
// length field).
func SerializeSignature(algorithm string, raw []byte) []byte {
	return bytes.Join([][]byte{
		SerializeString(algorithm),
		SerializeString(raw)},
		nil)
}

// The raw signature in an "ssh-dss" blob is r and s, each left-padded
// to exactly 20 octets.
func SerializeDSASignatureValues(r, s *big.Int) ([]byte, error) {
	blob := make([]byte, 40)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	if len(rBytes) > 20 || len(sBytes) > 20 {
		return nil, fmt.Errorf("dsa signature values too large, %d and %d bytes", len(rBytes), len(sBytes))
	}
	copy(blob[20-len(rBytes):20], rBytes)
	copy(blob[40-len(sBytes):], sBytes)
	return SerializeSignature(AlgorithmDSA, blob), nil
}
