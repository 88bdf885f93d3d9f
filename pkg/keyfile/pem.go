package keyfile

import (
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

const (
	labelRSA  = "RSA"
	labelDSA  = "DSA"
	labelSSH2 = "SSH2 ENCRYPTED"

	privateKeySuffix  = " PRIVATE KEY"
	procTypeHeader    = "Proc-Type"
	dekInfoHeader     = "DEK-Info"
	procTypeEncrypted = "4,ENCRYPTED"
)

// A matched text envelope. The BEGIN/END labels (which encoding/pem
// requires to be identical) are reduced to the short label in front
// of " PRIVATE KEY"; the base64 body is already decoded.
type container struct {
	label      string
	cipherName string // empty when the block carries no encryption headers
	salt       []byte // decoded DEK-Info salt; doubles as the IV
	body       []byte
}

func decodeContainer(ascii []byte) (*container, error) {
	block, _ := pem.Decode(ascii)
	if block == nil {
		return nil, ErrNotPrivateKey
	}
	if !strings.HasSuffix(block.Type, privateKeySuffix) {
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrNotPrivateKey, block.Type)
	}
	c := container{
		label: strings.TrimSuffix(block.Type, privateKeySuffix),
		body:  block.Bytes,
	}
	procType, ok := block.Headers[procTypeHeader]
	if !ok {
		if _, ok := block.Headers[dekInfoHeader]; ok {
			return nil, fmt.Errorf("%w: DEK-Info header without Proc-Type", ErrNotPrivateKey)
		}
		return &c, nil
	}
	if procType != procTypeEncrypted {
		return nil, fmt.Errorf("%w: unexpected Proc-Type %q", ErrNotPrivateKey, procType)
	}
	dekInfo, ok := block.Headers[dekInfoHeader]
	if !ok {
		return nil, fmt.Errorf("%w: missing DEK-Info header", ErrNotPrivateKey)
	}
	name, saltHex, ok := strings.Cut(dekInfo, ",")
	if !ok || len(name) == 0 {
		return nil, fmt.Errorf("%w: malformed DEK-Info %q", ErrNotPrivateKey, dekInfo)
	}
	// Odd-length hex is rejected here; the salt must decode to whole
	// bytes.
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad DEK-Info salt: %v", ErrNotPrivateKey, err)
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("%w: DEK-Info salt too short, %d bytes", ErrNotPrivateKey, len(salt))
	}
	c.cipherName = name
	c.salt = salt
	return &c, nil
}
