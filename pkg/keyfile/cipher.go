package keyfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

type decryptFunc func(key, iv, ciphertext []byte) ([]byte, error)

type cipherSpec struct {
	keySize int // in bytes
	decrypt decryptFunc
}

// The ciphers that may appear in a DEK-Info header. The table is
// never mutated after initialization, so lookups need no
// synchronization.
var pemCipherTable = map[string]cipherSpec{
	"DES-EDE3-CBC": {24, cbcDecrypt(des.NewTripleDESCipher)},
	"DES-EDE3-CFB": {24, cfbDecrypt(des.NewTripleDESCipher)},
	"DES-CBC":      {8, cbcDecrypt(des.NewCipher)},
	"AES-128-CBC":  {16, cbcDecrypt(aes.NewCipher)},
	"AES-192-CBC":  {24, cbcDecrypt(aes.NewCipher)},
	"AES-256-CBC":  {32, cbcDecrypt(aes.NewCipher)},
}

func cbcDecrypt(newCipher func([]byte) (cipher.Block, error)) decryptFunc {
	return func(key, iv, ciphertext []byte) ([]byte, error) {
		block, err := newCipher(key)
		if err != nil {
			return nil, err
		}
		if len(iv) != block.BlockSize() {
			return nil, fmt.Errorf("%w: IV size %d does not match block size %d",
				ErrNotPrivateKey, len(iv), block.BlockSize())
		}
		if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
			return nil, fmt.Errorf("%w: ciphertext size %d is not a multiple of the block size",
				ErrNotPrivateKey, len(ciphertext))
		}
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
		return removePadding(plaintext, block.BlockSize())
	}
}

func cfbDecrypt(newCipher func([]byte) (cipher.Block, error)) decryptFunc {
	return func(key, iv, ciphertext []byte) ([]byte, error) {
		block, err := newCipher(key)
		if err != nil {
			return nil, err
		}
		if len(iv) != block.BlockSize() {
			return nil, fmt.Errorf("%w: IV size %d does not match block size %d",
				ErrNotPrivateKey, len(iv), block.BlockSize())
		}
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, ciphertext)
		return removePadding(plaintext, block.BlockSize())
	}
}

// Strips PKCS#7 padding. Neither container format carries a MAC, so
// decrypting with a key derived from a wrong passphrase produces
// garbage, and inconsistent padding is where that usually surfaces.
func removePadding(plaintext []byte, blockSize int) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidPassphrase)
	}
	n := int(plaintext[len(plaintext)-1])
	if n == 0 || n > blockSize || n > len(plaintext) {
		return nil, fmt.Errorf("%w: inconsistent padding", ErrInvalidPassphrase)
	}
	for _, b := range plaintext[len(plaintext)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrInvalidPassphrase)
		}
	}
	return plaintext[:len(plaintext)-n], nil
}
