package keyfile

import "crypto/md5"

// The password-based key derivation historically used by OpenSSL for
// encrypted PEM bodies (EVP_BytesToKey with MD5 and iteration count
// 1): D_0 = MD5(passphrase || salt[:8]), D_i = MD5(D_{i-1} ||
// passphrase || salt[:8]), and the concatenation D_0 || D_1 || ... is
// truncated to the requested size. Only the first 8 bytes of the salt
// contribute, however long the DEK-Info salt is.
func deriveKey(passphrase, salt []byte, size int) []byte {
	salt = salt[:8]
	var key, digest []byte
	for len(key) < size {
		h := md5.New()
		h.Write(digest)
		h.Write(passphrase)
		h.Write(salt)
		digest = h.Sum(nil)
		key = append(key, digest...)
	}
	return key[:size]
}
