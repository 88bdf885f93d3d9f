package keyfile

import "errors"

// Decoding failures are terminal for the attempt; no partial key is
// ever returned alongside an error. The sentinels below classify the
// failure, and are wrapped with whatever context (cipher name, key
// type identifier) is safe to surface.
var (
	// The text envelope is not a well-formed private key block.
	ErrNotPrivateKey = errors.New("invalid private key file")

	// Encryption headers are present but no passphrase was given.
	ErrPassphraseRequired = errors.New("private key file is encrypted, passphrase required")

	// The declared cipher is not in the supported table.
	ErrUnsupportedCipher = errors.New("unsupported cipher")

	// The PEM label or SSH2 key type identifier is not recognized.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// The binary body is not an SSH2 private key container.
	ErrNotSSH2Key = errors.New("invalid SSH2 private key")

	// Decryption produced inconsistent data. There is no MAC in
	// either container format, so this signal is heuristic: bad
	// PKCS#7 padding on the PEM path, a failed length self-check on
	// the SSH2 path.
	ErrInvalidPassphrase = errors.New("invalid passphrase")

	// The container decoded, but the key material inside violates a
	// structural invariant.
	ErrInvalidKey = errors.New("invalid private key")
)
