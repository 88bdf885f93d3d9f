package keyfile

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadPrivateKeyFileInteractive reads and decodes a key file. For an
// encrypted file, the passphrase is read from passphraseFileName when
// non-empty (surrounding whitespace stripped), and otherwise prompted
// for when stdin is a terminal. Decoding an encrypted file with no
// passphrase source fails with ErrPassphraseRequired.
func ReadPrivateKeyFileInteractive(fileName, passphraseFileName string) (*PrivateKeyFile, error) {
	ascii, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	encrypted, err := Encrypted(ascii)
	if err != nil {
		return nil, fmt.Errorf("parsing private key file %q failed: %w", fileName, err)
	}
	var passphrase []byte
	if encrypted {
		if len(passphraseFileName) > 0 {
			buf, err := os.ReadFile(passphraseFileName)
			if err != nil {
				return nil, fmt.Errorf("reading passphrase file %q failed: %v", passphraseFileName, err)
			}
			passphrase = bytes.TrimSpace(buf)
		} else if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintf(os.Stderr, "Enter passphrase for %q: ", fileName)
			passphrase, err = term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return nil, fmt.Errorf("reading passphrase failed: %v", err)
			}
		}
	}
	key, err := Parse(ascii, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parsing private key file %q failed: %w", fileName, err)
	}
	return key, nil
}
