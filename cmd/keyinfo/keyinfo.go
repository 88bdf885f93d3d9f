package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/pborman/getopt/v2"

	"github.com/sshcompat/legacy-keys/pkg/agent"
	"github.com/sshcompat/legacy-keys/pkg/keyfile"
)

// Since we need to call os.Exit to pass an exit code, we need a
// simple main function without any defer.
func main() {
	status, err := mainWithStatus()
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(status)
}

func mainWithStatus() (int, error) {
	const usage = `
Decode a legacy private key file and print the corresponding public
key as an authorized_keys line: the host algorithm (ssh-rsa or
ssh-dss), the base64 public key blob, and an optional comment.

Supported formats are the traditional OpenSSL RSA and DSA PEM blocks,
optionally passphrase-encrypted, and the unencrypted ssh.com SSH2
container. For an encrypted file, the passphrase is read from the file
named by the --passphrase-file option, or prompted for when standard
input is a terminal.
`
	passphraseFile := ""
	comment := ""
	help := false

	set := getopt.New()
	set.SetParameters("key-file")
	set.SetUsage(func() { fmt.Print(usage) })
	set.FlagLong(&passphraseFile, "passphrase-file", 'p', "file with key file passphrase")
	set.FlagLong(&comment, "comment", 'C', "comment for the authorized_keys line")
	set.FlagLong(&help, "help", 'h', "Display help")

	err := set.Getopt(os.Args, nil)
	if err != nil {
		log.Printf("err: %v\n", err)
		set.PrintUsage(log.Writer())
		return 1, nil
	}

	if help {
		set.PrintUsage(os.Stdout)
		fmt.Print(usage)
		return 0, nil
	}

	if len(set.Args()) != 1 {
		return 0, fmt.Errorf("Exactly one key file argument must be provided.")
	}
	key, err := keyfile.ReadPrivateKeyFileInteractive(set.Args()[0], passphraseFile)
	if err != nil {
		return 0, err
	}
	pub, _, err := agent.NewKeyFileSigner(key)
	if err != nil {
		return 0, fmt.Errorf("Internal error: %v", err)
	}
	line := fmt.Sprintf("%s %s", key.Algorithm, base64.StdEncoding.EncodeToString([]byte(pub)))
	if len(comment) > 0 {
		line += " " + comment
	}
	fmt.Println(line)
	return 0, nil
}
