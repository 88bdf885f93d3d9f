package agent

import (
	"fmt"

	"github.com/sshcompat/legacy-keys/pkg/keyfile"
	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// NewKeyFileSigner binds a decoded key file to a signer for its host
// algorithm. Returns the SSH public key blob (used as the agent map
// key) and the signer.
func NewKeyFileSigner(key *keyfile.PrivateKeyFile) (string, Signer, error) {
	switch key.Algorithm {
	case ssh.AlgorithmRSA:
		pub, signer, err := NewRSASigner(key.RSA)
		return pub, signer, err
	case ssh.AlgorithmDSA:
		pub, signer := NewDSASigner(key.DSA)
		return pub, signer, nil
	}
	return "", nil, fmt.Errorf("unsupported key algorithm %q", key.Algorithm)
}
