package keyfile

import (
	"bytes"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"

	"github.com/sshcompat/legacy-keys/pkg/ssh"
)

// An SSH2 big integer: 32-bit bit count, then ceil(bits/8) magnitude
// bytes.
func serializeBits(v *big.Int) []byte {
	bits := v.BitLen()
	buf := v.FillBytes(make([]byte, (bits+7)/8))
	return bytes.Join([][]byte{ssh.SerializeUint32(uint32(bits)), buf}, nil)
}

// Assembles an SSH2 container around the given key material. A
// non-zero skew makes the payload length self-check fail, the way a
// wrong decryption key would.
func ssh2Container(keyType, cipherName string, body []byte, skew uint32) []byte {
	blob := bytes.Join([][]byte{
		ssh.SerializeUint32(uint32(len(body)) + skew),
		body,
	}, nil)
	tail := bytes.Join([][]byte{
		ssh.SerializeString(keyType),
		ssh.SerializeString(cipherName),
		ssh.SerializeString(blob),
	}, nil)
	return bytes.Join([][]byte{
		ssh.SerializeUint32(ssh2Magic),
		ssh.SerializeUint32(uint32(8 + len(tail))),
		tail,
	}, nil)
}

// RSA key material in wire order: e, d, n, u, then the primes with
// their labels swapped relative to the key's own convention.
func ssh2RSABody(t *testing.T) []byte {
	t.Helper()
	key, err := Parse([]byte(testRSAPrivateKeyPEM), nil)
	if err != nil {
		t.Fatal(err)
	}
	k := key.RSA
	return bytes.Join([][]byte{
		serializeBits(big.NewInt(int64(k.E))),
		serializeBits(k.D),
		serializeBits(k.N),
		serializeBits(k.Precomputed.Qinv),
		serializeBits(k.Primes[1]),
		serializeBits(k.Primes[0]),
	}, nil)
}

func ssh2DSABody(t *testing.T) []byte {
	t.Helper()
	key, err := Parse([]byte(testDSAPrivateKeyPEM), nil)
	if err != nil {
		t.Fatal(err)
	}
	k := key.DSA
	return bytes.Join([][]byte{
		ssh.SerializeUint32(0),
		serializeBits(k.P),
		serializeBits(k.G),
		serializeBits(k.Q),
		serializeBits(k.Y),
		serializeBits(k.X),
	}, nil)
}

func TestSSH2RSA(t *testing.T) {
	blob := ssh2Container(ssh2KeyTypeRSA, "none", ssh2RSABody(t), 0)
	key, err := parseSSH2PrivateKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := key.Algorithm, "ssh-rsa"; got != want {
		t.Errorf("bad algorithm, got %q, want %q", got, want)
	}
	if key.RSA.N.Cmp(testRSAModulus) != 0 {
		t.Errorf("bad modulus, got %x", key.RSA.N)
	}
}

func TestSSH2DSA(t *testing.T) {
	blob := ssh2Container(ssh2KeyTypeDSA, "none", ssh2DSABody(t), 0)
	key, err := parseSSH2PrivateKey(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := key.Algorithm, "ssh-dss"; got != want {
		t.Errorf("bad algorithm, got %q, want %q", got, want)
	}
	if key.DSA.X.Cmp(testDSAPrivate) != 0 {
		t.Errorf("bad private value, got %x", key.DSA.X)
	}
	if key.DSA.Y.Cmp(testDSAPublic) != 0 {
		t.Errorf("bad public value, got %x", key.DSA.Y)
	}
}

// End-to-end through the text envelope.
func TestSSH2ParsePEM(t *testing.T) {
	ascii := pem.EncodeToMemory(&pem.Block{
		Type:  "SSH2 ENCRYPTED PRIVATE KEY",
		Bytes: ssh2Container(ssh2KeyTypeRSA, "none", ssh2RSABody(t), 0),
	})
	key, err := Parse(ascii, nil)
	if err != nil {
		t.Fatal(err)
	}
	if key.RSA.N.Cmp(testRSAModulus) != 0 {
		t.Errorf("bad modulus, got %x", key.RSA.N)
	}
}

// The primes in the container follow the opposite convention from the
// key; binding them without the swap leaves the CRT coefficient
// inconsistent, and the key must be rejected.
func TestSSH2RSAUnswappedPrimes(t *testing.T) {
	key, err := Parse([]byte(testRSAPrivateKeyPEM), nil)
	if err != nil {
		t.Fatal(err)
	}
	k := key.RSA
	body := bytes.Join([][]byte{
		serializeBits(big.NewInt(int64(k.E))),
		serializeBits(k.D),
		serializeBits(k.N),
		serializeBits(k.Precomputed.Qinv),
		serializeBits(k.Primes[0]),
		serializeBits(k.Primes[1]),
	}, nil)
	_, err = parseSSH2PrivateKey(ssh2Container(ssh2KeyTypeRSA, "none", body, 0))
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got: %v", err)
	}
}

func TestSSH2Fail(t *testing.T) {
	body := ssh2DSABody(t)
	good := ssh2Container(ssh2KeyTypeDSA, "none", body, 0)
	badMagic := bytes.Clone(good)
	badMagic[0] ^= 0x80

	oversize := bytes.Clone(good)
	// Bump the payload length field beyond the container end.
	copy(oversize[len(oversize)-len(body)-8:], ssh.SerializeUint32(uint32(len(body))+100))

	for _, table := range []struct {
		desc     string
		blob     []byte
		expError error
	}{
		{"empty", []byte{}, ErrNotSSH2Key},
		{"bad magic", badMagic, ErrNotSSH2Key},
		{"truncated header", good[:6], ErrNotSSH2Key},
		{"truncated payload", oversize, ErrNotSSH2Key},
		{"inner cipher", ssh2Container(ssh2KeyTypeDSA, "3des-cbc", body, 0), ErrUnsupportedCipher},
		{"length self-check", ssh2Container(ssh2KeyTypeDSA, "none", body[:len(body)-1], 1), ErrInvalidPassphrase},
		{"unknown key type", ssh2Container("ec-modp{sign{ecdsa}}", "none", body, 0), ErrUnsupportedKeyType},
		{"truncated key material", ssh2Container(ssh2KeyTypeDSA, "none", body[:len(body)-4], 0), ErrInvalidKey},
	} {
		if _, err := parseSSH2PrivateKey(table.blob); !errors.Is(err, table.expError) {
			t.Errorf("%q: expected %v, got: %v", table.desc, table.expError, err)
		}
	}
}

func TestReadBigIntBits(t *testing.T) {
	for _, table := range []struct {
		desc  string
		input []byte
		want  *big.Int // nil for expected error
	}{
		{"zero", ssh.SerializeUint32(0), big.NewInt(0)},
		{"one bit", serializeBits(big.NewInt(1)), big.NewInt(1)},
		{"seven bits", serializeBits(big.NewInt(0x7f)), big.NewInt(0x7f)},
		// The top bit of the magnitude is never a sign bit.
		{"eight bits", serializeBits(big.NewInt(0xff)), big.NewInt(0xff)},
		{"nine bits", serializeBits(big.NewInt(0x100)), big.NewInt(0x100)},
		{"high bit word", serializeBits(big.NewInt(0x80000000)), big.NewInt(0x80000000)},
		{"4096 bits", serializeBits(new(big.Int).Lsh(big.NewInt(1), 4095)),
			new(big.Int).Lsh(big.NewInt(1), 4095)},
		{"truncated magnitude", []byte{0, 0, 0, 32, 1, 2}, nil},
		{"missing bit count", []byte{0, 0}, nil},
		{"oversized bit count", ssh.SerializeUint32(ssh2MaxKeyBits + 1), nil},
	} {
		got, err := readBigIntBits(bytes.NewReader(table.input))
		if table.want == nil {
			if err == nil {
				t.Errorf("%q: unexpected success, got %v", table.desc, got)
			}
		} else if err != nil {
			t.Errorf("%q: unexpected failure: %v", table.desc, err)
		} else {
			if got.Sign() < 0 {
				t.Errorf("%q: negative result %v", table.desc, got)
			}
			if got.Cmp(table.want) != 0 {
				t.Errorf("%q: got %v, want %v", table.desc, got, table.want)
			}
		}
	}
}
