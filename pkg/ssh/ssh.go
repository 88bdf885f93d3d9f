// The ssh package implements utilities for working with SSH wire
// formats.
//
// The way values are serialized in SSH is documented in
// https://www.rfc-editor.org/rfc/rfc4251#section-5.
//
// The "ssh-rsa" and "ssh-dss" key and signature blobs are specified
// in https://www.rfc-editor.org/rfc/rfc4253#section-6.6.
//
// The ssh-agent protocol is documented at
// https://datatracker.ietf.org/doc/html/draft-miller-ssh-agent.
package ssh

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type bytesOrString interface{ []byte | string }

func SerializeUint32(x uint32) []byte {
	buffer := make([]byte, 4)
	binary.BigEndian.PutUint32(buffer, x)
	return buffer
}

func SerializeString[T bytesOrString](s T) []byte {
	if len(s) > math.MaxInt32 {
		panic(fmt.Sprintf("string too large for ssh, length %d", len(s)))
	}
	buffer := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buffer, uint32(len(s)))
	copy(buffer[4:], s)
	return buffer
}

func WriteUint32(w io.Writer, x uint32) error {
	_, err := w.Write(SerializeUint32(x))
	return err
}

func WriteString[T bytesOrString](w io.Writer, s T) error {
	_, err := w.Write(SerializeString(s))
	return err
}

func ReadBytes(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	lenBuf, err := ReadBytes(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(lenBuf), nil
}

func ReadString(r io.Reader, max int) ([]byte, error) {
	len, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if int64(len) > int64(max) {
		return nil, fmt.Errorf("length %d exceeds max %d", len, max)
	}
	return ReadBytes(r, int(len))
}
