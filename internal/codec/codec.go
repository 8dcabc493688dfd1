// Package codec decodes the borsh-serialized account records of the
// auction, token-vault, marketplace and token-metadata programs, and
// encodes the instruction payloads this engine submits back to them.
//
// Decoding is defensive: the feeds deliver every account a program owns,
// including kinds this engine does not model, so a layout mismatch is a
// normal outcome and is reported as ErrMismatch rather than a panic or a
// silently corrupt record.
package codec

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// ErrMismatch reports that a byte payload does not conform to the
// attempted record schema. Callers classify by trying candidate kinds in
// order and treat this as "not this kind", never as a fatal fault.
var ErrMismatch = errors.New("codec: layout mismatch")

func mismatch(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMismatch, kind, err)
}

func decodeBorsh(kind string, data []byte, out interface{}) error {
	dec := bin.NewBorshDecoder(data)
	if err := dec.Decode(out); err != nil {
		return mismatch(kind, err)
	}
	return nil
}

func encodeBorsh(in interface{}) ([]byte, error) {
	buf := new(bytesBuffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(in); err != nil {
		return nil, err
	}
	return buf.data, nil
}

type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
