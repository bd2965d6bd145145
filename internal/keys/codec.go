package keys

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrMalformedKey is returned for key blobs that do not match the length-prefixed layout.
var ErrMalformedKey = errors.New("keys: malformed key")

const lenPrefix = 4

// Key is an (exponent, modulus) pair. A public key carries E, a private key carries D.
type Key struct {
	Exponent *big.Int
	Modulus  *big.Int
}

// MarshalBinary encodes the key as
//
//	[u32 BE len(exponent)][exponent][u32 BE len(modulus)][modulus]
//
// with both integers as minimal unsigned big-endian bytes.
func (k Key) MarshalBinary() ([]byte, error) {
	if err := checkComponent("exponent", k.Exponent); err != nil {
		return nil, err
	}
	if err := checkComponent("modulus", k.Modulus); err != nil {
		return nil, err
	}

	e := k.Exponent.Bytes()
	n := k.Modulus.Bytes()
	if uint64(len(e)) > math.MaxUint32 || uint64(len(n)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: component too large", ErrMalformedKey)
	}

	out := make([]byte, 0, lenPrefix+len(e)+lenPrefix+len(n))
	out = binary.BigEndian.AppendUint32(out, uint32(len(e)))
	out = append(out, e...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(n)))
	out = append(out, n...)
	return out, nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (k *Key) UnmarshalBinary(data []byte) error {
	e, rest, err := readField(data, "exponent")
	if err != nil {
		return err
	}
	n, rest, err := readField(rest, "modulus")
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedKey, len(rest))
	}

	k.Exponent = new(big.Int).SetBytes(e)
	k.Modulus = new(big.Int).SetBytes(n)
	return nil
}

// EncodeString renders the binary form as standard base64.
func (k Key) EncodeString() (string, error) {
	raw, err := k.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeString parses a base64 key produced by EncodeString.
func DecodeString(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: base64: %v", ErrMalformedKey, err)
	}
	var k Key
	if err := k.UnmarshalBinary(raw); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Equal reports whether both components match.
func (k Key) Equal(o Key) bool {
	if k.Exponent == nil || k.Modulus == nil || o.Exponent == nil || o.Modulus == nil {
		return false
	}
	return k.Exponent.Cmp(o.Exponent) == 0 && k.Modulus.Cmp(o.Modulus) == 0
}

func checkComponent(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: nil %s", ErrMalformedKey, name)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative %s", ErrMalformedKey, name)
	}
	return nil
}

func readField(data []byte, name string) (field, rest []byte, err error) {
	if len(data) < lenPrefix {
		return nil, nil, fmt.Errorf("%w: missing %s length", ErrMalformedKey, name)
	}
	size := binary.BigEndian.Uint32(data)
	data = data[lenPrefix:]
	if uint64(len(data)) < uint64(size) {
		return nil, nil, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrMalformedKey, name, size, len(data))
	}
	return data[:size], data[size:], nil
}
