package keys

import (
	"encoding/base64"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLayout(t *testing.T) {
	k := Key{Exponent: big.NewInt(65537), Modulus: big.NewInt(0x0102)}
	raw, err := k.MarshalBinary()
	require.NoError(t, err)

	want := []byte{
		0, 0, 0, 3, 0x01, 0x00, 0x01,
		0, 0, 0, 2, 0x01, 0x02,
	}
	assert.Equal(t, want, raw)
}

func TestMarshalSizeAndRoundTrip(t *testing.T) {
	big2048, _ := new(big.Int).SetString("C7F1"+strings.Repeat("A5", 254), 16)
	tests := []struct {
		name string
		key  Key
	}{
		{"e=1 n=0", Key{Exponent: big.NewInt(1), Modulus: big.NewInt(0)}},
		{"zero exponent", Key{Exponent: big.NewInt(0), Modulus: big.NewInt(12345)}},
		{"public", Key{Exponent: big.NewInt(PublicExponent), Modulus: big2048}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.key.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, raw, 4+len(tt.key.Exponent.Bytes())+4+len(tt.key.Modulus.Bytes()))

			var got Key
			require.NoError(t, got.UnmarshalBinary(raw))
			assert.True(t, got.Equal(tt.key))

			s, err := tt.key.EncodeString()
			require.NoError(t, err)
			decoded, err := DecodeString(s)
			require.NoError(t, err)
			assert.True(t, decoded.Equal(tt.key))
		})
	}
}

func TestMarshalRejectsBadComponents(t *testing.T) {
	_, err := Key{Exponent: nil, Modulus: big.NewInt(1)}.MarshalBinary()
	assert.ErrorIs(t, err, ErrMalformedKey)

	_, err = Key{Exponent: big.NewInt(3), Modulus: big.NewInt(-5)}.MarshalBinary()
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestUnmarshalMalformed(t *testing.T) {
	tests := map[string][]byte{
		"empty":              {},
		"short prefix":       {0, 0, 1},
		"exponent truncated": {0, 0, 0, 4, 1, 2},
		"missing modulus":    {0, 0, 0, 1, 3},
		"modulus truncated":  {0, 0, 0, 1, 3, 0, 0, 0, 2, 9},
		"trailing bytes":     {0, 0, 0, 1, 3, 0, 0, 0, 1, 9, 0xFF},
		"huge length":        {0xFF, 0xFF, 0xFF, 0xFF, 1},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			var k Key
			assert.ErrorIs(t, k.UnmarshalBinary(raw), ErrMalformedKey)
		})
	}
}

func TestDecodeStringRejectsBadBase64(t *testing.T) {
	_, err := DecodeString("not base64!!")
	assert.ErrorIs(t, err, ErrMalformedKey)

	_, err = DecodeString(base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 9}))
	assert.ErrorIs(t, err, ErrMalformedKey)
}
