// Package cipher applies textbook RSA to byte strings interpreted as unsigned big-endian integers.
//
// There is no padding. A plaintext with leading zero bytes decrypts without them.
package cipher

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/user/securemsg/internal/keys"
)

var (
	// ErrPlaintextTooLarge is returned when the plaintext integer is not below the modulus.
	ErrPlaintextTooLarge = errors.New("cipher: plaintext too large for key")
	// ErrCiphertextOutOfRange is returned when the ciphertext integer is not below the modulus.
	ErrCiphertextOutOfRange = errors.New("cipher: ciphertext out of range for key")
	// ErrInvalidText is returned when a decrypted message is not valid UTF-8.
	ErrInvalidText = errors.New("cipher: decrypted message is not valid UTF-8")
	// ErrInvalidKey is returned for keys with missing or non-positive components.
	ErrInvalidKey = errors.New("cipher: invalid key")
)

// Apply returns m^key.Exponent mod key.Modulus.
func Apply(m *big.Int, key keys.Key) *big.Int {
	return new(big.Int).Exp(m, key.Exponent, key.Modulus)
}

// Encrypt encrypts plaintext with a public key.
func Encrypt(plaintext []byte, pub keys.Key) ([]byte, error) {
	if err := checkKey(pub); err != nil {
		return nil, err
	}
	m := new(big.Int).SetBytes(plaintext)
	if m.Cmp(pub.Modulus) >= 0 {
		return nil, fmt.Errorf("%w: %d-bit message, %d-bit modulus", ErrPlaintextTooLarge, m.BitLen(), pub.Modulus.BitLen())
	}
	return Apply(m, pub).Bytes(), nil
}

// Decrypt decrypts ciphertext with a private key.
func Decrypt(ciphertext []byte, priv keys.Key) ([]byte, error) {
	if err := checkKey(priv); err != nil {
		return nil, err
	}
	c := new(big.Int).SetBytes(ciphertext)
	if c.Cmp(priv.Modulus) >= 0 {
		return nil, ErrCiphertextOutOfRange
	}
	return Apply(c, priv).Bytes(), nil
}

// EncryptText encrypts a UTF-8 message.
func EncryptText(text string, pub keys.Key) ([]byte, error) {
	return Encrypt([]byte(text), pub)
}

// DecryptText decrypts ciphertext and returns it as UTF-8 text.
func DecryptText(ciphertext []byte, priv keys.Key) (string, error) {
	plain, err := Decrypt(ciphertext, priv)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidText
	}
	return string(plain), nil
}

func checkKey(k keys.Key) error {
	if k.Exponent == nil || k.Modulus == nil || k.Modulus.Sign() <= 0 || k.Exponent.Sign() < 0 {
		return ErrInvalidKey
	}
	return nil
}
