package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/user/securemsg/internal/cipher"
	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/keystore"
)

const probe = "test"

func main() {
	dir := "."
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [keydir]\n", os.Args[0])
		os.Exit(1)
	}
	if len(os.Args) == 2 {
		dir = os.Args[1]
	}

	if err := validate(os.Stdout, dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validate checks that public.key and private.key in dir form a working pair.
func validate(w io.Writer, dir string) error {
	store, err := keystore.New(dir)
	if err != nil {
		return err
	}
	pubFile, err := store.LoadPublic()
	if err != nil {
		return fmt.Errorf("reading public key: %w", err)
	}
	privFile, err := store.LoadPrivate()
	if err != nil {
		return fmt.Errorf("reading private key: %w", err)
	}
	pub, err := pubFile.Decode()
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}
	priv, err := privFile.Decode()
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}

	fmt.Fprintf(w, "Key directory: %s\n", store.Dir())
	fmt.Fprintf(w, "Key size: %d bits\n", pub.Modulus.BitLen())
	fmt.Fprintf(w, "Public exponent: %s\n", pub.Exponent)
	if len(privFile.Email) > 0 {
		fmt.Fprintf(w, "Registered for: %v\n", privFile.Email)
	}

	fmt.Fprintln(w, "\nValidating key properties...")
	failed := false
	check := func(ok bool, pass, fail string) {
		if ok {
			fmt.Fprintf(w, "✓ %s\n", pass)
			return
		}
		failed = true
		fmt.Fprintf(w, "✗ %s\n", fail)
	}
	check(pub.Modulus.Cmp(priv.Modulus) == 0, "moduli match", "moduli differ")
	check(pub.Exponent.IsInt64() && pub.Exponent.Int64() == keys.PublicExponent,
		fmt.Sprintf("E = %d", keys.PublicExponent),
		fmt.Sprintf("E = %s, want %d", pub.Exponent, keys.PublicExponent))

	fmt.Fprintln(w, "\nTesting encryption/decryption...")
	ciphertext, err := cipher.EncryptText(probe, pub)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	plaintext, err := cipher.DecryptText(ciphertext, priv)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	check(plaintext == probe,
		fmt.Sprintf("Successfully encrypted and decrypted: %q", plaintext),
		"Decryption mismatch")

	if failed {
		return errors.New("key validation failed")
	}
	fmt.Fprintln(w, "\nKey validation complete!")
	return nil
}
