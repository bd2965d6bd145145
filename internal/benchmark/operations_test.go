package benchmark

import (
	"context"
	"testing"
)

func TestPrimeOperation(t *testing.T) {
	op := NewPrimeOperation(2)

	if op.Name() != "prime" {
		t.Errorf("Expected name prime, got %s", op.Name())
	}
	if err := op.ValidateSize(64); err != nil {
		t.Errorf("Expected 64 to be valid: %v", err)
	}
	if err := op.ValidateSize(30); err == nil {
		t.Error("Expected error for 30-bit primes")
	}
	if err := op.Run(context.Background(), 64); err != nil {
		t.Errorf("Failed to generate prime: %v", err)
	}
}

func TestKeyGenOperation(t *testing.T) {
	op := NewKeyGenOperation(0)

	if op.Name() != "keygen" {
		t.Errorf("Expected name keygen, got %s", op.Name())
	}

	tests := []struct {
		size  int
		valid bool
	}{
		{512, true},
		{1024, true},
		{2048, true},
		{256, false},
		{1020, false},
	}
	for _, test := range tests {
		err := op.ValidateSize(test.size)
		if (err == nil) != test.valid {
			t.Errorf("For size %d, expected valid=%v, got err=%v", test.size, test.valid, err)
		}
	}

	if err := op.Run(context.Background(), 512); err != nil {
		t.Errorf("Failed to generate key pair: %v", err)
	}
}

func TestGetOperation(t *testing.T) {
	for _, name := range []string{"prime", "keygen"} {
		if _, err := getOperation(name, 1); err != nil {
			t.Errorf("Unexpected error for %s: %v", name, err)
		}
	}
	if _, err := getOperation("rsa", 1); err == nil {
		t.Error("Expected error for unknown operation")
	}
}
