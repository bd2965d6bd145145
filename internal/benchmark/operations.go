package benchmark

import (
	"context"
	"fmt"

	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/prime"
)

const (
	OpPrime  = "prime"
	OpKeyGen = "keygen"
)

// PrimeOperation generates one probable prime per run.
type PrimeOperation struct {
	gen *prime.Generator
}

func NewPrimeOperation(workers int) *PrimeOperation {
	return &PrimeOperation{gen: prime.NewGenerator(workers)}
}

func (p *PrimeOperation) Name() string { return OpPrime }

func (p *PrimeOperation) ValidateSize(size int) error { return prime.ValidateBits(size) }

func (p *PrimeOperation) Run(ctx context.Context, size int) error {
	_, err := p.gen.Generate(ctx, size)
	return err
}

// KeyGenOperation generates one key pair per run.
type KeyGenOperation struct {
	gen *keys.Generator
}

func NewKeyGenOperation(workers int) *KeyGenOperation {
	return &KeyGenOperation{gen: keys.NewGenerator(prime.NewGenerator(workers))}
}

func (k *KeyGenOperation) Name() string { return OpKeyGen }

func (k *KeyGenOperation) ValidateSize(size int) error { return keys.ValidateKeySize(size) }

func (k *KeyGenOperation) Run(ctx context.Context, size int) error {
	_, err := k.gen.Generate(ctx, size)
	return err
}

func getOperation(name string, workers int) (Operation, error) {
	switch name {
	case OpPrime:
		return NewPrimeOperation(workers), nil
	case OpKeyGen:
		return NewKeyGenOperation(workers), nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", name)
	}
}
