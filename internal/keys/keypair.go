// Package keys derives textbook RSA key pairs and encodes them for storage and transport.
package keys

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/user/securemsg/internal/metrics"
	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/internal/prime"
)

const (
	// PublicExponent is the fixed E of every generated key.
	PublicExponent = 65537

	// MinKeySize is the smallest modulus size accepted by Generate.
	MinKeySize = 512

	// minPrimeBits is the floor for either prime after the split.
	minPrimeBits = 256
)

// ErrInvalidKeySize is returned for key sizes below 512 bits or not a multiple of 8.
var ErrInvalidKeySize = errors.New("keys: key size must be at least 512 and a multiple of 8")

// PrimeSource produces probable primes of a requested bit size.
type PrimeSource interface {
	Generate(ctx context.Context, bits int) (*big.Int, error)
}

// KeyPair holds matching public (E, N) and private (D, N) keys.
type KeyPair struct {
	Public  Key
	Private Key
}

// Generator derives key pairs from two independently generated primes.
type Generator struct {
	// Primes defaults to a prime.Generator using every CPU.
	Primes PrimeSource
	// Rand drives the bit split. Defaults to crypto/rand.Reader.
	Rand io.Reader
}

// NewGenerator creates a key generator backed by the given prime source.
func NewGenerator(primes PrimeSource) *Generator {
	return &Generator{Primes: primes}
}

// ValidateKeySize reports ErrInvalidKeySize unless keySize >= 512 and keySize%8 == 0.
func ValidateKeySize(keySize int) error {
	if keySize < MinKeySize || keySize%8 != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidKeySize, keySize)
	}
	return nil
}

// SplitBits picks unequal prime sizes for a modulus of keySize bits. The first size is
// keySize/2 moved by a random 20-30% of keySize in a random direction, rounded down to a
// multiple of 8 and clamped to [256, keySize-256]; the second takes the remainder.
func SplitBits(keySize int, r io.Reader) (pBits, qBits int, err error) {
	if err := ValidateKeySize(keySize); err != nil {
		return 0, 0, err
	}
	if r == nil {
		r = rand.Reader
	}

	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("split bits: %w", err)
	}
	sample := binary.BigEndian.Uint64(buf[:])

	lo := keySize / 5
	hi := keySize * 3 / 10
	offset := lo + int((sample>>1)%uint64(hi-lo+1))
	if sample&1 == 1 {
		offset = -offset
	}

	pBits = (keySize/2 + offset) / 8 * 8
	if pBits < minPrimeBits {
		pBits = minPrimeBits
	}
	if pBits > keySize-minPrimeBits {
		pBits = keySize - minPrimeBits
	}
	return pBits, keySize - pBits, nil
}

// Generate creates a key pair with a modulus built from primes of keySize bits in total.
// When 65537 is not invertible modulo the totient, or both primes coincide, fresh primes are drawn.
func (g *Generator) Generate(ctx context.Context, keySize int) (KeyPair, error) {
	pBits, qBits, err := SplitBits(keySize, g.Rand)
	if err != nil {
		return KeyPair{}, err
	}

	log := logger.Named("keys")
	start := time.Now()
	e := big.NewInt(PublicExponent)

	for {
		p, err := g.primes().Generate(ctx, pBits)
		if err != nil {
			return KeyPair{}, fmt.Errorf("generate p (%d bits): %w", pBits, err)
		}
		q, err := g.primes().Generate(ctx, qBits)
		if err != nil {
			return KeyPair{}, fmt.Errorf("generate q (%d bits): %w", qBits, err)
		}
		if p.Cmp(q) == 0 {
			metrics.KeyPairRetries.Inc()
			log.Warn("identical primes, retrying", logger.KeySize(keySize))
			continue
		}

		n := new(big.Int).Mul(p, q)
		totient := new(big.Int).Mul(
			new(big.Int).Sub(p, big.NewInt(1)),
			new(big.Int).Sub(q, big.NewInt(1)),
		)

		d, err := ModInverse(e, totient)
		if errors.Is(err, ErrNoInverse) {
			metrics.KeyPairRetries.Inc()
			log.Debug("public exponent not invertible, retrying", logger.KeySize(keySize))
			continue
		}
		if err != nil {
			return KeyPair{}, err
		}

		metrics.KeyPairsGenerated.WithLabelValues(strconv.Itoa(keySize)).Inc()
		log.Debug("key pair generated",
			logger.KeySize(keySize),
			logger.Bits(n.BitLen()),
			logger.Duration(time.Since(start)),
		)
		return KeyPair{
			Public:  Key{Exponent: new(big.Int).Set(e), Modulus: n},
			Private: Key{Exponent: d, Modulus: new(big.Int).Set(n)},
		}, nil
	}
}

func (g *Generator) primes() PrimeSource {
	if g.Primes == nil {
		g.Primes = prime.NewGenerator(0)
	}
	return g.Primes
}
