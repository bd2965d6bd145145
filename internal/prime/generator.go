package prime

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/securemsg/internal/metrics"
	"github.com/user/securemsg/internal/observability/logger"
)

// MinBits is the smallest prime size the generator accepts.
const MinBits = 32

var (
	ErrInvalidBits  = errors.New("prime: bit length must be at least 32 and a multiple of 8")
	ErrInvalidCount = errors.New("prime: count must not be negative")
)

// Generator searches for random probable primes with several concurrent workers.
type Generator struct {
	// Workers is the number of concurrent search goroutines. Zero means runtime.NumCPU().
	Workers int
	// Rounds is the Miller-Rabin witness count. Zero means DefaultRounds.
	Rounds int
	// Rand supplies candidate bytes and witnesses; it must be safe for concurrent use.
	// Nil means crypto/rand.Reader.
	Rand io.Reader
}

// NewGenerator creates a generator with the given worker count.
func NewGenerator(workers int) *Generator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Generator{Workers: workers}
}

// ValidateBits reports ErrInvalidBits unless bits >= 32 and bits is a multiple of 8.
func ValidateBits(bits int) error {
	if bits < MinBits || bits%8 != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBits, bits)
	}
	return nil
}

// Generate returns an odd probable prime sampled from a bits-wide random buffer. The top bit
// is not forced, so the value may be numerically shorter than bits.
//
// Without cancellation the search never gives up: every sample is prime with probability about
// 2/(bits*ln2), so it terminates with probability 1.
func (g *Generator) Generate(ctx context.Context, bits int) (*big.Int, error) {
	if err := ValidateBits(bits); err != nil {
		return nil, err
	}

	label := strconv.Itoa(bits)
	start := time.Now()
	for {
		p, err := g.search(ctx, bits, label)
		if err != nil {
			return nil, err
		}
		if p != nil {
			elapsed := time.Since(start)
			metrics.PrimesFound.WithLabelValues(label).Inc()
			metrics.PrimeSearchSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
			logger.Named("prime").Debug("prime found",
				logger.Bits(bits), logger.Workers(g.workers()), logger.Duration(elapsed))
			return p, nil
		}
	}
}

// GenerateN generates count primes one after another, calling fn with each.
// It stops at the first error returned by the search or by fn.
func (g *Generator) GenerateN(ctx context.Context, bits, count int, fn func(i int, p *big.Int) error) error {
	if err := ValidateBits(bits); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}

	for i := 0; i < count; i++ {
		p, err := g.Generate(ctx, bits)
		if err != nil {
			return err
		}
		if err := fn(i, p); err != nil {
			return err
		}
	}
	return nil
}

// search runs one fan-out round. A nil prime with a nil error means nobody found one.
func (g *Generator) search(ctx context.Context, bits int, label string) (*big.Int, error) {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var found atomic.Bool
	result := make(chan *big.Int, 1)

	grp, gctx := errgroup.WithContext(ctx)
	for i := 0; i < g.workers(); i++ {
		grp.Go(func() error {
			return g.work(gctx, bits, label, &found, result, stop)
		})
	}
	err := grp.Wait()

	select {
	case p := <-result:
		return p, nil
	default:
	}
	if err != nil {
		return nil, fmt.Errorf("prime search (%d bits): %w", bits, err)
	}
	return nil, nil
}

// work samples candidates until a prime is published by any worker.
func (g *Generator) work(ctx context.Context, bits int, label string, found *atomic.Bool, result chan<- *big.Int, stop context.CancelFunc) error {
	src := g.source()
	reader := newContextReader(ctx, src)
	tester := Tester{Rounds: g.Rounds, Rand: src}
	sampled := metrics.CandidatesSampled.WithLabelValues(label)

	buf := make([]byte, bits/8)
	candidate := new(big.Int)

	for !found.Load() {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if found.Load() {
				return nil
			}
			return err
		}
		buf[len(buf)-1] |= 1
		candidate.SetBytes(buf)
		sampled.Inc()

		if candidate.Cmp(three) <= 0 {
			continue
		}
		if !tester.IsProbablyPrime(candidate) {
			continue
		}
		if found.CompareAndSwap(false, true) {
			result <- new(big.Int).Set(candidate)
			stop()
		}
		return nil
	}
	return nil
}

func (g *Generator) workers() int {
	if g.Workers < 1 {
		return runtime.NumCPU()
	}
	return g.Workers
}

func (g *Generator) source() io.Reader {
	if g.Rand == nil {
		return rand.Reader
	}
	return g.Rand
}
