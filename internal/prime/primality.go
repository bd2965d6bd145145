package prime

import (
	"crypto/rand"
	"io"
	"math/big"
)

// DefaultRounds is the number of Miller-Rabin witnesses tried by IsProbablyPrime.
const DefaultRounds = 10

// smallPrimeCount is how many leading primes are used for trial division.
const smallPrimeCount = 500

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
	four  = big.NewInt(4)

	// smallPrimes holds the first 500 primes (2..3571).
	smallPrimes = firstPrimes(smallPrimeCount)
)

// firstPrimes returns the first n primes using a simple sieve.
func firstPrimes(n int) []uint64 {
	primes := make([]uint64, 0, n)
	limit := 4096
	for len(primes) < n {
		primes = primes[:0]
		composite := make([]bool, limit)
		for i := 2; i < limit && len(primes) < n; i++ {
			if composite[i] {
				continue
			}
			primes = append(primes, uint64(i))
			for j := i * i; j < limit; j += i {
				composite[j] = true
			}
		}
		limit *= 2
	}
	return primes
}

// Tester runs the Miller-Rabin test with a configurable witness count and randomness source.
type Tester struct {
	Rounds int
	Rand   io.Reader
}

// IsProbablyPrime reports whether n is probably prime using crypto/rand witnesses.
func IsProbablyPrime(n *big.Int, rounds int) bool {
	return Tester{Rounds: rounds}.IsProbablyPrime(n)
}

// IsProbablyPrime reports whether n passes trial division by the first 500 primes and
// t.Rounds Miller-Rabin rounds. A composite is reported prime with probability at most 4^-Rounds.
func (t Tester) IsProbablyPrime(n *big.Int) bool {
	if n.Sign() < 0 {
		return false
	}
	if n.Cmp(four) < 0 {
		return n.Sign() > 0
	}

	rounds := t.Rounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	src := t.Rand
	if src == nil {
		src = rand.Reader
	}

	rem := new(big.Int)
	div := new(big.Int)
	for _, p := range smallPrimes {
		div.SetUint64(p)
		if rem.Mod(n, div).Sign() == 0 {
			return n.Cmp(div) == 0
		}
	}

	nMinus1 := new(big.Int).Sub(n, one)
	nMinus3 := new(big.Int).Sub(n, three)

	// n-1 = 2^r * d with d odd; n is odd here so r >= 1
	r := nMinus1.TrailingZeroBits()
	d := new(big.Int).Rsh(nMinus1, r)

	buf := make([]byte, (n.BitLen()+7)/8+8)
	a := new(big.Int)
	x := new(big.Int)

	for i := 0; i < rounds; i++ {
		if _, err := io.ReadFull(src, buf); err != nil {
			// no entropy, no verdict; treat as composite so callers resample
			return false
		}
		a.SetBytes(buf)
		a.Mod(a, nMinus3)
		a.Add(a, two)

		x.Exp(a, d, n)
		if x.Cmp(one) == 0 || x.Cmp(nMinus1) == 0 {
			continue
		}

		witnessPassed := false
		for j := uint(1); j < r; j++ {
			x.Mul(x, x)
			x.Mod(x, n)
			if x.Cmp(nMinus1) == 0 {
				witnessPassed = true
				break
			}
		}
		if !witnessPassed {
			return false
		}
	}
	return true
}
