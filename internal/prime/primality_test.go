package prime

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallPrimeTable(t *testing.T) {
	require.Len(t, smallPrimes, smallPrimeCount)
	assert.Equal(t, uint64(2), smallPrimes[0])
	assert.Equal(t, uint64(3571), smallPrimes[len(smallPrimes)-1])
}

func TestIsProbablyPrimeSmallValues(t *testing.T) {
	tests := []struct {
		n    int64
		want bool
	}{
		{-7, false},
		{0, false},
		{1, true},
		{2, true},
		{3, true},
		{4, false},
		{5, true},
		{9, false},
		{97, true},
		{3571, true},
		{3573, false},
		{3581, true},
	}
	for _, tt := range tests {
		got := IsProbablyPrime(big.NewInt(tt.n), DefaultRounds)
		assert.Equal(t, tt.want, got, "n=%d", tt.n)
	}
}

func TestIsProbablyPrimeKnownPrimes(t *testing.T) {
	primes := []string{
		"1000000007",
		"2147483647",
		"18446744073709551557",
	}
	for _, s := range primes {
		n, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		assert.True(t, IsProbablyPrime(n, DefaultRounds), s)
	}

	for _, exp := range []uint{127, 521, 607} {
		assert.True(t, IsProbablyPrime(mersenne(exp), DefaultRounds), "2^%d-1", exp)
	}
}

func mersenne(exp uint) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), exp)
	return m.Sub(m, big.NewInt(1))
}

func TestIsProbablyPrimeComposites(t *testing.T) {
	composites := []string{
		// Carmichael numbers
		"561", "1105", "1729", "2465", "2821", "6601", "8911", "41041", "825265",
		"321197185",
		// semiprimes of primes above the trial-division table
		"12752041",            // 3571 * 3571
		"1000000016000000063", // 1000000007 * 1000000009
		"4611686014132420609", // (2^31 - 1)^2
	}
	for _, s := range composites {
		n, ok := new(big.Int).SetString(s, 10)
		require.True(t, ok)
		assert.False(t, IsProbablyPrime(n, DefaultRounds), s)
	}
}

func TestIsProbablyPrimeLargeSemiprime(t *testing.T) {
	n := new(big.Int).Mul(mersenne(127), mersenne(521))
	assert.False(t, IsProbablyPrime(n, DefaultRounds))
	// 2^67 - 1 = 193707721 * 761838257287
	assert.False(t, IsProbablyPrime(mersenne(67), DefaultRounds))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestTesterReadFailureReportsComposite(t *testing.T) {
	tester := Tester{Rounds: 3, Rand: failingReader{}}
	assert.False(t, tester.IsProbablyPrime(big.NewInt(1000000007)))
	// table hits never touch the reader
	assert.True(t, tester.IsProbablyPrime(big.NewInt(3571)))
}
