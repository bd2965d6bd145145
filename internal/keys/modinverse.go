package keys

import (
	"errors"
	"math/big"
)

// ErrNoInverse is returned when the exponent shares a factor with the modulus.
var ErrNoInverse = errors.New("keys: exponent has no inverse modulo totient")

// ModInverse returns d in [0, m) with a*d ≡ 1 (mod m), using the extended Euclidean algorithm.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	if m.Sign() <= 0 {
		return nil, ErrNoInverse
	}

	i := new(big.Int).Set(m)
	v := new(big.Int)
	d := big.NewInt(1)
	rem := new(big.Int).Mod(a, m)

	t := new(big.Int)
	tmp := new(big.Int)
	for rem.Sign() > 0 {
		// i = t*rem + r'
		t.QuoRem(i, rem, tmp)
		i.Set(rem)
		rem.Set(tmp)

		// (v, d) = (d, v - t*d)
		tmp.Mul(t, d)
		tmp.Sub(v, tmp)
		v.Set(d)
		d.Set(tmp)
	}

	// i now holds gcd(a, m)
	if i.Cmp(big.NewInt(1)) != 0 {
		return nil, ErrNoInverse
	}
	return v.Mod(v, m), nil
}
