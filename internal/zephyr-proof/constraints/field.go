package constraints

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var (
	// Zero is the additive identity
	Zero fr.Element
	// One is the multiplicative identity
	One = fr.One()
	// Two64 is 2^64
	Two64 = pow2(64)
	// Two128 is 2^128
	Two128 = pow2(128)
	// WordMax is 2^64 - 1
	WordMax = Sub(Two64, One)
)

func pow2(n uint) fr.Element {
	var e fr.Element
	e.SetBigInt(new(big.Int).Lsh(big.NewInt(1), n))
	return e
}

// Const returns v as a field element
func Const(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// Bool returns 1 for true and 0 for false
func Bool(b bool) fr.Element {
	if b {
		return One
	}
	return Zero
}

// Add returns the sum of its arguments
func Add(terms ...fr.Element) fr.Element {
	var acc fr.Element
	for i := range terms {
		acc.Add(&acc, &terms[i])
	}
	return acc
}

// Sub returns a - b
func Sub(a, b fr.Element) fr.Element {
	var r fr.Element
	r.Sub(&a, &b)
	return r
}

// Mul returns the product of its arguments
func Mul(factors ...fr.Element) fr.Element {
	acc := One
	for i := range factors {
		acc.Mul(&acc, &factors[i])
	}
	return acc
}

// Inverse returns a^-1, or zero when a is zero
func Inverse(a fr.Element) fr.Element {
	var r fr.Element
	r.Inverse(&a)
	return r
}

// IsBool returns x·(1-x), zero exactly when x is 0 or 1
func IsBool(x fr.Element) fr.Element {
	return Mul(x, Sub(One, x))
}
