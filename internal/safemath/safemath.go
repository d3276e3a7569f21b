// Package safemath provides checked 64-bit arithmetic backed by 256-bit
// intermediates. Every operation either returns an exact result or an error;
// nothing wraps or saturates.
package safemath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Add64 returns a+b or ErrOverflow.
func Add64(a, b uint64) (uint64, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	return Narrow(sum)
}

// Sub64 returns a-b or ErrOverflow when b > a.
func Sub64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// Mul returns the exact 128-bit product of a and b.
func Mul(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

// MulDiv computes floor(a*b/d) without intermediate truncation.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	q := Mul(a, b)
	q.Div(q, uint256.NewInt(d))
	return Narrow(q)
}

// Div computes floor(n/d) for a wide numerator and narrows the quotient.
func Div(n *uint256.Int, d *uint256.Int) (uint64, error) {
	if d.IsZero() {
		return 0, ErrDivisionByZero
	}
	return Narrow(new(uint256.Int).Div(n, d))
}

// Narrow converts x to uint64, failing if it does not fit.
func Narrow(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// Sqrt returns floor(sqrt(n)) using Newton's iteration.
func Sqrt(n *uint256.Int) *uint256.Int {
	if n.LtUint64(2) {
		return new(uint256.Int).Set(n)
	}

	x := new(uint256.Int).Set(n)
	// (n+1)/2 without the add, so n = 2^256-1 cannot wrap.
	y := new(uint256.Int).Rsh(n, 1)
	if n[0]&1 == 1 {
		y.AddUint64(y, 1)
	}

	q := new(uint256.Int)
	for y.Lt(x) {
		x.Set(y)
		q.Div(n, x)
		y.Add(x, q)
		y.Rsh(y, 1)
	}
	return x
}

// SqrtProduct returns floor(sqrt(a*b)). The root of a 128-bit product always
// fits in 64 bits.
func SqrtProduct(a, b uint64) uint64 {
	return Sqrt(Mul(a, b)).Uint64()
}

// Min returns the smaller of a and b.
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
