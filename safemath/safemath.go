// Package safemath provides the checked arithmetic used for every vault balance mutation.
package safemath

import (
	"errors"
	"math"
	"math/bits"
)

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
)

// Credit returns balance+amount, or ErrArithmeticOverflow if the sum does not fit in 64 bits.
func Credit(balance, amount uint64) (uint64, error) {
	sum, carry := bits.Add64(balance, amount, 0)
	if carry != 0 {
		return balance, ErrArithmeticOverflow
	}
	return sum, nil
}

// Debit returns balance-amount, or ErrArithmeticUnderflow if amount exceeds balance.
func Debit(balance, amount uint64) (uint64, error) {
	diff, borrow := bits.Sub64(balance, amount, 0)
	if borrow != 0 {
		return balance, ErrArithmeticUnderflow
	}
	return diff, nil
}

// Headroom is the largest amount that can still be credited to balance.
func Headroom(balance uint64) uint64 {
	return math.MaxUint64 - balance
}
