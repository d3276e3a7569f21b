package amm

import (
	"errors"
	"fmt"
)

// Class groups failures by what the caller has to change to succeed.
type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassInput         Class = "input"
	ClassState         Class = "state"
	ClassBalance       Class = "balance"
	ClassSlippage      Class = "slippage"
	ClassArithmetic    Class = "arithmetic"
	ClassUnknown       Class = "unknown"
)

// Error is a pool operation failure with a stable code.
type Error struct {
	code  string
	class Class
	msg   string
}

func (e *Error) Error() string { return e.msg }

// Code returns the stable identifier of the failure.
func (e *Error) Code() string { return e.code }

// Class returns the failure group.
func (e *Error) Class() Class { return e.class }

var (
	ErrInvalidFeeRate          = &Error{code: "InvalidFeeRate", class: ClassConfiguration, msg: "fee rate exceeds maximum"}
	ErrIdenticalMints          = &Error{code: "IdenticalMints", class: ClassConfiguration, msg: "token a and token b are identical"}
	ErrZeroAmount              = &Error{code: "ZeroAmount", class: ClassInput, msg: "deposit amounts must be non-zero"}
	ErrZeroSwapAmount          = &Error{code: "ZeroSwapAmount", class: ClassInput, msg: "swap amount must be non-zero"}
	ErrZeroLPTokens            = &Error{code: "ZeroLPTokens", class: ClassInput, msg: "lp token amount is zero"}
	ErrInvalidDirection        = &Error{code: "InvalidDirection", class: ClassInput, msg: "invalid swap direction"}
	ErrInvalidSlippage         = &Error{code: "InvalidSlippage", class: ClassInput, msg: "slippage tolerance exceeds 100%"}
	ErrEmptyPool               = &Error{code: "EmptyPool", class: ClassState, msg: "pool has no liquidity"}
	ErrInsufficientLiquidity   = &Error{code: "InsufficientLiquidity", class: ClassState, msg: "insufficient liquidity"}
	ErrCorruptPool             = &Error{code: "CorruptPool", class: ClassState, msg: "pool state violates invariants"}
	ErrInsufficientLPTokens    = &Error{code: "InsufficientLPTokens", class: ClassBalance, msg: "insufficient lp tokens"}
	ErrInsufficientUserBalance = &Error{code: "InsufficientUserBalance", class: ClassBalance, msg: "insufficient user balance"}
	ErrSlippageExceeded        = &Error{code: "SlippageExceeded", class: ClassSlippage, msg: "slippage tolerance exceeded"}
	ErrMathOverflow            = &Error{code: "MathOverflow", class: ClassArithmetic, msg: "math overflow"}
)

// CodeOf returns the code of the pool error wrapped in err, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// ClassOf returns the class of the pool error wrapped in err.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.class
	}
	return ClassUnknown
}

func overflow(err error, what string) error {
	return fmt.Errorf("%w: %s: %v", ErrMathOverflow, what, err)
}
