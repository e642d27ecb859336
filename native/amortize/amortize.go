package amortize

import (
	"errors"
	"math/big"
)

var (
	errInvalidPrincipal = errors.New("amortize: principal must be positive")
	errZeroTerm         = errors.New("amortize: term must be at least one month")
	errTermTooLong      = errors.New("amortize: term exceeds total obligation")
)

var basisPoints = big.NewInt(10_000)

// TotalObligation computes the full amount owed over the life of an agreement
// using simple (non-compounding) interest over the whole term:
//
//	obligation = principal + principal * rateBps / 10_000
//
// The computation is integer-only and deterministic.
func TotalObligation(principal *big.Int, annualRateBps uint32) (*big.Int, error) {
	if principal == nil || principal.Sign() <= 0 {
		return nil, errInvalidPrincipal
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(uint64(annualRateBps)))
	interest.Quo(interest, basisPoints)
	return new(big.Int).Add(principal, interest), nil
}

// Payment computes the fixed periodic payment as the floor of the total
// obligation divided by the term in months. The result is positive whenever
// the principal is positive; rounding remainders are settled by the final
// repayment rather than inflating the periodic amount.
func Payment(principal *big.Int, termMonths uint32, annualRateBps uint32) (*big.Int, error) {
	if termMonths == 0 {
		return nil, errZeroTerm
	}
	obligation, err := TotalObligation(principal, annualRateBps)
	if err != nil {
		return nil, err
	}
	payment := new(big.Int).Quo(obligation, new(big.Int).SetUint64(uint64(termMonths)))
	if payment.Sign() == 0 {
		// The obligation cannot be split into the requested number of
		// periods without zero-value payments.
		return nil, errTermTooLong
	}
	return payment, nil
}
