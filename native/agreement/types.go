package agreement

import (
	"fmt"
	"math/big"
)

// Term and rate windows enforced at creation. Governance adjustments clamp the
// rate back into [MinRateBps, MaxRateBps] whenever it is touched.
const (
	MinTermMonths uint32 = 1
	MaxTermMonths uint32 = 360
	MinRateBps    uint32 = 100
	MaxRateBps    uint32 = 2000
)

// Status reports the lifecycle phase of an agreement. Defaulted and Completed
// are terminal; agreements are never physically removed from state.
type Status uint8

const (
	StatusActive Status = iota
	StatusDefaulted
	StatusCompleted
)

// String implements fmt.Stringer for logging and event emission.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDefaulted:
		return "defaulted"
	case StatusCompleted:
		return "completed"
	default:
		return "unspecified"
	}
}

// Contribution describes one investor's stake in a pooled funding event.
type Contribution struct {
	Investor [20]byte
	Amount   *big.Int
}

// YieldAgreement is the financing record backing a registered asset. Identity
// fields are immutable after creation; the financial fields mutate through
// repayments and governance execution only.
type YieldAgreement struct {
	ID        uint64
	AssetID   uint64
	Owner     [20]byte
	Principal *big.Int
	// TermMonths is the repayment schedule length, 1-360.
	TermMonths uint32
	// RateBps is the fixed annual return in basis points.
	RateBps     uint32
	TotalRepaid *big.Int
	Active      bool
	InDefault   bool
	// GracePeriodSeconds is the window after a due date during which a late
	// payment does not yet count as missed.
	GracePeriodSeconds uint64
	PenaltyRateBps     uint32
	// DefaultThreshold is the number of missed payments that trips the
	// terminal default transition.
	DefaultThreshold uint32
	AllowPartial     bool
	AllowEarly       bool
	// DesignatedPayer may submit repayments in addition to the owner. The
	// zero address means unset.
	DesignatedPayer [20]byte
	MissedPayments  uint32
	LastMissedAt    uint64
	// ReserveBalance is governance-managed capital earmarked against the
	// agreement.
	ReserveBalance *big.Int
	CreatedAt      uint64
}

// Status derives the lifecycle phase from the stored flags.
func (a *YieldAgreement) Status() Status {
	switch {
	case a == nil:
		return StatusActive
	case a.InDefault:
		return StatusDefaulted
	case !a.Active:
		return StatusCompleted
	default:
		return StatusActive
	}
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (a *YieldAgreement) Clone() *YieldAgreement {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Principal != nil {
		clone.Principal = new(big.Int).Set(a.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	if a.TotalRepaid != nil {
		clone.TotalRepaid = new(big.Int).Set(a.TotalRepaid)
	} else {
		clone.TotalRepaid = big.NewInt(0)
	}
	if a.ReserveBalance != nil {
		clone.ReserveBalance = new(big.Int).Set(a.ReserveBalance)
	} else {
		clone.ReserveBalance = big.NewInt(0)
	}
	return &clone
}

// SanitizeAgreement validates and normalises an agreement record, returning a
// cloned instance with non-nil amount fields. The original is not mutated.
func SanitizeAgreement(a *YieldAgreement) (*YieldAgreement, error) {
	if a == nil {
		return nil, fmt.Errorf("nil agreement")
	}
	clone := a.Clone()
	if clone.Principal.Sign() <= 0 {
		return nil, fmt.Errorf("agreement principal must be positive")
	}
	if clone.TermMonths < MinTermMonths || clone.TermMonths > MaxTermMonths {
		return nil, fmt.Errorf("agreement term out of range: %d", clone.TermMonths)
	}
	if clone.RateBps < MinRateBps || clone.RateBps > MaxRateBps {
		return nil, fmt.Errorf("agreement rate out of range: %d", clone.RateBps)
	}
	if clone.TotalRepaid.Sign() < 0 {
		return nil, fmt.Errorf("agreement total repaid must be non-negative")
	}
	if clone.ReserveBalance.Sign() < 0 {
		return nil, fmt.Errorf("agreement reserve must be non-negative")
	}
	return clone, nil
}
