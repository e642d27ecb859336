package governance

import (
	"math/big"
)

// ProposalKind enumerates the supported governance proposal targets. Each kind
// carries its encoded target value in Proposal.NewValue.
type ProposalKind string

const (
	// KindRateAdjust changes the agreement's annual return. The requested
	// value must sit within the bounded delta of the rate at proposal time.
	KindRateAdjust ProposalKind = "agreement.rate"
	// KindGracePeriod changes the missed-payment grace window, in seconds.
	KindGracePeriod ProposalKind = "agreement.gracePeriod"
	// KindPenaltyRate changes the default penalty basis points.
	KindPenaltyRate ProposalKind = "agreement.penaltyRate"
	// KindRepaymentFlags updates the partial/early repayment permissions.
	// Bit 0 enables partial repayments, bit 1 enables early repayment.
	KindRepaymentFlags ProposalKind = "agreement.repaymentFlags"
	// KindReserveAllocate earmarks owner capital into the agreement reserve.
	KindReserveAllocate ProposalKind = "reserve.allocate"
	// KindReserveWithdraw releases reserve capital back to the owner.
	KindReserveWithdraw ProposalKind = "reserve.withdraw"
	// KindParamUpdate writes a global parameter store entry.
	KindParamUpdate ProposalKind = "param.update"
)

// Valid reports whether the kind is supported.
func (k ProposalKind) Valid() bool {
	switch k {
	case KindRateAdjust, KindGracePeriod, KindPenaltyRate, KindRepaymentFlags,
		KindReserveAllocate, KindReserveWithdraw, KindParamUpdate:
		return true
	default:
		return false
	}
}

// RepaymentFlagPartial and RepaymentFlagEarly are the bit positions used by
// KindRepaymentFlags payloads.
const (
	RepaymentFlagPartial uint64 = 1 << 0
	RepaymentFlagEarly   uint64 = 1 << 1
)

// VoteChoice enumerates the supported ballot selections.
type VoteChoice string

const (
	VoteChoiceUnspecified VoteChoice = ""
	VoteChoiceFor         VoteChoice = "for"
	VoteChoiceAgainst     VoteChoice = "against"
	VoteChoiceAbstain     VoteChoice = "abstain"
)

// Valid reports whether the vote choice represents a supported selection.
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteChoiceFor, VoteChoiceAgainst, VoteChoiceAbstain:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for logging and event emission.
func (c VoteChoice) String() string { return string(c) }

// ProposalStatus is the lifecycle phase derived from the stored flags and the
// voting window.
type ProposalStatus uint8

const (
	ProposalStatusPending ProposalStatus = iota
	ProposalStatusActive
	ProposalStatusClosed
	ProposalStatusExecuted
	ProposalStatusDefeated
)

// String provides a textual representation suitable for logs and APIs.
func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusActive:
		return "active"
	case ProposalStatusClosed:
		return "closed"
	case ProposalStatusExecuted:
		return "executed"
	case ProposalStatusDefeated:
		return "defeated"
	default:
		return "unspecified"
	}
}

// Proposal captures the metadata, tallies and terminal flags of one governance
// proposal. A proposal transitions to exactly one terminal state, exactly
// once.
type Proposal struct {
	ID          uint64
	Proposer    [20]byte
	AgreementID uint64
	Kind        ProposalKind
	// NewValue is the encoded target value interpreted per Kind.
	NewValue *big.Int
	// ParamKey names the parameter store entry for KindParamUpdate.
	ParamKey    string
	Description string
	CreatedAt   uint64
	VotingStart uint64
	VotingEnd   uint64
	// BaselineRateBps freezes the agreement rate observed at proposal time
	// so the bounded-delta admission check is stable.
	BaselineRateBps uint32
	ForPower        *big.Int
	AgainstPower    *big.Int
	AbstainPower    *big.Int
	Executed        bool
	Defeated        bool
	QuorumReached   bool
}

// Status derives the lifecycle phase at the supplied timestamp.
func (p *Proposal) Status(now uint64) ProposalStatus {
	switch {
	case p == nil:
		return ProposalStatusPending
	case p.Executed:
		return ProposalStatusExecuted
	case p.Defeated:
		return ProposalStatusDefeated
	case now < p.VotingStart:
		return ProposalStatusPending
	case now < p.VotingEnd:
		return ProposalStatusActive
	default:
		return ProposalStatusClosed
	}
}

// Terminal reports whether the proposal already executed or was defeated.
func (p *Proposal) Terminal() bool {
	return p != nil && (p.Executed || p.Defeated)
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.NewValue = copyBig(p.NewValue)
	clone.ForPower = copyBig(p.ForPower)
	clone.AgainstPower = copyBig(p.AgainstPower)
	clone.AbstainPower = copyBig(p.AbstainPower)
	return &clone
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Vote describes a single holder's ballot. The first ballot per (proposal,
// voter) pair is final; resubmission is rejected.
type Vote struct {
	ProposalID uint64
	Voter      [20]byte
	Choice     VoteChoice
	Power      *big.Int
	Timestamp  uint64
}

// Tally captures the aggregated voting power distribution for a proposal
// alongside the parameters applied to determine the outcome.
type Tally struct {
	ForPower     *big.Int
	AgainstPower *big.Int
	AbstainPower *big.Int
	TotalSupply  *big.Int
	QuorumBps    uint32
	Quorum       bool
	Passed       bool
}

// Policy captures the runtime knobs controlling proposal admission and
// passage.
type Policy struct {
	// MinProposerBps is the share of supply a proposer must hold.
	MinProposerBps uint32
	// QuorumBps is the participating-power fraction required for the
	// outcome to count.
	QuorumBps           uint32
	VotingDelaySeconds  uint64
	VotingPeriodSeconds uint64
	// MaxRateDeltaBps bounds rate-adjustment proposals relative to the rate
	// at proposal time.
	MaxRateDeltaBps uint32
	// MaxReserveBps bounds reserve allocations relative to principal.
	MaxReserveBps uint32
	// AllowedParams are the canonical keys permitted for param.update
	// proposals.
	AllowedParams []string
}
