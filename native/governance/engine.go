package governance

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"yieldnet/core/events"
	"yieldnet/native/agreement"
	"yieldnet/native/common"
	"yieldnet/native/ledger"
)

var (
	errStateNotConfigured = errors.New("governance: state not configured")
	errProposalNotFound   = errors.New("governance: proposal not found")
	errAgreementNotFound  = errors.New("governance: target agreement not found")
	errAgreementInactive  = errors.New("governance: target agreement not active")
	errInsufficientPower  = errors.New("governance: proposer below minimum ownership threshold")
	errZeroVotingPower    = errors.New("governance: voter has zero voting power")
	errAlreadyVoted       = errors.New("governance: voter already cast a ballot")
	errVotingNotStarted   = errors.New("governance: voting has not started")
	errVotingClosed       = errors.New("governance: voting period closed")
	errVotingInProgress   = errors.New("governance: voting still in progress")
	errProposalTerminal   = errors.New("governance: proposal already terminal")
	errRateDelta          = errors.New("governance: rate adjustment outside bounded delta")
	errRateWindow         = errors.New("governance: rate outside permitted window")
	errReserveBound       = errors.New("governance: reserve allocation exceeds bounded fraction of principal")
	errReserveShort       = errors.New("governance: reserve balance insufficient for withdrawal")
	errInvalidValue       = errors.New("governance: proposal value must be non-negative")
	errPenaltyBound       = errors.New("governance: penalty rate exceeds 10000 bps")
	errOwnerBalance       = errors.New("governance: owner balance insufficient for reserve allocation")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "governance"

type engineState interface {
	GovernanceNextProposalID() (uint64, error)
	GovernancePutProposal(*Proposal) error
	GovernanceGetProposal(id uint64) (*Proposal, bool, error)
	GovernanceHasVoted(id uint64, voter [20]byte) (bool, error)
	GovernancePutVote(*Vote) error
	LedgerGet(agreementID uint64) (*ledger.Ledger, bool, error)
	AgreementGet(id uint64) (*agreement.YieldAgreement, bool, error)
	AgreementPut(*agreement.YieldAgreement) error
	ParamStoreSet(name string, value []byte) error
	AccountBalance(addr [20]byte) (*big.Int, error)
	AccountCredit(addr [20]byte, amount *big.Int) error
	AccountDebit(addr [20]byte, amount *big.Int) error
}

// Engine orchestrates proposal admission, vote tallying and the single
// execution path allowed to mutate live agreement parameters. Voting power is
// the voter's share balance in the target agreement's ledger.
type Engine struct {
	state   engineState
	policy  Policy
	allowed map[string]struct{}
	pauses  common.PauseView
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewEngine constructs a governance engine with default no-op dependencies.
func NewEngine(policy Policy) *Engine {
	e := &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	e.SetPolicy(policy)
	return e
}

// SetState wires the engine to the state backend providing persistence
// helpers.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPolicy updates the runtime policy governing proposal admission.
func (e *Engine) SetPolicy(policy Policy) {
	if e == nil {
		return
	}
	e.policy = policy
	e.allowed = make(map[string]struct{}, len(policy.AllowedParams))
	for _, raw := range policy.AllowedParams {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		e.allowed[trimmed] = struct{}{}
	}
}

func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used to stamp proposals. Nil restores
// the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Get loads a proposal record.
func (e *Engine) Get(proposalID uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, ok, err := e.state.GovernanceGetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, errProposalNotFound
	}
	return proposal, nil
}

// Propose admits a proposal after validating the proposer's voting power and
// the kind-specific value bounds. Out-of-bounds requests are rejected here, at
// creation, never at execution. The allocated proposal identifier is returned.
func (e *Engine) Propose(proposer [20]byte, agreementID uint64, kind ProposalKind, newValue *big.Int, paramKey, description string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("governance: unsupported proposal kind %q", kind)
	}
	if strings.TrimSpace(description) == "" {
		return 0, fmt.Errorf("governance: description must not be empty")
	}
	value := big.NewInt(0)
	if newValue != nil {
		value = new(big.Int).Set(newValue)
	}
	if value.Sign() < 0 {
		return 0, errInvalidValue
	}

	target, ok, err := e.state.AgreementGet(agreementID)
	if err != nil {
		return 0, err
	}
	if !ok || target == nil {
		return 0, errAgreementNotFound
	}

	l, ok, err := e.state.LedgerGet(agreementID)
	if err != nil {
		return 0, err
	}
	if !ok || l == nil || l.TotalSupply == nil || l.TotalSupply.Sign() == 0 {
		return 0, errAgreementNotFound
	}
	power := l.BalanceOf(proposer)
	lhs := new(big.Int).Mul(power, basisPoints)
	rhs := new(big.Int).Mul(l.TotalSupply, new(big.Int).SetUint64(uint64(e.policy.MinProposerBps)))
	if lhs.Cmp(rhs) < 0 {
		return 0, errInsufficientPower
	}

	baseline := target.RateBps
	switch kind {
	case KindRateAdjust:
		if !value.IsUint64() {
			return 0, errRateWindow
		}
		requested := value.Uint64()
		if requested < uint64(agreement.MinRateBps) || requested > uint64(agreement.MaxRateBps) {
			return 0, errRateWindow
		}
		delta := uint64(e.policy.MaxRateDeltaBps)
		current := uint64(baseline)
		if requested > current+delta || requested+delta < current {
			return 0, errRateDelta
		}
	case KindReserveAllocate:
		bound := new(big.Int).Mul(target.Principal, new(big.Int).SetUint64(uint64(e.policy.MaxReserveBps)))
		bound.Quo(bound, basisPoints)
		if value.Sign() == 0 || value.Cmp(bound) > 0 {
			return 0, errReserveBound
		}
	case KindReserveWithdraw:
		if value.Sign() == 0 {
			return 0, errInvalidValue
		}
	case KindPenaltyRate:
		if !value.IsUint64() || value.Uint64() > 10_000 {
			return 0, errPenaltyBound
		}
	case KindParamUpdate:
		trimmed := strings.TrimSpace(paramKey)
		if trimmed == "" {
			return 0, fmt.Errorf("governance: parameter key must not be empty")
		}
		if _, ok := e.allowed[trimmed]; !ok {
			return 0, fmt.Errorf("governance: parameter %q not in allow-list", trimmed)
		}
		paramKey = trimmed
	}

	id, err := e.state.GovernanceNextProposalID()
	if err != nil {
		return 0, err
	}
	now := e.now()
	proposal := &Proposal{
		ID:              id,
		Proposer:        proposer,
		AgreementID:     agreementID,
		Kind:            kind,
		NewValue:        value,
		ParamKey:        paramKey,
		Description:     strings.TrimSpace(description),
		CreatedAt:       now,
		VotingStart:     now + e.policy.VotingDelaySeconds,
		VotingEnd:       now + e.policy.VotingDelaySeconds + e.policy.VotingPeriodSeconds,
		BaselineRateBps: baseline,
		ForPower:        big.NewInt(0),
		AgainstPower:    big.NewInt(0),
		AbstainPower:    big.NewInt(0),
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return 0, err
	}
	e.emit(newProposedEvent(proposal))
	return id, nil
}

// CastVote records the caller's ballot. Votes are accepted only inside the
// voting window, the first ballot per voter is final, and voting power is the
// caller's current share balance in the target ledger.
func (e *Engine) CastVote(proposalID uint64, voter [20]byte, choice VoteChoice) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !choice.Valid() {
		return fmt.Errorf("governance: invalid vote choice %q", choice)
	}
	proposal, err := e.Get(proposalID)
	if err != nil {
		return err
	}
	if proposal.Terminal() {
		return errProposalTerminal
	}
	now := e.now()
	if now < proposal.VotingStart {
		return errVotingNotStarted
	}
	if now >= proposal.VotingEnd {
		return errVotingClosed
	}

	l, ok, err := e.state.LedgerGet(proposal.AgreementID)
	if err != nil {
		return err
	}
	if !ok || l == nil {
		return errAgreementNotFound
	}
	power := l.BalanceOf(voter)
	if power.Sign() == 0 {
		return errZeroVotingPower
	}
	voted, err := e.state.GovernanceHasVoted(proposalID, voter)
	if err != nil {
		return err
	}
	if voted {
		return errAlreadyVoted
	}

	switch choice {
	case VoteChoiceFor:
		proposal.ForPower = new(big.Int).Add(proposal.ForPower, power)
	case VoteChoiceAgainst:
		proposal.AgainstPower = new(big.Int).Add(proposal.AgainstPower, power)
	case VoteChoiceAbstain:
		proposal.AbstainPower = new(big.Int).Add(proposal.AbstainPower, power)
	}
	vote := &Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Choice:     choice,
		Power:      power,
		Timestamp:  now,
	}
	if err := e.state.GovernancePutVote(vote); err != nil {
		return err
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.emit(newVoteEvent(vote))
	return nil
}

// Execute determines the outcome once the voting window has closed and applies
// the encoded mutation on passage. A proposal transitions to a terminal state
// exactly once; re-execution fails.
func (e *Engine) Execute(proposalID uint64) (*Tally, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	proposal, err := e.Get(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Terminal() {
		return nil, errProposalTerminal
	}
	now := e.now()
	if now < proposal.VotingEnd {
		return nil, errVotingInProgress
	}

	l, ok, err := e.state.LedgerGet(proposal.AgreementID)
	if err != nil {
		return nil, err
	}
	if !ok || l == nil || l.TotalSupply == nil || l.TotalSupply.Sign() == 0 {
		return nil, errAgreementNotFound
	}

	participating := new(big.Int).Add(proposal.ForPower, proposal.AgainstPower)
	participating.Add(participating, proposal.AbstainPower)
	lhs := new(big.Int).Mul(participating, basisPoints)
	rhs := new(big.Int).Mul(l.TotalSupply, new(big.Int).SetUint64(uint64(e.policy.QuorumBps)))
	quorum := lhs.Cmp(rhs) >= 0
	passed := quorum && proposal.ForPower.Cmp(proposal.AgainstPower) > 0

	tally := &Tally{
		ForPower:     new(big.Int).Set(proposal.ForPower),
		AgainstPower: new(big.Int).Set(proposal.AgainstPower),
		AbstainPower: new(big.Int).Set(proposal.AbstainPower),
		TotalSupply:  new(big.Int).Set(l.TotalSupply),
		QuorumBps:    e.policy.QuorumBps,
		Quorum:       quorum,
		Passed:       passed,
	}

	proposal.QuorumReached = quorum
	if !passed {
		proposal.Defeated = true
		if err := e.state.GovernancePutProposal(proposal); err != nil {
			return nil, err
		}
		e.emit(newDefeatedEvent(proposal, tally))
		return tally, nil
	}

	if err := e.apply(proposal); err != nil {
		return nil, err
	}
	proposal.Executed = true
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(newExecutedEvent(proposal, tally))
	return tally, nil
}

// apply writes the passed proposal's mutation into the target agreement or
// the global parameter store. This is the only path permitted to touch the
// governed agreement fields.
func (e *Engine) apply(proposal *Proposal) error {
	if proposal.Kind == KindParamUpdate {
		encoded := []byte(fmt.Sprintf("%q", proposal.NewValue.String()))
		return e.state.ParamStoreSet(proposal.ParamKey, encoded)
	}

	target, ok, err := e.state.AgreementGet(proposal.AgreementID)
	if err != nil {
		return err
	}
	if !ok || target == nil {
		return errAgreementNotFound
	}

	switch proposal.Kind {
	case KindRateAdjust, KindGracePeriod, KindPenaltyRate, KindRepaymentFlags:
		if target.Status() != agreement.StatusActive {
			return errAgreementInactive
		}
	}

	switch proposal.Kind {
	case KindRateAdjust:
		rate := proposal.NewValue.Uint64()
		// Clamp back into the permitted window whenever governance
		// touches the rate.
		if rate < uint64(agreement.MinRateBps) {
			rate = uint64(agreement.MinRateBps)
		}
		if rate > uint64(agreement.MaxRateBps) {
			rate = uint64(agreement.MaxRateBps)
		}
		target.RateBps = uint32(rate)
	case KindGracePeriod:
		if !proposal.NewValue.IsUint64() {
			return errInvalidValue
		}
		target.GracePeriodSeconds = proposal.NewValue.Uint64()
	case KindPenaltyRate:
		target.PenaltyRateBps = uint32(proposal.NewValue.Uint64())
	case KindRepaymentFlags:
		flags := proposal.NewValue.Uint64()
		target.AllowPartial = flags&RepaymentFlagPartial != 0
		target.AllowEarly = flags&RepaymentFlagEarly != 0
	case KindReserveAllocate:
		balance, err := e.state.AccountBalance(target.Owner)
		if err != nil {
			return err
		}
		if balance.Cmp(proposal.NewValue) < 0 {
			return errOwnerBalance
		}
		if err := e.state.AccountDebit(target.Owner, proposal.NewValue); err != nil {
			return err
		}
		target.ReserveBalance = new(big.Int).Add(target.ReserveBalance, proposal.NewValue)
	case KindReserveWithdraw:
		if target.ReserveBalance.Cmp(proposal.NewValue) < 0 {
			return errReserveShort
		}
		if err := e.state.AccountCredit(target.Owner, proposal.NewValue); err != nil {
			return err
		}
		target.ReserveBalance = new(big.Int).Sub(target.ReserveBalance, proposal.NewValue)
	}

	return e.state.AgreementPut(target)
}
