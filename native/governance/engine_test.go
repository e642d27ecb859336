package governance

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"yieldnet/native/agreement"
	"yieldnet/native/ledger"
)

type fakeState struct {
	proposals    map[uint64]*Proposal
	nextProposal uint64
	votes        map[string]*Vote
	ledgers      map[uint64]*ledger.Ledger
	agreements   map[uint64]*agreement.YieldAgreement
	params       map[string][]byte
	balances     map[[20]byte]*big.Int
}

func newFakeState() *fakeState {
	return &fakeState{
		proposals:  make(map[uint64]*Proposal),
		votes:      make(map[string]*Vote),
		ledgers:    make(map[uint64]*ledger.Ledger),
		agreements: make(map[uint64]*agreement.YieldAgreement),
		params:     make(map[string][]byte),
		balances:   make(map[[20]byte]*big.Int),
	}
}

func (f *fakeState) GovernanceNextProposalID() (uint64, error) {
	f.nextProposal++
	return f.nextProposal, nil
}

func (f *fakeState) GovernancePutProposal(p *Proposal) error {
	f.proposals[p.ID] = p.Clone()
	return nil
}

func (f *fakeState) GovernanceGetProposal(id uint64) (*Proposal, bool, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func voteKey(id uint64, voter [20]byte) string {
	return fmt.Sprintf("%d/%x", id, voter)
}

func (f *fakeState) GovernanceHasVoted(id uint64, voter [20]byte) (bool, error) {
	_, ok := f.votes[voteKey(id, voter)]
	return ok, nil
}

func (f *fakeState) GovernancePutVote(v *Vote) error {
	f.votes[voteKey(v.ProposalID, v.Voter)] = v
	return nil
}

func (f *fakeState) LedgerGet(agreementID uint64) (*ledger.Ledger, bool, error) {
	l, ok := f.ledgers[agreementID]
	if !ok {
		return nil, false, nil
	}
	return l.Clone(), true, nil
}

func (f *fakeState) AgreementGet(id uint64) (*agreement.YieldAgreement, bool, error) {
	record, ok := f.agreements[id]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (f *fakeState) AgreementPut(record *agreement.YieldAgreement) error {
	f.agreements[record.ID] = record.Clone()
	return nil
}

func (f *fakeState) ParamStoreSet(name string, value []byte) error {
	f.params[name] = value
	return nil
}

func (f *fakeState) AccountBalance(addr [20]byte) (*big.Int, error) {
	balance, ok := f.balances[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (f *fakeState) AccountCredit(addr [20]byte, amount *big.Int) error {
	balance, _ := f.AccountBalance(addr)
	f.balances[addr] = balance.Add(balance, amount)
	return nil
}

func (f *fakeState) AccountDebit(addr [20]byte, amount *big.Int) error {
	balance, _ := f.AccountBalance(addr)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient funds")
	}
	f.balances[addr] = balance.Sub(balance, amount)
	return nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

var (
	owner    = addr(0x01)
	majority = addr(0x02)
	minority = addr(0x03)
	marginal = addr(0x04)
)

type harness struct {
	engine *Engine
	state  *fakeState
	now    int64
}

func testPolicy() Policy {
	return Policy{
		MinProposerBps:      1000,
		QuorumBps:           2000,
		VotingDelaySeconds:  100,
		VotingPeriodSeconds: 1000,
		MaxRateDeltaBps:     500,
		MaxReserveBps:       2000,
		AllowedParams:       []string{"fees.distributionBps"},
	}
}

// newHarness seeds agreement 1 (principal 10000 at 10%) with a share ledger of
// supply 1000 split 600/300/100 across majority, minority and marginal.
func newHarness(t *testing.T) *harness {
	t.Helper()
	state := newFakeState()
	state.agreements[1] = &agreement.YieldAgreement{
		ID:             1,
		AssetID:        7,
		Owner:          owner,
		Principal:      big.NewInt(10_000),
		TermMonths:     12,
		RateBps:        1000,
		Active:         true,
		TotalRepaid:    big.NewInt(0),
		ReserveBalance: big.NewInt(0),
	}
	state.ledgers[1] = &ledger.Ledger{
		AgreementID: 1,
		TotalSupply: big.NewInt(1000),
		Holders: []ledger.Holder{
			{Address: majority, Balance: big.NewInt(600)},
			{Address: minority, Balance: big.NewInt(300)},
			{Address: marginal, Balance: big.NewInt(100)},
		},
	}

	engine := NewEngine(testPolicy())
	engine.SetState(state)
	h := &harness{engine: engine, state: state, now: 1_000_000}
	engine.SetNowFunc(func() time.Time { return time.Unix(h.now, 0) })
	return h
}

func (h *harness) propose(t *testing.T, kind ProposalKind, value int64, paramKey string) uint64 {
	t.Helper()
	id, err := h.engine.Propose(majority, 1, kind, big.NewInt(value), paramKey, "adjust terms")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	return id
}

func (h *harness) openVoting(t *testing.T, id uint64) {
	t.Helper()
	proposal, err := h.engine.Get(id)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	h.now = int64(proposal.VotingStart)
}

func (h *harness) closeVoting(t *testing.T, id uint64) {
	t.Helper()
	proposal, err := h.engine.Get(id)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	h.now = int64(proposal.VotingEnd)
}

// pass drives the proposal through a winning majority vote and executes it.
func (h *harness) pass(t *testing.T, id uint64) *Tally {
	t.Helper()
	h.openVoting(t, id)
	if err := h.engine.CastVote(id, majority, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	h.closeVoting(t, id)
	tally, err := h.engine.Execute(id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !tally.Passed {
		t.Fatalf("expected passage, tally %+v", tally)
	}
	return tally
}

func TestProposeRequiresOwnershipThreshold(t *testing.T) {
	h := newHarness(t)

	if _, err := h.engine.Propose(addr(0x99), 1, KindRateAdjust, big.NewInt(1200), "", "raise rate"); !errors.Is(err, errInsufficientPower) {
		t.Fatalf("expected power rejection for stranger, got %v", err)
	}
	// 100/1000 shares is exactly the 1000 bps floor.
	if _, err := h.engine.Propose(marginal, 1, KindRateAdjust, big.NewInt(1200), "", "raise rate"); err != nil {
		t.Fatalf("marginal holder at the threshold: %v", err)
	}
}

func TestProposeRateBoundsAtCreation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name  string
		value int64
		want  error
	}{
		{name: "above delta", value: 1501, want: errRateDelta},
		{name: "below delta", value: 400, want: errRateDelta},
		{name: "above window", value: 2001, want: errRateWindow},
		{name: "below window", value: 99, want: errRateWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.engine.Propose(majority, 1, KindRateAdjust, big.NewInt(tc.value), "", "adjust"); !errors.Is(err, tc.want) {
				t.Fatalf("value %d: got %v, want %v", tc.value, err, tc.want)
			}
		})
	}
	if _, err := h.engine.Propose(majority, 1, KindRateAdjust, big.NewInt(1500), "", "adjust"); err != nil {
		t.Fatalf("delta edge: %v", err)
	}
}

func TestProposeReserveAndPenaltyBounds(t *testing.T) {
	h := newHarness(t)

	// MaxReserveBps 2000 of principal 10000 caps allocations at 2000.
	if _, err := h.engine.Propose(majority, 1, KindReserveAllocate, big.NewInt(2001), "", "reserve"); !errors.Is(err, errReserveBound) {
		t.Fatalf("expected reserve bound rejection, got %v", err)
	}
	if _, err := h.engine.Propose(majority, 1, KindReserveAllocate, big.NewInt(0), "", "reserve"); !errors.Is(err, errReserveBound) {
		t.Fatalf("expected zero allocation rejection, got %v", err)
	}
	if _, err := h.engine.Propose(majority, 1, KindReserveAllocate, big.NewInt(2000), "", "reserve"); err != nil {
		t.Fatalf("bound edge: %v", err)
	}
	if _, err := h.engine.Propose(majority, 1, KindPenaltyRate, big.NewInt(10_001), "", "penalty"); !errors.Is(err, errPenaltyBound) {
		t.Fatalf("expected penalty bound rejection, got %v", err)
	}
}

func TestProposeParamAllowList(t *testing.T) {
	h := newHarness(t)

	if _, err := h.engine.Propose(majority, 1, KindParamUpdate, big.NewInt(150), "fees.unknown", "fees"); err == nil {
		t.Fatalf("expected allow-list rejection")
	}
	if _, err := h.engine.Propose(majority, 1, KindParamUpdate, big.NewInt(150), "fees.distributionBps", "fees"); err != nil {
		t.Fatalf("allow-listed key: %v", err)
	}
}

func TestCastVoteWindowAndFinality(t *testing.T) {
	h := newHarness(t)
	id := h.propose(t, KindRateAdjust, 1200, "")

	if err := h.engine.CastVote(id, majority, VoteChoiceFor); !errors.Is(err, errVotingNotStarted) {
		t.Fatalf("expected pre-window rejection, got %v", err)
	}
	h.openVoting(t, id)
	if err := h.engine.CastVote(id, addr(0x99), VoteChoiceFor); !errors.Is(err, errZeroVotingPower) {
		t.Fatalf("expected zero-power rejection, got %v", err)
	}
	if err := h.engine.CastVote(id, majority, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := h.engine.CastVote(id, majority, VoteChoiceAgainst); !errors.Is(err, errAlreadyVoted) {
		t.Fatalf("expected finality rejection, got %v", err)
	}
	h.closeVoting(t, id)
	if err := h.engine.CastVote(id, minority, VoteChoiceFor); !errors.Is(err, errVotingClosed) {
		t.Fatalf("expected post-window rejection, got %v", err)
	}

	proposal, err := h.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if proposal.ForPower.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("for power = %s, want 600", proposal.ForPower)
	}
}

func TestExecuteAppliesRateAdjust(t *testing.T) {
	h := newHarness(t)
	id := h.propose(t, KindRateAdjust, 1400, "")

	if _, err := h.engine.Execute(id); !errors.Is(err, errVotingInProgress) {
		t.Fatalf("expected in-progress rejection, got %v", err)
	}

	tally := h.pass(t, id)
	if !tally.Quorum {
		t.Fatalf("expected quorum with 600/1000 participating")
	}

	target := h.state.agreements[1]
	if target.RateBps != 1400 {
		t.Fatalf("rate = %d, want 1400", target.RateBps)
	}

	// Terminal exactly once.
	if _, err := h.engine.Execute(id); !errors.Is(err, errProposalTerminal) {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
}

func TestExecuteDefeatsWithoutQuorum(t *testing.T) {
	h := newHarness(t)
	id := h.propose(t, KindRateAdjust, 1400, "")

	// 100/1000 participating misses the 2000 bps quorum.
	h.openVoting(t, id)
	if err := h.engine.CastVote(id, marginal, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	h.closeVoting(t, id)

	tally, err := h.engine.Execute(id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if tally.Quorum || tally.Passed {
		t.Fatalf("expected quorum failure, tally %+v", tally)
	}
	proposal, err := h.engine.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !proposal.Defeated {
		t.Fatalf("proposal not marked defeated")
	}
	if h.state.agreements[1].RateBps != 1000 {
		t.Fatalf("defeated proposal mutated the agreement")
	}
}

func TestExecuteDefeatsOnTie(t *testing.T) {
	h := newHarness(t)
	id := h.propose(t, KindRateAdjust, 1400, "")

	h.openVoting(t, id)
	if err := h.engine.CastVote(id, minority, VoteChoiceFor); err != nil {
		t.Fatalf("for vote: %v", err)
	}
	if err := h.engine.CastVote(id, addr(0x05), VoteChoiceAgainst); !errors.Is(err, errZeroVotingPower) {
		t.Fatalf("stranger vote: %v", err)
	}
	// Matching against-power: quorum is met, but for must strictly exceed
	// against for passage.
	h.state.ledgers[1].Holders = append(h.state.ledgers[1].Holders, ledger.Holder{Address: addr(0x05), Balance: big.NewInt(300)})
	h.state.ledgers[1].TotalSupply = big.NewInt(1300)
	if err := h.engine.CastVote(id, addr(0x05), VoteChoiceAgainst); err != nil {
		t.Fatalf("against vote: %v", err)
	}
	h.closeVoting(t, id)

	tally, err := h.engine.Execute(id)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !tally.Quorum {
		t.Fatalf("expected quorum")
	}
	if tally.Passed {
		t.Fatalf("tie must not pass")
	}
}

func TestExecuteReserveLifecycle(t *testing.T) {
	h := newHarness(t)
	h.state.balances[owner] = big.NewInt(5000)

	allocate := h.propose(t, KindReserveAllocate, 2000, "")
	h.pass(t, allocate)

	if got := h.state.balances[owner]; got.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("owner balance after allocation = %s, want 3000", got)
	}
	if got := h.state.agreements[1].ReserveBalance; got.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("reserve = %s, want 2000", got)
	}

	withdraw := h.propose(t, KindReserveWithdraw, 1500, "")
	h.pass(t, withdraw)

	if got := h.state.balances[owner]; got.Cmp(big.NewInt(4500)) != 0 {
		t.Fatalf("owner balance after withdrawal = %s, want 4500", got)
	}
	if got := h.state.agreements[1].ReserveBalance; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("reserve = %s, want 500", got)
	}

	// Withdrawing past the reserve fails at execution and the proposal stays
	// open rather than burning its terminal transition.
	overdraw := h.propose(t, KindReserveWithdraw, 1000, "")
	h.openVoting(t, overdraw)
	if err := h.engine.CastVote(overdraw, majority, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	h.closeVoting(t, overdraw)
	if _, err := h.engine.Execute(overdraw); !errors.Is(err, errReserveShort) {
		t.Fatalf("expected reserve shortfall, got %v", err)
	}
	proposal, err := h.engine.Get(overdraw)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if proposal.Terminal() {
		t.Fatalf("failed execution must not mark the proposal terminal")
	}
}

func TestExecuteReserveAllocationChecksOwnerBalance(t *testing.T) {
	h := newHarness(t)
	h.state.balances[owner] = big.NewInt(100)

	id := h.propose(t, KindReserveAllocate, 2000, "")
	h.openVoting(t, id)
	if err := h.engine.CastVote(id, majority, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	h.closeVoting(t, id)
	if _, err := h.engine.Execute(id); !errors.Is(err, errOwnerBalance) {
		t.Fatalf("expected owner balance rejection, got %v", err)
	}
}

func TestExecuteRepaymentFlags(t *testing.T) {
	h := newHarness(t)

	id := h.propose(t, KindRepaymentFlags, int64(RepaymentFlagPartial|RepaymentFlagEarly), "")
	h.pass(t, id)
	target := h.state.agreements[1]
	if !target.AllowPartial || !target.AllowEarly {
		t.Fatalf("flags not applied: partial=%v early=%v", target.AllowPartial, target.AllowEarly)
	}

	clear := h.propose(t, KindRepaymentFlags, 0, "")
	h.pass(t, clear)
	target = h.state.agreements[1]
	if target.AllowPartial || target.AllowEarly {
		t.Fatalf("flags not cleared: partial=%v early=%v", target.AllowPartial, target.AllowEarly)
	}
}

func TestExecuteParamUpdateWritesStore(t *testing.T) {
	h := newHarness(t)

	id := h.propose(t, KindParamUpdate, 150, "fees.distributionBps")
	h.pass(t, id)

	stored, ok := h.state.params["fees.distributionBps"]
	if !ok {
		t.Fatalf("parameter not written")
	}
	if string(stored) != `"150"` {
		t.Fatalf("stored value = %s, want %q", stored, "150")
	}
}

func TestExecuteGracePeriodRequiresActiveTarget(t *testing.T) {
	h := newHarness(t)

	id := h.propose(t, KindGracePeriod, 7200, "")
	h.state.agreements[1].Active = false
	h.openVoting(t, id)
	if err := h.engine.CastVote(id, majority, VoteChoiceFor); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	h.closeVoting(t, id)
	if _, err := h.engine.Execute(id); !errors.Is(err, errAgreementInactive) {
		t.Fatalf("expected inactive target rejection, got %v", err)
	}
}
