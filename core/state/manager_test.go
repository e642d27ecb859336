package state

import (
	"errors"
	"math/big"
	"testing"

	"yieldnet/core/types"
	"yieldnet/native/agreement"
	"yieldnet/native/governance"
	"yieldnet/native/ledger"
	"yieldnet/native/registry"
	"yieldnet/storage"
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestSequencesStartAtOne(t *testing.T) {
	m := newTestManager()

	first, err := m.AgreementsNextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	second, err := m.AgreementsNextID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("agreement ids = %d, %d, want 1, 2", first, second)
	}

	// Each sequence advances independently.
	assetID, err := m.RegistryNextAssetID()
	if err != nil {
		t.Fatalf("asset id: %v", err)
	}
	proposalID, err := m.GovernanceNextProposalID()
	if err != nil {
		t.Fatalf("proposal id: %v", err)
	}
	if assetID != 1 || proposalID != 1 {
		t.Fatalf("sequences not independent: asset=%d proposal=%d", assetID, proposalID)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	m := newTestManager()
	a := addr(0x01)

	account, err := m.GetAccount(a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Balance.Sign() != 0 || account.Nonce != 0 {
		t.Fatalf("unknown account not zero valued: %+v", account)
	}

	if err := m.PutAccount(a, &types.Account{Nonce: 3, Balance: big.NewInt(500)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, err := m.GetAccount(a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Nonce != 3 || loaded.Balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if err := m.PutAccount(a, nil); err == nil {
		t.Fatalf("expected nil account rejection")
	}
	if err := m.PutAccount(a, &types.Account{Balance: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected negative balance rejection")
	}
}

func TestAccountCreditDebit(t *testing.T) {
	m := newTestManager()
	a := addr(0x01)

	if err := m.AccountCredit(a, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := m.AccountDebit(a, big.NewInt(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	balance, err := m.AccountBalance(a)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balance = %s, want 60", balance)
	}
	if err := m.AccountDebit(a, big.NewInt(61)); !errors.Is(err, errInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestAgreementRoundTrip(t *testing.T) {
	m := newTestManager()
	record := &agreement.YieldAgreement{
		ID:                 1,
		AssetID:            7,
		Owner:              addr(0x01),
		Principal:          big.NewInt(10_000),
		TermMonths:         12,
		RateBps:            1000,
		TotalRepaid:        big.NewInt(330),
		Active:             true,
		GracePeriodSeconds: 86_400,
		PenaltyRateBps:     500,
		DefaultThreshold:   3,
		AllowPartial:       true,
		DesignatedPayer:    addr(0x02),
		MissedPayments:     1,
		LastMissedAt:       999_000,
		ReserveBalance:     big.NewInt(2000),
		CreatedAt:          990_000,
	}
	if err := m.AgreementPut(record); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := m.AgreementGet(1)
	if err != nil || !ok {
		t.Fatalf("get = (%v, %v)", ok, err)
	}
	if loaded.Principal.Cmp(record.Principal) != 0 || loaded.TotalRepaid.Cmp(record.TotalRepaid) != 0 {
		t.Fatalf("amounts mismatch: %+v", loaded)
	}
	if loaded.DesignatedPayer != record.DesignatedPayer || loaded.MissedPayments != 1 {
		t.Fatalf("fields mismatch: %+v", loaded)
	}
	if loaded.ReserveBalance.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("reserve mismatch: %s", loaded.ReserveBalance)
	}

	if _, ok, err := m.AgreementGet(99); err != nil || ok {
		t.Fatalf("unknown agreement reported as existing")
	}
}

func TestAgreementPutRejectsUnallocatedID(t *testing.T) {
	m := newTestManager()
	record := &agreement.YieldAgreement{
		Principal:  big.NewInt(100),
		TermMonths: 12,
		RateBps:    500,
	}
	if err := m.AgreementPut(record); err == nil {
		t.Fatalf("expected id rejection")
	}
}

func TestAgreementMissedMarking(t *testing.T) {
	m := newTestManager()

	seen, err := m.AgreementMissedSeen(1, 999_000)
	if err != nil || seen {
		t.Fatalf("fresh due date reported seen")
	}
	if err := m.AgreementMarkMissed(1, 999_000); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = m.AgreementMissedSeen(1, 999_000)
	if err != nil || !seen {
		t.Fatalf("marked due date not seen")
	}
	// Distinct agreement and date keys do not collide.
	if seen, _ := m.AgreementMissedSeen(2, 999_000); seen {
		t.Fatalf("due date leaked across agreements")
	}
	if seen, _ := m.AgreementMissedSeen(1, 999_001); seen {
		t.Fatalf("adjacent due date reported seen")
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	m := newTestManager()
	l := &ledger.Ledger{
		AgreementID: 1,
		TotalSupply: big.NewInt(1000),
		Holders: []ledger.Holder{
			{Address: addr(0x01), Balance: big.NewInt(600), ReceiptCount: 2, LastReceiptAt: 990_000},
			{Address: addr(0x02), Balance: big.NewInt(400)},
		},
		Allowances: []ledger.Allowance{
			{Owner: addr(0x01), Spender: addr(0x03), Amount: big.NewInt(50)},
		},
		LockupUntil: 995_000,
	}
	if err := m.LedgerPut(l); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := m.LedgerGet(1)
	if err != nil || !ok {
		t.Fatalf("get = (%v, %v)", ok, err)
	}
	if loaded.TotalSupply.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply = %s", loaded.TotalSupply)
	}
	if loaded.BalanceOf(addr(0x01)).Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("holder balance = %s", loaded.BalanceOf(addr(0x01)))
	}
	if loaded.Holders[0].ReceiptCount != 2 || loaded.Holders[0].LastReceiptAt != 990_000 {
		t.Fatalf("receipt metadata lost: %+v", loaded.Holders[0])
	}
	if loaded.Allowance(addr(0x01), addr(0x03)).Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("allowance = %s", loaded.Allowance(addr(0x01), addr(0x03)))
	}
	if loaded.LockupUntil != 995_000 {
		t.Fatalf("lockup = %d", loaded.LockupUntil)
	}
}

func TestLedgerGetRejectsCorruptedSupply(t *testing.T) {
	m := newTestManager()
	// Holder balances exceeding the recorded supply violate the register
	// invariant and must surface at read time.
	l := &ledger.Ledger{
		AgreementID: 1,
		TotalSupply: big.NewInt(100),
		Holders: []ledger.Holder{
			{Address: addr(0x01), Balance: big.NewInt(600)},
		},
	}
	if err := m.LedgerPut(l); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, _, err := m.LedgerGet(1); err == nil {
		t.Fatalf("expected invariant failure on read")
	}
}

func TestProposalRoundTrip(t *testing.T) {
	m := newTestManager()
	proposal := &governance.Proposal{
		ID:              1,
		Proposer:        addr(0x01),
		AgreementID:     4,
		Kind:            governance.KindRateAdjust,
		NewValue:        big.NewInt(1400),
		Description:     "raise rate",
		CreatedAt:       990_000,
		VotingStart:     990_100,
		VotingEnd:       991_100,
		BaselineRateBps: 1000,
		ForPower:        big.NewInt(600),
		AgainstPower:    big.NewInt(100),
		AbstainPower:    big.NewInt(0),
		QuorumReached:   true,
		Executed:        true,
	}
	if err := m.GovernancePutProposal(proposal); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := m.GovernanceGetProposal(1)
	if err != nil || !ok {
		t.Fatalf("get = (%v, %v)", ok, err)
	}
	if loaded.Kind != governance.KindRateAdjust || loaded.NewValue.Cmp(big.NewInt(1400)) != 0 {
		t.Fatalf("payload mismatch: %+v", loaded)
	}
	if loaded.ForPower.Cmp(big.NewInt(600)) != 0 || !loaded.Executed || !loaded.QuorumReached {
		t.Fatalf("tally mismatch: %+v", loaded)
	}
	if loaded.BaselineRateBps != 1000 {
		t.Fatalf("baseline = %d", loaded.BaselineRateBps)
	}

	if err := m.GovernancePutProposal(&governance.Proposal{}); err == nil {
		t.Fatalf("expected id rejection")
	}
}

func TestVoteFinality(t *testing.T) {
	m := newTestManager()
	vote := &governance.Vote{
		ProposalID: 1,
		Voter:      addr(0x01),
		Choice:     governance.VoteChoiceFor,
		Power:      big.NewInt(600),
		Timestamp:  990_500,
	}
	if err := m.GovernancePutVote(vote); err != nil {
		t.Fatalf("put: %v", err)
	}

	voted, err := m.GovernanceHasVoted(1, addr(0x01))
	if err != nil || !voted {
		t.Fatalf("ballot not recorded")
	}
	if voted, _ := m.GovernanceHasVoted(1, addr(0x02)); voted {
		t.Fatalf("ballot leaked across voters")
	}
	if err := m.GovernancePutVote(vote); err == nil {
		t.Fatalf("expected rejection of a second ballot")
	}

	loaded, ok, err := m.GovernanceGetVote(1, addr(0x01))
	if err != nil || !ok {
		t.Fatalf("get vote = (%v, %v)", ok, err)
	}
	if loaded.Choice != governance.VoteChoiceFor || loaded.Power.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("vote mismatch: %+v", loaded)
	}
}

func TestAssetRoundTrip(t *testing.T) {
	m := newTestManager()
	asset := &registry.Asset{
		ID:          1,
		Owner:       addr(0x01),
		Metadata:    "invoice batch Q3",
		Verified:    true,
		AgreementID: 9,
		CreatedAt:   990_000,
	}
	if err := m.AssetPut(asset); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, ok, err := m.AssetGet(1)
	if err != nil || !ok {
		t.Fatalf("get = (%v, %v)", ok, err)
	}
	if loaded.Metadata != asset.Metadata || !loaded.Verified || loaded.AgreementID != 9 {
		t.Fatalf("asset mismatch: %+v", loaded)
	}

	if err := m.AssetPut(&registry.Asset{ID: 2}); err == nil {
		t.Fatalf("expected empty metadata rejection")
	}
}

func TestParamStoreRoundTrip(t *testing.T) {
	m := newTestManager()

	if _, ok, err := m.ParamStoreGet("fees.distributionBps"); err != nil || ok {
		t.Fatalf("unset parameter reported present")
	}
	if err := m.ParamStoreSet("fees.distributionBps", []byte(`"150"`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := m.ParamStoreGet("fees.distributionBps")
	if err != nil || !ok {
		t.Fatalf("get = (%v, %v)", ok, err)
	}
	if string(value) != `"150"` {
		t.Fatalf("value = %s", value)
	}
	if err := m.ParamStoreSet("  ", []byte("x")); err == nil {
		t.Fatalf("expected empty name rejection")
	}
}

func TestPauseRegistry(t *testing.T) {
	m := newTestManager()

	if m.IsPaused("ledger") {
		t.Fatalf("fresh registry reports a pause")
	}
	if err := m.SetPaused("ledger", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.SetPaused("governance", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !m.IsPaused("ledger") || !m.IsPaused("governance") {
		t.Fatalf("pauses not recorded")
	}
	if m.IsPaused("agreement") {
		t.Fatalf("unrelated module paused")
	}
	if err := m.SetPaused("ledger", false); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if m.IsPaused("ledger") {
		t.Fatalf("pause not cleared")
	}
	if err := m.SetPaused("", true); err == nil {
		t.Fatalf("expected empty module rejection")
	}
}
