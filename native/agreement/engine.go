package agreement

import (
	"errors"
	"math/big"
	"time"

	"yieldnet/core/events"
	"yieldnet/core/types"
	"yieldnet/native/amortize"
	"yieldnet/native/common"
	"yieldnet/native/compliance"
	"yieldnet/native/distribution"
	"yieldnet/native/ledger"
)

var (
	errNilState            = errors.New("agreement engine: state not configured")
	errNilLedger           = errors.New("agreement engine: ledger module not configured")
	errNilDistributor      = errors.New("agreement engine: distribution module not configured")
	errNilRegistry         = errors.New("agreement engine: asset registry not configured")
	errNotFound            = errors.New("agreement engine: agreement not found")
	errNotActive           = errors.New("agreement engine: agreement is not active")
	errNotOwner            = errors.New("agreement engine: caller is not the agreement owner")
	errNotPayer            = errors.New("agreement engine: caller is neither owner nor designated payer")
	errInvalidAmount       = errors.New("agreement engine: amount must be positive")
	errExactPaymentOnly    = errors.New("agreement engine: partial repayments disallowed, amount must equal the monthly payment")
	errEarlyRepayment      = errors.New("agreement engine: early repayment disallowed")
	errOverpayment         = errors.New("agreement engine: amount exceeds remaining obligation")
	errInsufficientBalance = errors.New("agreement engine: insufficient account balance")
	errAssetUnknown        = errors.New("agreement engine: asset not registered")
	errAssetUnverified     = errors.New("agreement engine: asset not verified")
	errAssetNotOwned       = errors.New("agreement engine: caller does not own the asset")
	errAssetEncumbered     = errors.New("agreement engine: asset already backs an active agreement")
	errContributionSum     = errors.New("agreement engine: contributions do not sum to the stated principal")
	errTooManyInvestors    = errors.New("agreement engine: contributors exceed the share register capacity")
	errGraceNotElapsed     = errors.New("agreement engine: grace period has not elapsed for the due date")
	errDueDateFuture       = errors.New("agreement engine: due date lies in the future")
	errDueDateSeen         = errors.New("agreement engine: due date already recorded as missed")
	errZeroPayer           = errors.New("agreement engine: designated payer must not be the zero address")
)

const moduleName = "agreement"

type engineState interface {
	AgreementsNextID() (uint64, error)
	AgreementPut(*YieldAgreement) error
	AgreementGet(id uint64) (*YieldAgreement, bool, error)
	AgreementMissedSeen(id uint64, dueDate uint64) (bool, error)
	AgreementMarkMissed(id uint64, dueDate uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// AssetView is the registry capability consumed at agreement creation. An
// asset backs at most one active agreement at a time.
type AssetView interface {
	AssetVerified(assetID uint64) (bool, bool, error)
	AssetOwner(assetID uint64) ([20]byte, bool, error)
	ActiveAgreement(assetID uint64) (uint64, bool, error)
	LinkAgreement(assetID, agreementID uint64) error
	UnlinkAgreement(assetID uint64) error
}

type shareMinter interface {
	Init(caller [20]byte, agreementID uint64) (*ledger.Ledger, error)
	Mint(caller [20]byte, agreementID uint64, holder [20]byte, amount *big.Int) error
	MaxHolders() uint32
}

type distributor interface {
	Distribute(agreementID uint64, amount *big.Int) ([]distribution.Payout, error)
}

// Params are the creation-time defaults applied to new agreements. Governance
// adjusts the per-agreement values afterwards.
type Params struct {
	GracePeriodSeconds uint64
	PenaltyRateBps     uint32
	DefaultThreshold   uint32
	AllowPartial       bool
	AllowEarly         bool
}

// Engine owns the agreement lifecycle: creation against a verified asset,
// repayment application, missed-payment accounting and the terminal
// default/completion transitions. Every operation validates fully before its
// first state write.
type Engine struct {
	state         engineState
	registry      AssetView
	shares        shareMinter
	distributor   distributor
	gate          compliance.Gate
	pauses        common.PauseView
	emitter       events.Emitter
	moduleAddress [20]byte
	params        Params
	nowFn         func() int64
}

// NewEngine constructs an agreement engine acting as the ledger module
// authority identified by moduleAddr.
func NewEngine(moduleAddr [20]byte, params Params) *Engine {
	if params.DefaultThreshold == 0 {
		params.DefaultThreshold = 1
	}
	return &Engine{
		moduleAddress: moduleAddr,
		params:        params,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry wires the asset registry consulted at creation.
func (e *Engine) SetRegistry(registry AssetView) {
	if e == nil {
		return
	}
	e.registry = registry
}

// SetShares wires the shareholder ledger module used to mint funding shares.
func (e *Engine) SetShares(shares shareMinter) {
	if e == nil {
		return
	}
	e.shares = shares
}

// SetDistributor wires the distribution engine invoked on every repayment.
func (e *Engine) SetDistributor(d distributor) {
	if e == nil {
		return
	}
	e.distributor = d
}

// SetGate configures the compliance gate consulted on principal-changing
// operations.
func (e *Engine) SetGate(gate compliance.Gate) {
	if e == nil {
		return
	}
	e.gate = gate
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

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Get loads the agreement record.
func (e *Engine) Get(agreementID uint64) (*YieldAgreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stored, ok, err := e.state.AgreementGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return nil, errNotFound
	}
	return stored, nil
}

// Create admits a new financing agreement against a verified, caller-owned
// asset and initialises its share register. With no explicit contributions the
// full supply is minted 1:1 to the owner; pooled contributions must sum to the
// stated principal exactly and debit each investor's account upfront. Multiple
// contributions from the same investor are aggregated into one debit and one
// share position, and the distinct investor count must fit the share register
// capacity, so the commit phase cannot fail after the first write.
func (e *Engine) Create(caller [20]byte, assetID uint64, principal *big.Int, termMonths, rateBps uint32, contributions []Contribution) (*YieldAgreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil {
		return nil, errNilRegistry
	}
	if e.shares == nil {
		return nil, errNilLedger
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := compliance.Check(e.gate, caller); err != nil {
		return nil, err
	}

	verified, exists, err := e.registry.AssetVerified(assetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errAssetUnknown
	}
	if !verified {
		return nil, errAssetUnverified
	}
	owner, _, err := e.registry.AssetOwner(assetID)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, errAssetNotOwned
	}
	if _, linked, err := e.registry.ActiveAgreement(assetID); err != nil {
		return nil, err
	} else if linked {
		return nil, errAssetEncumbered
	}

	record, err := SanitizeAgreement(&YieldAgreement{
		AssetID:            assetID,
		Owner:              caller,
		Principal:          principal,
		TermMonths:         termMonths,
		RateBps:            rateBps,
		Active:             true,
		GracePeriodSeconds: e.params.GracePeriodSeconds,
		PenaltyRateBps:     e.params.PenaltyRateBps,
		DefaultThreshold:   e.params.DefaultThreshold,
		AllowPartial:       e.params.AllowPartial,
		AllowEarly:         e.params.AllowEarly,
		CreatedAt:          e.now(),
	})
	if err != nil {
		return nil, err
	}
	// Term/rate must also admit a positive periodic payment.
	if _, err := amortize.Payment(record.Principal, record.TermMonths, record.RateBps); err != nil {
		return nil, err
	}

	pooled := len(contributions) > 0
	var investors [][20]byte
	stakes := make(map[[20]byte]*big.Int)
	if pooled {
		sum := big.NewInt(0)
		for _, c := range contributions {
			if c.Amount == nil || c.Amount.Sign() <= 0 {
				return nil, errInvalidAmount
			}
			stake, seen := stakes[c.Investor]
			if !seen {
				if err := compliance.Check(e.gate, c.Investor); err != nil {
					return nil, err
				}
				investors = append(investors, c.Investor)
				stake = big.NewInt(0)
			}
			stakes[c.Investor] = new(big.Int).Add(stake, c.Amount)
			sum.Add(sum, c.Amount)
		}
		if sum.Cmp(record.Principal) != 0 {
			return nil, errContributionSum
		}
		if uint32(len(investors)) > e.shares.MaxHolders() {
			return nil, errTooManyInvestors
		}
		for _, investor := range investors {
			account, err := e.loadAccount(investor)
			if err != nil {
				return nil, err
			}
			if account.Balance.Cmp(stakes[investor]) < 0 {
				return nil, errInsufficientBalance
			}
		}
	}

	id, err := e.state.AgreementsNextID()
	if err != nil {
		return nil, err
	}
	record.ID = id

	if _, err := e.shares.Init(e.moduleAddress, id); err != nil {
		return nil, err
	}
	if pooled {
		ownerAcc, err := e.loadAccount(caller)
		if err != nil {
			return nil, err
		}
		for _, investor := range investors {
			stake := stakes[investor]
			account := ownerAcc
			if investor != caller {
				loaded, err := e.loadAccount(investor)
				if err != nil {
					return nil, err
				}
				account = loaded
			}
			account.Balance = new(big.Int).Sub(account.Balance, stake)
			if investor != caller {
				if err := e.state.PutAccount(investor, account); err != nil {
					return nil, err
				}
			}
			ownerAcc.Balance = new(big.Int).Add(ownerAcc.Balance, stake)
			if err := e.shares.Mint(e.moduleAddress, id, investor, stake); err != nil {
				return nil, err
			}
		}
		if err := e.state.PutAccount(caller, ownerAcc); err != nil {
			return nil, err
		}
	} else {
		if err := e.shares.Mint(e.moduleAddress, id, caller, record.Principal); err != nil {
			return nil, err
		}
	}

	if err := e.registry.LinkAgreement(assetID, id); err != nil {
		return nil, err
	}
	if err := e.state.AgreementPut(record); err != nil {
		return nil, err
	}

	e.emit(newCreatedEvent(record))
	return record.Clone(), nil
}

// MonthlyPayment returns the fixed periodic payment for the agreement.
func (e *Engine) MonthlyPayment(agreementID uint64) (*big.Int, error) {
	record, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	return amortize.Payment(record.Principal, record.TermMonths, record.RateBps)
}

// MakeRepayment applies a repayment from the owner or designated payer,
// debits the payer's account, distributes the amount pro-rata to the share
// holders and transitions the agreement to Completed once the full obligation
// is met.
func (e *Engine) MakeRepayment(caller [20]byte, agreementID uint64, amount *big.Int) (*YieldAgreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.distributor == nil {
		return nil, errNilDistributor
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	record, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if record.Status() != StatusActive {
		return nil, errNotActive
	}
	if caller != record.Owner && caller != record.DesignatedPayer {
		return nil, errNotPayer
	}
	if err := compliance.Check(e.gate, caller); err != nil {
		return nil, err
	}

	obligation, err := amortize.TotalObligation(record.Principal, record.RateBps)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(obligation, record.TotalRepaid)
	if remaining.Sign() <= 0 {
		return nil, errNotActive
	}
	monthly, err := amortize.Payment(record.Principal, record.TermMonths, record.RateBps)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(remaining) > 0 {
		return nil, errOverpayment
	}
	if !record.AllowPartial && amount.Cmp(monthly) < 0 {
		// The final instalment settles the floor-division remainder and
		// may legitimately come in under the monthly amount.
		if amount.Cmp(remaining) != 0 {
			return nil, errExactPaymentOnly
		}
	}
	if !record.AllowEarly && amount.Cmp(monthly) > 0 {
		return nil, errEarlyRepayment
	}

	payerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	if payerAcc.Balance.Cmp(amount) < 0 {
		return nil, errInsufficientBalance
	}
	payerAcc.Balance = new(big.Int).Sub(payerAcc.Balance, amount)
	if err := e.state.PutAccount(caller, payerAcc); err != nil {
		return nil, err
	}

	if _, err := e.distributor.Distribute(agreementID, amount); err != nil {
		return nil, err
	}

	record.TotalRepaid = new(big.Int).Add(record.TotalRepaid, amount)
	completed := record.TotalRepaid.Cmp(obligation) >= 0
	if completed {
		record.Active = false
		if e.registry != nil {
			if err := e.registry.UnlinkAgreement(record.AssetID); err != nil {
				return nil, err
			}
		}
	}
	if err := e.state.AgreementPut(record); err != nil {
		return nil, err
	}

	e.emit(newRepaymentEvent(record, caller, amount))
	if completed {
		e.emit(newCompletedEvent(record))
	}
	return record.Clone(), nil
}

// SetDesignatedPayer authorises an additional repayment identity. Owner only.
func (e *Engine) SetDesignatedPayer(caller [20]byte, agreementID uint64, payer [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	record, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	if caller != record.Owner {
		return errNotOwner
	}
	if record.Status() != StatusActive {
		return errNotActive
	}
	if payer == ([20]byte{}) {
		return errZeroPayer
	}
	record.DesignatedPayer = payer
	if err := e.state.AgreementPut(record); err != nil {
		return err
	}
	e.emit(newPayerUpdatedEvent(record))
	return nil
}

// RecordMissedPayment marks the scheduled due date as missed once its grace
// period has elapsed. The operation is idempotent per due date: recording the
// same date twice fails without inflating the counter.
func (e *Engine) RecordMissedPayment(agreementID uint64, dueDate uint64) (*YieldAgreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if record.Status() != StatusActive {
		return nil, errNotActive
	}
	now := e.now()
	if dueDate == 0 || dueDate > now {
		return nil, errDueDateFuture
	}
	if now < dueDate+record.GracePeriodSeconds {
		return nil, errGraceNotElapsed
	}
	seen, err := e.state.AgreementMissedSeen(agreementID, dueDate)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, errDueDateSeen
	}
	if err := e.state.AgreementMarkMissed(agreementID, dueDate); err != nil {
		return nil, err
	}
	record.MissedPayments++
	record.LastMissedAt = now
	if err := e.state.AgreementPut(record); err != nil {
		return nil, err
	}
	e.emit(newMissedEvent(record, dueDate))
	return record.Clone(), nil
}

// CheckDefault transitions the agreement to the terminal Defaulted state once
// the missed-payment counter reaches the default threshold.
func (e *Engine) CheckDefault(agreementID uint64) (*YieldAgreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if record.Status() != StatusActive {
		return record.Clone(), nil
	}
	if record.MissedPayments < record.DefaultThreshold {
		return record.Clone(), nil
	}
	record.Active = false
	record.InDefault = true
	if e.registry != nil {
		if err := e.registry.UnlinkAgreement(record.AssetID); err != nil {
			return nil, err
		}
	}
	if err := e.state.AgreementPut(record); err != nil {
		return nil, err
	}
	e.emit(newDefaultedEvent(record))
	return record.Clone(), nil
}

// Outstanding returns the remaining obligation. Once the agreement is in
// default the configured penalty rate is applied to the overdue amount, for
// display and recovery purposes.
func (e *Engine) Outstanding(agreementID uint64) (*big.Int, error) {
	record, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	obligation, err := amortize.TotalObligation(record.Principal, record.RateBps)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(obligation, record.TotalRepaid)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	if record.InDefault && record.PenaltyRateBps > 0 {
		penalty := new(big.Int).Mul(remaining, new(big.Int).SetUint64(uint64(record.PenaltyRateBps)))
		penalty.Quo(penalty, big.NewInt(10_000))
		remaining = new(big.Int).Add(remaining, penalty)
	}
	return remaining, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}
