package ledger

import (
	"errors"
	"math/big"
	"time"

	"yieldnet/core/events"
	"yieldnet/native/common"
	"yieldnet/native/compliance"
)

var (
	errNilState           = errors.New("ledger engine: state not configured")
	errNotAuthority       = errors.New("ledger engine: caller is not the controlling authority")
	errLedgerExists       = errors.New("ledger engine: ledger already initialised")
	errLedgerNotFound     = errors.New("ledger engine: ledger not found")
	errInvalidAmount      = errors.New("ledger engine: amount must be positive")
	errInsufficientShares = errors.New("ledger engine: insufficient share balance")
	errInsufficientAllow  = errors.New("ledger engine: insufficient allowance")
	errHolderCap          = errors.New("ledger engine: holder set at capacity")
	errConcentrationCap   = errors.New("ledger engine: transfer exceeds holder concentration cap")
	errHoldingPeriod      = errors.New("ledger engine: minimum holding period not elapsed")
	errLockupActive       = errors.New("ledger engine: transfers locked until lock-up elapses")
	errSelfTransfer       = errors.New("ledger engine: sender and recipient are identical")
	errComplianceBlocked  = errors.New("ledger engine: participant blocked by compliance gate")
)

var basisPoints = big.NewInt(10_000)

const moduleName = "ledger"

type engineState interface {
	LedgerGet(agreementID uint64) (*Ledger, bool, error)
	LedgerPut(*Ledger) error
}

// Params carries the transfer restriction knobs applied to every agreement
// ledger. MaxHolders bounds the holder set so the distribution scan stays
// cheap; it is configuration, never a hard-coded literal.
type Params struct {
	MaxHolders          uint32
	MaxHolderBps        uint32
	MinHoldingSeconds   uint64
	LockupSeconds       uint64
	RestrictionsEnabled bool
}

// Engine maintains the per-agreement shareholder registers. Mint and burn are
// reserved for the agreement module authority and bypass secondary-market
// restrictions; transfers are subject to the full restriction set.
type Engine struct {
	state     engineState
	authority [20]byte
	params    Params
	gate      compliance.Gate
	pauses    common.PauseView
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine constructs a ledger engine controlled by the supplied module
// authority address.
func NewEngine(authority [20]byte, params Params) *Engine {
	return &Engine{
		authority: authority,
		params:    params,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGate configures the compliance gate consulted on restricted transfers.
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

// Get loads the ledger for the agreement.
func (e *Engine) Get(agreementID uint64) (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stored, ok, err := e.state.LedgerGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLedgerNotFound
	}
	return stored, nil
}

// Init creates the empty share register for a newly funded agreement. The
// lock-up window is stamped from the engine clock plus the configured
// lock-up duration.
func (e *Engine) Init(caller [20]byte, agreementID uint64) (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if caller != e.authority {
		return nil, errNotAuthority
	}
	if _, ok, err := e.state.LedgerGet(agreementID); err != nil {
		return nil, err
	} else if ok {
		return nil, errLedgerExists
	}
	l := &Ledger{
		AgreementID: agreementID,
		TotalSupply: big.NewInt(0),
	}
	if e.params.LockupSeconds > 0 {
		l.LockupUntil = e.now() + e.params.LockupSeconds
	}
	if err := e.state.LedgerPut(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Mint credits newly issued shares to the holder. Reserved for the agreement
// module authority: minting represents agreement funding, not secondary
// trading, so transfer restrictions do not apply. The holder cap still does.
func (e *Engine) Mint(caller [20]byte, agreementID uint64, holder [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	if err := e.credit(l, holder, amount); err != nil {
		return err
	}
	l.TotalSupply = new(big.Int).Add(l.TotalSupply, amount)
	if err := e.state.LedgerPut(l); err != nil {
		return err
	}
	e.emit(newMintedEvent(agreementID, holder, amount))
	return nil
}

// Burn destroys shares held by the holder, shrinking total supply. Reserved
// for the agreement module authority (agreement unwinding).
func (e *Engine) Burn(caller [20]byte, agreementID uint64, holder [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return errNotAuthority
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	if err := e.debit(l, holder, amount); err != nil {
		return err
	}
	l.TotalSupply = new(big.Int).Sub(l.TotalSupply, amount)
	if err := e.state.LedgerPut(l); err != nil {
		return err
	}
	e.emit(newBurnedEvent(agreementID, holder, amount))
	return nil
}

// Transfer moves shares between holders subject to the full restriction set:
// module pause, lock-up, holding period, concentration cap, holder capacity
// and the compliance gate. All checks run before any balance mutates.
func (e *Engine) Transfer(agreementID uint64, from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	l, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	if err := e.checkTransfer(l, from, to, amount); err != nil {
		return err
	}
	if err := e.debit(l, from, amount); err != nil {
		return err
	}
	if err := e.credit(l, to, amount); err != nil {
		return err
	}
	if err := e.state.LedgerPut(l); err != nil {
		return err
	}
	e.emit(newTransferredEvent(agreementID, from, to, amount))
	return nil
}

// Approve sets the spender's delegated transfer allowance for the owner.
func (e *Engine) Approve(agreementID uint64, owner, spender [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	l, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	found := false
	for i := range l.Allowances {
		if l.Allowances[i].Owner == owner && l.Allowances[i].Spender == spender {
			l.Allowances[i].Amount = new(big.Int).Set(amount)
			found = true
			break
		}
	}
	if !found && amount.Sign() > 0 {
		l.Allowances = append(l.Allowances, Allowance{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	}
	return e.state.LedgerPut(l)
}

// TransferFrom spends the caller's allowance to move shares on behalf of the
// owner. The same restriction set as Transfer applies; the allowance is only
// reduced when every check passes.
func (e *Engine) TransferFrom(agreementID uint64, spender, from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	l, err := e.Get(agreementID)
	if err != nil {
		return err
	}
	if err := e.checkTransfer(l, from, to, amount); err != nil {
		return err
	}
	idx := -1
	for i := range l.Allowances {
		if l.Allowances[i].Owner == from && l.Allowances[i].Spender == spender {
			idx = i
			break
		}
	}
	if idx < 0 || l.Allowances[idx].Amount.Cmp(amount) < 0 {
		return errInsufficientAllow
	}
	if err := e.debit(l, from, amount); err != nil {
		return err
	}
	if err := e.credit(l, to, amount); err != nil {
		return err
	}
	l.Allowances[idx].Amount = new(big.Int).Sub(l.Allowances[idx].Amount, amount)
	if l.Allowances[idx].Amount.Sign() == 0 {
		l.Allowances = append(l.Allowances[:idx], l.Allowances[idx+1:]...)
	}
	if err := e.state.LedgerPut(l); err != nil {
		return err
	}
	e.emit(newTransferredEvent(agreementID, from, to, amount))
	return nil
}

func (e *Engine) checkTransfer(l *Ledger, from, to [20]byte, amount *big.Int) error {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if from == to {
		return errSelfTransfer
	}
	now := e.now()
	if l.LockupUntil > 0 && now < l.LockupUntil {
		return errLockupActive
	}
	fromIdx := l.holderIndex(from)
	if fromIdx < 0 || l.Holders[fromIdx].Balance.Cmp(amount) < 0 {
		return errInsufficientShares
	}
	if last := l.Holders[fromIdx].LastReceiptAt; last > 0 && e.params.MinHoldingSeconds > 0 {
		if now < last+e.params.MinHoldingSeconds {
			return errHoldingPeriod
		}
	}
	if err := compliance.Check(e.gate, from); err != nil {
		return errComplianceBlocked
	}
	if err := compliance.Check(e.gate, to); err != nil {
		return errComplianceBlocked
	}
	toIdx := l.holderIndex(to)
	if toIdx < 0 && uint32(len(l.Holders)) >= e.maxHolders() {
		// The sender zeroing out would free a slot, but the recipient is
		// inserted before the sender entry is pruned, so a full set
		// still rejects unless the sender empties first.
		if l.Holders[fromIdx].Balance.Cmp(amount) != 0 {
			return errHolderCap
		}
	}
	if e.params.RestrictionsEnabled && e.params.MaxHolderBps > 0 {
		dest := big.NewInt(0)
		if toIdx >= 0 {
			dest = new(big.Int).Set(l.Holders[toIdx].Balance)
		}
		dest.Add(dest, amount)
		lhs := new(big.Int).Mul(dest, basisPoints)
		rhs := new(big.Int).Mul(l.TotalSupply, new(big.Int).SetUint64(uint64(e.params.MaxHolderBps)))
		if lhs.Cmp(rhs) > 0 {
			return errConcentrationCap
		}
	}
	return nil
}

// MaxHolders reports the effective holder-set capacity applied to every
// agreement ledger. A zero configuration degrades to a single holder.
func (e *Engine) MaxHolders() uint32 {
	return e.maxHolders()
}

func (e *Engine) maxHolders() uint32 {
	if e.params.MaxHolders == 0 {
		return 1
	}
	return e.params.MaxHolders
}

func (e *Engine) credit(l *Ledger, holder [20]byte, amount *big.Int) error {
	idx := l.holderIndex(holder)
	if idx < 0 {
		if uint32(len(l.Holders)) >= e.maxHolders() {
			return errHolderCap
		}
		l.Holders = append(l.Holders, Holder{
			Address:      holder,
			Balance:      new(big.Int).Set(amount),
			ReceiptCount: 1,
		})
		return nil
	}
	l.Holders[idx].Balance = new(big.Int).Add(l.Holders[idx].Balance, amount)
	l.Holders[idx].ReceiptCount++
	l.Holders[idx].LastReceiptAt = e.now()
	return nil
}

func (e *Engine) debit(l *Ledger, holder [20]byte, amount *big.Int) error {
	idx := l.holderIndex(holder)
	if idx < 0 || l.Holders[idx].Balance.Cmp(amount) < 0 {
		return errInsufficientShares
	}
	l.Holders[idx].Balance = new(big.Int).Sub(l.Holders[idx].Balance, amount)
	if l.Holders[idx].Balance.Sign() == 0 {
		l.Holders = append(l.Holders[:idx], l.Holders[idx+1:]...)
	}
	return nil
}
