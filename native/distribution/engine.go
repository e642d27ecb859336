package distribution

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	"yieldnet/core/events"
	"yieldnet/core/types"
	"yieldnet/native/ledger"
)

var (
	errNilState      = errors.New("distribution engine: state not configured")
	errInvalidAmount = errors.New("distribution engine: amount must be positive")
	errNoLedger      = errors.New("distribution engine: ledger not found")
	errZeroSupply    = errors.New("distribution engine: ledger has zero supply")
)

// EventTypeDistributed is emitted once per completed payout run.
const EventTypeDistributed = "distribution.paid"

type engineState interface {
	LedgerGet(agreementID uint64) (*ledger.Ledger, bool, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Payout records the amount credited to a single holder during a
// distribution run.
type Payout struct {
	Holder [20]byte
	Amount *big.Int
}

// Engine splits incoming repayments pro-rata across the agreement's current
// holder set. Each holder receives floor(amount*balance/supply); the rounding
// remainder goes in full to the largest holder, first in holder-set order
// among equal maxima, so the payouts always sum to the distributed amount
// exactly.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine constructs a distribution engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Distribute pays the amount out to the agreement's holders. The payout loop
// fully completes before the method returns; callers must not interleave other
// mutations of the same ledger. Partial repayments run the same algorithm
// against the partial amount.
func (e *Engine) Distribute(agreementID uint64, amount *big.Int) ([]Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	l, ok, err := e.state.LedgerGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok || l == nil {
		return nil, errNoLedger
	}
	if l.TotalSupply == nil || l.TotalSupply.Sign() == 0 {
		return nil, errZeroSupply
	}

	payouts := make([]Payout, len(l.Holders))
	distributed := big.NewInt(0)
	largest := 0
	for i := range l.Holders {
		share := new(big.Int).Mul(amount, l.Holders[i].Balance)
		share.Quo(share, l.TotalSupply)
		payouts[i] = Payout{Holder: l.Holders[i].Address, Amount: share}
		distributed.Add(distributed, share)
		if l.Holders[i].Balance.Cmp(l.Holders[largest].Balance) > 0 {
			largest = i
		}
	}
	remainder := new(big.Int).Sub(amount, distributed)
	if remainder.Sign() > 0 {
		payouts[largest].Amount = new(big.Int).Add(payouts[largest].Amount, remainder)
	}

	for i := range payouts {
		if payouts[i].Amount.Sign() == 0 {
			continue
		}
		account, err := e.loadAccount(payouts[i].Holder)
		if err != nil {
			return nil, err
		}
		account.Balance = new(big.Int).Add(account.Balance, payouts[i].Amount)
		if err := e.state.PutAccount(payouts[i].Holder, account); err != nil {
			return nil, err
		}
	}

	e.emit(newDistributedEvent(agreementID, amount, remainder, payouts[largest].Holder))
	return payouts, nil
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

type distributionEvent struct {
	evt *types.Event
}

func (d distributionEvent) EventType() string {
	if d.evt == nil {
		return ""
	}
	return d.evt.Type
}

func (d distributionEvent) Event() *types.Event { return d.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(distributionEvent{evt: evt})
}

func newDistributedEvent(agreementID uint64, amount, remainder *big.Int, remainderTo [20]byte) *types.Event {
	attrs := map[string]string{
		"agreementId": strconv.FormatUint(agreementID, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if remainder != nil && remainder.Sign() > 0 {
		attrs["remainder"] = remainder.String()
		attrs["remainderTo"] = hex.EncodeToString(remainderTo[:])
	}
	return &types.Event{Type: EventTypeDistributed, Attributes: attrs}
}
