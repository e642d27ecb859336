package ledger

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"yieldnet/core/types"
)

const (
	// EventTypeMinted is emitted when agreement funding issues new shares.
	EventTypeMinted = "ledger.minted"
	// EventTypeBurned is emitted when shares are destroyed during unwinding.
	EventTypeBurned = "ledger.burned"
	// EventTypeTransferred is emitted for secondary transfers, delegated or
	// direct.
	EventTypeTransferred = "ledger.transferred"
)

type ledgerEvent struct {
	evt *types.Event
}

func (l ledgerEvent) EventType() string {
	if l.evt == nil {
		return ""
	}
	return l.evt.Type
}

func (l ledgerEvent) Event() *types.Event { return l.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ledgerEvent{evt: evt})
}

func newMintedEvent(agreementID uint64, holder [20]byte, amount *big.Int) *types.Event {
	return shareEvent(EventTypeMinted, agreementID, holder, amount)
}

func newBurnedEvent(agreementID uint64, holder [20]byte, amount *big.Int) *types.Event {
	return shareEvent(EventTypeBurned, agreementID, holder, amount)
}

func shareEvent(eventType string, agreementID uint64, holder [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"agreementId": strconv.FormatUint(agreementID, 10),
		"holder":      hex.EncodeToString(holder[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newTransferredEvent(agreementID uint64, from, to [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"agreementId": strconv.FormatUint(agreementID, 10),
		"from":        hex.EncodeToString(from[:]),
		"to":          hex.EncodeToString(to[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeTransferred, Attributes: attrs}
}
