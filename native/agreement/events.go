package agreement

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"yieldnet/core/types"
)

const (
	// EventTypeCreated is emitted when a new agreement is admitted.
	EventTypeCreated = "agreement.created"
	// EventTypeRepayment is emitted for every accepted repayment.
	EventTypeRepayment = "agreement.repayment"
	// EventTypeCompleted marks agreements whose full obligation is met.
	EventTypeCompleted = "agreement.completed"
	// EventTypeMissed records a missed scheduled payment.
	EventTypeMissed = "agreement.missed"
	// EventTypeDefaulted marks the terminal default transition.
	EventTypeDefaulted = "agreement.defaulted"
	// EventTypePayerUpdated is emitted when the designated payer changes.
	EventTypePayerUpdated = "agreement.payer_updated"
)

type agreementEvent struct {
	evt *types.Event
}

func (a agreementEvent) EventType() string {
	if a.evt == nil {
		return ""
	}
	return a.evt.Type
}

func (a agreementEvent) Event() *types.Event { return a.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(agreementEvent{evt: evt})
}

func newCreatedEvent(a *YieldAgreement) *types.Event {
	attrs := baseAttrs(a)
	if a != nil {
		attrs["assetId"] = strconv.FormatUint(a.AssetID, 10)
		if a.Principal != nil {
			attrs["principal"] = a.Principal.String()
		}
		attrs["termMonths"] = strconv.FormatUint(uint64(a.TermMonths), 10)
		attrs["rateBps"] = strconv.FormatUint(uint64(a.RateBps), 10)
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

func newRepaymentEvent(a *YieldAgreement, payer [20]byte, amount *big.Int) *types.Event {
	attrs := baseAttrs(a)
	attrs["payer"] = hex.EncodeToString(payer[:])
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if a != nil && a.TotalRepaid != nil {
		attrs["totalRepaid"] = a.TotalRepaid.String()
	}
	return &types.Event{Type: EventTypeRepayment, Attributes: attrs}
}

func newCompletedEvent(a *YieldAgreement) *types.Event {
	return &types.Event{Type: EventTypeCompleted, Attributes: baseAttrs(a)}
}

func newMissedEvent(a *YieldAgreement, dueDate uint64) *types.Event {
	attrs := baseAttrs(a)
	attrs["dueDate"] = strconv.FormatUint(dueDate, 10)
	if a != nil {
		attrs["missedPayments"] = strconv.FormatUint(uint64(a.MissedPayments), 10)
	}
	return &types.Event{Type: EventTypeMissed, Attributes: attrs}
}

func newDefaultedEvent(a *YieldAgreement) *types.Event {
	attrs := baseAttrs(a)
	if a != nil {
		attrs["missedPayments"] = strconv.FormatUint(uint64(a.MissedPayments), 10)
	}
	return &types.Event{Type: EventTypeDefaulted, Attributes: attrs}
}

func newPayerUpdatedEvent(a *YieldAgreement) *types.Event {
	attrs := baseAttrs(a)
	if a != nil {
		attrs["designatedPayer"] = hex.EncodeToString(a.DesignatedPayer[:])
	}
	return &types.Event{Type: EventTypePayerUpdated, Attributes: attrs}
}

func baseAttrs(a *YieldAgreement) map[string]string {
	attrs := make(map[string]string)
	if a != nil {
		attrs["id"] = strconv.FormatUint(a.ID, 10)
		attrs["status"] = a.Status().String()
	}
	return attrs
}
