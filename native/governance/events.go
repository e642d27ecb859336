package governance

import (
	"encoding/hex"
	"strconv"

	"yieldnet/core/types"
)

const (
	// EventTypeProposed is emitted when a new proposal is accepted.
	EventTypeProposed = "gov.proposed"
	// EventTypeVoteCast is emitted when a voter records a ballot.
	EventTypeVoteCast = "gov.vote"
	// EventTypeExecuted marks proposals whose payload has been applied.
	EventTypeExecuted = "gov.executed"
	// EventTypeDefeated marks proposals that failed quorum or threshold.
	EventTypeDefeated = "gov.defeated"
)

type governanceEvent struct {
	evt *types.Event
}

func (g governanceEvent) EventType() string {
	if g.evt == nil {
		return ""
	}
	return g.evt.Type
}

func (g governanceEvent) Event() *types.Event { return g.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(governanceEvent{evt: evt})
}

func newProposedEvent(p *Proposal) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypeProposed, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["agreementId"] = strconv.FormatUint(p.AgreementID, 10)
	attrs["proposer"] = hex.EncodeToString(p.Proposer[:])
	attrs["kind"] = string(p.Kind)
	if p.NewValue != nil {
		attrs["value"] = p.NewValue.String()
	}
	attrs["votingStart"] = strconv.FormatUint(p.VotingStart, 10)
	attrs["votingEnd"] = strconv.FormatUint(p.VotingEnd, 10)
	return &types.Event{Type: EventTypeProposed, Attributes: attrs}
}

func newVoteEvent(v *Vote) *types.Event {
	attrs := make(map[string]string)
	if v == nil {
		return &types.Event{Type: EventTypeVoteCast, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(v.ProposalID, 10)
	attrs["voter"] = hex.EncodeToString(v.Voter[:])
	if v.Choice.Valid() {
		attrs["choice"] = v.Choice.String()
	}
	if v.Power != nil {
		attrs["power"] = v.Power.String()
	}
	attrs["timestamp"] = strconv.FormatUint(v.Timestamp, 10)
	return &types.Event{Type: EventTypeVoteCast, Attributes: attrs}
}

func newExecutedEvent(p *Proposal, tally *Tally) *types.Event {
	return outcomeEvent(EventTypeExecuted, p, tally)
}

func newDefeatedEvent(p *Proposal, tally *Tally) *types.Event {
	return outcomeEvent(EventTypeDefeated, p, tally)
}

func outcomeEvent(eventType string, p *Proposal, tally *Tally) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["kind"] = string(p.Kind)
	}
	if tally != nil {
		if tally.ForPower != nil {
			attrs["forPower"] = tally.ForPower.String()
		}
		if tally.AgainstPower != nil {
			attrs["againstPower"] = tally.AgainstPower.String()
		}
		if tally.AbstainPower != nil {
			attrs["abstainPower"] = tally.AbstainPower.String()
		}
		attrs["quorumBps"] = strconv.FormatUint(uint64(tally.QuorumBps), 10)
		attrs["quorum"] = strconv.FormatBool(tally.Quorum)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
