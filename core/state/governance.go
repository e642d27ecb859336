package state

import (
	"fmt"

	"yieldnet/native/governance"
)

type storedProposal struct {
	ID              uint64
	Proposer        [20]byte
	AgreementID     uint64
	Kind            string
	NewValue        string
	ParamKey        string
	Description     string
	CreatedAt       uint64
	VotingStart     uint64
	VotingEnd       uint64
	BaselineRateBps uint32
	ForPower        string
	AgainstPower    string
	AbstainPower    string
	Executed        bool
	Defeated        bool
	QuorumReached   bool
}

type storedVote struct {
	ProposalID uint64
	Voter      [20]byte
	Choice     string
	Power      string
	Timestamp  uint64
}

// GovernanceNextProposalID allocates the next proposal identifier.
func (m *Manager) GovernanceNextProposalID() (uint64, error) {
	return m.nextSequence(proposalSeqKey)
}

// GovernancePutProposal stores the proposal record keyed by its identifier.
func (m *Manager) GovernancePutProposal(p *governance.Proposal) error {
	if p == nil {
		return fmt.Errorf("state: proposal must not be nil")
	}
	if p.ID == 0 {
		return fmt.Errorf("state: proposal id must be allocated before storing")
	}
	stored := storedProposal{
		ID:              p.ID,
		Proposer:        p.Proposer,
		AgreementID:     p.AgreementID,
		Kind:            string(p.Kind),
		NewValue:        "0",
		ParamKey:        p.ParamKey,
		Description:     p.Description,
		CreatedAt:       p.CreatedAt,
		VotingStart:     p.VotingStart,
		VotingEnd:       p.VotingEnd,
		BaselineRateBps: p.BaselineRateBps,
		ForPower:        "0",
		AgainstPower:    "0",
		AbstainPower:    "0",
		Executed:        p.Executed,
		Defeated:        p.Defeated,
		QuorumReached:   p.QuorumReached,
	}
	if p.NewValue != nil {
		stored.NewValue = p.NewValue.String()
	}
	if p.ForPower != nil {
		stored.ForPower = p.ForPower.String()
	}
	if p.AgainstPower != nil {
		stored.AgainstPower = p.AgainstPower.String()
	}
	if p.AbstainPower != nil {
		stored.AbstainPower = p.AbstainPower.String()
	}
	return m.putRLP(proposalKey(stored.ID), stored)
}

// GovernanceGetProposal loads the proposal record, reporting whether it
// exists.
func (m *Manager) GovernanceGetProposal(id uint64) (*governance.Proposal, bool, error) {
	var stored storedProposal
	ok, err := m.getRLP(proposalKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	proposal, err := toProposal(&stored)
	if err != nil {
		return nil, false, err
	}
	return proposal, true, nil
}

// GovernanceHasVoted reports whether the voter already holds a recorded ballot
// on the proposal.
func (m *Manager) GovernanceHasVoted(id uint64, voter [20]byte) (bool, error) {
	return m.db.Has(voteKey(id, voter))
}

// GovernancePutVote stores the ballot. The first ballot per (proposal, voter)
// pair is final; overwriting an existing ballot is a state error.
func (m *Manager) GovernancePutVote(v *governance.Vote) error {
	if v == nil {
		return fmt.Errorf("state: vote must not be nil")
	}
	key := voteKey(v.ProposalID, v.Voter)
	if exists, err := m.db.Has(key); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("state: ballot already recorded for proposal %d", v.ProposalID)
	}
	stored := storedVote{
		ProposalID: v.ProposalID,
		Voter:      v.Voter,
		Choice:     string(v.Choice),
		Power:      "0",
		Timestamp:  v.Timestamp,
	}
	if v.Power != nil {
		stored.Power = v.Power.String()
	}
	return m.putRLP(key, stored)
}

// GovernanceGetVote loads the recorded ballot for the pair if present.
func (m *Manager) GovernanceGetVote(id uint64, voter [20]byte) (*governance.Vote, bool, error) {
	var stored storedVote
	ok, err := m.getRLP(voteKey(id, voter), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	power, err := parseAmount(stored.Power)
	if err != nil {
		return nil, false, fmt.Errorf("state: corrupted vote power for proposal %d: %w", id, err)
	}
	return &governance.Vote{
		ProposalID: stored.ProposalID,
		Voter:      stored.Voter,
		Choice:     governance.VoteChoice(stored.Choice),
		Power:      power,
		Timestamp:  stored.Timestamp,
	}, true, nil
}

func toProposal(stored *storedProposal) (*governance.Proposal, error) {
	if stored == nil {
		return nil, fmt.Errorf("state: stored proposal nil")
	}
	value, err := parseAmount(stored.NewValue)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted value for proposal %d: %w", stored.ID, err)
	}
	forPower, err := parseAmount(stored.ForPower)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted tally for proposal %d: %w", stored.ID, err)
	}
	againstPower, err := parseAmount(stored.AgainstPower)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted tally for proposal %d: %w", stored.ID, err)
	}
	abstainPower, err := parseAmount(stored.AbstainPower)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted tally for proposal %d: %w", stored.ID, err)
	}
	return &governance.Proposal{
		ID:              stored.ID,
		Proposer:        stored.Proposer,
		AgreementID:     stored.AgreementID,
		Kind:            governance.ProposalKind(stored.Kind),
		NewValue:        value,
		ParamKey:        stored.ParamKey,
		Description:     stored.Description,
		CreatedAt:       stored.CreatedAt,
		VotingStart:     stored.VotingStart,
		VotingEnd:       stored.VotingEnd,
		BaselineRateBps: stored.BaselineRateBps,
		ForPower:        forPower,
		AgainstPower:    againstPower,
		AbstainPower:    abstainPower,
		Executed:        stored.Executed,
		Defeated:        stored.Defeated,
		QuorumReached:   stored.QuorumReached,
	}, nil
}
