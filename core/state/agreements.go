package state

import (
	"fmt"

	"yieldnet/native/agreement"
)

type storedAgreement struct {
	ID                 uint64
	AssetID            uint64
	Owner              [20]byte
	Principal          string
	TermMonths         uint32
	RateBps            uint32
	TotalRepaid        string
	Active             bool
	InDefault          bool
	GracePeriodSeconds uint64
	PenaltyRateBps     uint32
	DefaultThreshold   uint32
	AllowPartial       bool
	AllowEarly         bool
	DesignatedPayer    [20]byte
	MissedPayments     uint32
	LastMissedAt       uint64
	ReserveBalance     string
	CreatedAt          uint64
}

// AgreementsNextID allocates the next agreement identifier.
func (m *Manager) AgreementsNextID() (uint64, error) {
	return m.nextSequence(agreementSeqKey)
}

// AgreementPut stores the agreement record keyed by its identifier.
func (m *Manager) AgreementPut(record *agreement.YieldAgreement) error {
	sanitized, err := agreement.SanitizeAgreement(record)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if sanitized.ID == 0 {
		return fmt.Errorf("state: agreement id must be allocated before storing")
	}
	stored := storedAgreement{
		ID:                 sanitized.ID,
		AssetID:            sanitized.AssetID,
		Owner:              sanitized.Owner,
		Principal:          sanitized.Principal.String(),
		TermMonths:         sanitized.TermMonths,
		RateBps:            sanitized.RateBps,
		TotalRepaid:        sanitized.TotalRepaid.String(),
		Active:             sanitized.Active,
		InDefault:          sanitized.InDefault,
		GracePeriodSeconds: sanitized.GracePeriodSeconds,
		PenaltyRateBps:     sanitized.PenaltyRateBps,
		DefaultThreshold:   sanitized.DefaultThreshold,
		AllowPartial:       sanitized.AllowPartial,
		AllowEarly:         sanitized.AllowEarly,
		DesignatedPayer:    sanitized.DesignatedPayer,
		MissedPayments:     sanitized.MissedPayments,
		LastMissedAt:       sanitized.LastMissedAt,
		ReserveBalance:     sanitized.ReserveBalance.String(),
		CreatedAt:          sanitized.CreatedAt,
	}
	return m.putRLP(agreementKey(stored.ID), stored)
}

// AgreementGet loads the agreement record, reporting whether it exists.
func (m *Manager) AgreementGet(id uint64) (*agreement.YieldAgreement, bool, error) {
	var stored storedAgreement
	ok, err := m.getRLP(agreementKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := toAgreement(&stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// AgreementMissedSeen reports whether the due date has already been recorded
// as missed for the agreement.
func (m *Manager) AgreementMissedSeen(id uint64, dueDate uint64) (bool, error) {
	return m.db.Has(missedKey(id, dueDate))
}

// AgreementMarkMissed records the due date so a second miss report for the
// same date can be rejected.
func (m *Manager) AgreementMarkMissed(id uint64, dueDate uint64) error {
	return m.db.Put(missedKey(id, dueDate), []byte{1})
}

func toAgreement(stored *storedAgreement) (*agreement.YieldAgreement, error) {
	if stored == nil {
		return nil, fmt.Errorf("state: stored agreement nil")
	}
	principal, err := parseAmount(stored.Principal)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted principal for agreement %d: %w", stored.ID, err)
	}
	repaid, err := parseAmount(stored.TotalRepaid)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted repaid total for agreement %d: %w", stored.ID, err)
	}
	reserve, err := parseAmount(stored.ReserveBalance)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted reserve for agreement %d: %w", stored.ID, err)
	}
	return &agreement.YieldAgreement{
		ID:                 stored.ID,
		AssetID:            stored.AssetID,
		Owner:              stored.Owner,
		Principal:          principal,
		TermMonths:         stored.TermMonths,
		RateBps:            stored.RateBps,
		TotalRepaid:        repaid,
		Active:             stored.Active,
		InDefault:          stored.InDefault,
		GracePeriodSeconds: stored.GracePeriodSeconds,
		PenaltyRateBps:     stored.PenaltyRateBps,
		DefaultThreshold:   stored.DefaultThreshold,
		AllowPartial:       stored.AllowPartial,
		AllowEarly:         stored.AllowEarly,
		DesignatedPayer:    stored.DesignatedPayer,
		MissedPayments:     stored.MissedPayments,
		LastMissedAt:       stored.LastMissedAt,
		ReserveBalance:     reserve,
		CreatedAt:          stored.CreatedAt,
	}, nil
}
