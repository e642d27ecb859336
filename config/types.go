package config

import (
	"yieldnet/native/agreement"
	"yieldnet/native/governance"
	"yieldnet/native/ledger"
)

// Ledger carries the share register restriction knobs.
type Ledger struct {
	MaxHolders          uint32 `toml:"MaxHolders"`
	MaxHolderBps        uint32 `toml:"MaxHolderBps"`
	MinHoldingSeconds   uint64 `toml:"MinHoldingSeconds"`
	LockupSeconds       uint64 `toml:"LockupSeconds"`
	RestrictionsEnabled bool   `toml:"RestrictionsEnabled"`
}

// Agreement carries the creation-time defaults stamped onto new agreements.
type Agreement struct {
	GracePeriodSeconds uint64 `toml:"GracePeriodSeconds"`
	PenaltyRateBps     uint32 `toml:"PenaltyRateBps"`
	DefaultThreshold   uint32 `toml:"DefaultThreshold"`
	AllowPartial       bool   `toml:"AllowPartial"`
	AllowEarly         bool   `toml:"AllowEarly"`
}

// Governance captures the proposal admission and passage policy.
type Governance struct {
	MinProposerBps      uint32   `toml:"MinProposerBps"`
	QuorumBps           uint32   `toml:"QuorumBps"`
	VotingDelaySeconds  uint64   `toml:"VotingDelaySeconds"`
	VotingPeriodSeconds uint64   `toml:"VotingPeriodSeconds"`
	MaxRateDeltaBps     uint32   `toml:"MaxRateDeltaBps"`
	MaxReserveBps       uint32   `toml:"MaxReserveBps"`
	AllowedParams       []string `toml:"AllowedParams"`
}

// Pauses disables whole modules at startup. Runtime pauses live in the
// persisted pause registry; these flags seed it.
type Pauses struct {
	Ledger     bool `toml:"Ledger"`
	Agreement  bool `toml:"Agreement"`
	Governance bool `toml:"Governance"`
}

// Gateway carries the HTTP surface knobs.
type Gateway struct {
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

// LedgerParams converts the section into engine parameters.
func (l Ledger) LedgerParams() ledger.Params {
	return ledger.Params{
		MaxHolders:          l.MaxHolders,
		MaxHolderBps:        l.MaxHolderBps,
		MinHoldingSeconds:   l.MinHoldingSeconds,
		LockupSeconds:       l.LockupSeconds,
		RestrictionsEnabled: l.RestrictionsEnabled,
	}
}

// AgreementParams converts the section into engine parameters.
func (a Agreement) AgreementParams() agreement.Params {
	return agreement.Params{
		GracePeriodSeconds: a.GracePeriodSeconds,
		PenaltyRateBps:     a.PenaltyRateBps,
		DefaultThreshold:   a.DefaultThreshold,
		AllowPartial:       a.AllowPartial,
		AllowEarly:         a.AllowEarly,
	}
}

// GovernancePolicy converts the section into the engine policy.
func (g Governance) GovernancePolicy() governance.Policy {
	return governance.Policy{
		MinProposerBps:      g.MinProposerBps,
		QuorumBps:           g.QuorumBps,
		VotingDelaySeconds:  g.VotingDelaySeconds,
		VotingPeriodSeconds: g.VotingPeriodSeconds,
		MaxRateDeltaBps:     g.MaxRateDeltaBps,
		MaxReserveBps:       g.MaxReserveBps,
		AllowedParams:       append([]string(nil), g.AllowedParams...),
	}
}
