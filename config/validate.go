package config

import "fmt"

// MinVotingPeriodSeconds is the floor applied to governance voting windows so
// proposals cannot be rushed through before holders can react.
var MinVotingPeriodSeconds = uint64(3600)

// ValidateConfig checks the cross-field constraints the engines rely on.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.Ledger.MaxHolders == 0 {
		return fmt.Errorf("ledger: MaxHolders must be positive")
	}
	if cfg.Ledger.MaxHolderBps > 10_000 {
		return fmt.Errorf("ledger: MaxHolderBps > 10000")
	}
	if cfg.Agreement.PenaltyRateBps > 10_000 {
		return fmt.Errorf("agreement: PenaltyRateBps > 10000")
	}
	if cfg.Agreement.DefaultThreshold == 0 {
		return fmt.Errorf("agreement: DefaultThreshold must be positive")
	}
	if cfg.Governance.QuorumBps == 0 || cfg.Governance.QuorumBps > 10_000 {
		return fmt.Errorf("governance: QuorumBps outside (0, 10000]")
	}
	if cfg.Governance.MinProposerBps > 10_000 {
		return fmt.Errorf("governance: MinProposerBps > 10000")
	}
	if cfg.Governance.VotingPeriodSeconds < MinVotingPeriodSeconds {
		return fmt.Errorf("governance: VotingPeriodSeconds below minimum %d", MinVotingPeriodSeconds)
	}
	if cfg.Gateway.RateLimitPerSecond <= 0 {
		return fmt.Errorf("gateway: RateLimitPerSecond must be positive")
	}
	if cfg.Gateway.RateLimitBurst <= 0 {
		return fmt.Errorf("gateway: RateLimitBurst must be positive")
	}
	return nil
}
