package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"yieldnet/crypto"
)

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.FileExists(t, cfg.ModuleKeystorePath)

	require.NoError(t, ValidateConfig(cfg))
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, uint32(64), cfg.Ledger.MaxHolders)
	require.Equal(t, uint32(3), cfg.Agreement.DefaultThreshold)
	require.Equal(t, uint32(2000), cfg.Governance.QuorumBps)

	// The generated addresses decode and the keystore recovers the module key.
	moduleAddr, err := cfg.ModuleAuthority()
	require.NoError(t, err)
	verifierAddr, err := cfg.Verifier()
	require.NoError(t, err)
	require.NotEqual(t, moduleAddr, verifierAddr)

	key, err := crypto.LoadFromKeystore(cfg.ModuleKeystorePath, "")
	require.NoError(t, err)
	var fromKey [20]byte
	copy(fromKey[:], key.PubKey().Address().Bytes())
	require.Equal(t, moduleAddr, fromKey)
}

func TestLoadRoundTripsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	created, err := Load(path)
	require.NoError(t, err)
	created.Governance.AllowedParams = []string{"fees.distributionBps"}
	created.Ledger.MaxHolderBps = 2500
	require.NoError(t, persist(path, created))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, created.ModuleAddress, loaded.ModuleAddress)
	require.Equal(t, created.VerifierAddress, loaded.VerifierAddress)
	require.Equal(t, uint32(2500), loaded.Ledger.MaxHolderBps)
	require.Equal(t, []string{"fees.distributionBps"}, loaded.Governance.AllowedParams)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	created, err := Load(path)
	require.NoError(t, err)
	created.Governance.QuorumBps = 20_000
	require.NoError(t, persist(path, created))

	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateConfigBounds(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero max holders", mutate: func(c *Config) { c.Ledger.MaxHolders = 0 }},
		{name: "holder bps over full", mutate: func(c *Config) { c.Ledger.MaxHolderBps = 10_001 }},
		{name: "penalty over full", mutate: func(c *Config) { c.Agreement.PenaltyRateBps = 10_001 }},
		{name: "zero default threshold", mutate: func(c *Config) { c.Agreement.DefaultThreshold = 0 }},
		{name: "zero quorum", mutate: func(c *Config) { c.Governance.QuorumBps = 0 }},
		{name: "short voting period", mutate: func(c *Config) { c.Governance.VotingPeriodSeconds = 60 }},
		{name: "zero rate limit", mutate: func(c *Config) { c.Gateway.RateLimitPerSecond = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, ValidateConfig(cfg))
			tc.mutate(cfg)
			require.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestSectionConversions(t *testing.T) {
	cfg := &Config{
		Ledger: Ledger{
			MaxHolders:          8,
			MaxHolderBps:        2500,
			MinHoldingSeconds:   3600,
			LockupSeconds:       7200,
			RestrictionsEnabled: true,
		},
		Agreement: Agreement{
			GracePeriodSeconds: 86_400,
			PenaltyRateBps:     500,
			DefaultThreshold:   3,
			AllowPartial:       true,
		},
		Governance: Governance{
			MinProposerBps:      100,
			QuorumBps:           2000,
			VotingPeriodSeconds: 3600,
			AllowedParams:       []string{"fees.distributionBps"},
		},
	}

	params := cfg.Ledger.LedgerParams()
	require.Equal(t, uint32(8), params.MaxHolders)
	require.True(t, params.RestrictionsEnabled)

	agreementParams := cfg.Agreement.AgreementParams()
	require.Equal(t, uint64(86_400), agreementParams.GracePeriodSeconds)
	require.True(t, agreementParams.AllowPartial)
	require.False(t, agreementParams.AllowEarly)

	policy := cfg.Governance.GovernancePolicy()
	require.Equal(t, uint32(2000), policy.QuorumBps)
	require.Equal(t, []string{"fees.distributionBps"}, policy.AllowedParams)

	// The policy slice is detached from the config.
	policy.AllowedParams[0] = "mutated"
	require.Equal(t, "fees.distributionBps", cfg.Governance.AllowedParams[0])
}
