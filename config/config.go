package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"yieldnet/crypto"
	"yieldnet/native/compliance"
)

// Config is the persisted daemon configuration. Missing files are created with
// freshly generated authority addresses so a bare `yieldd` start works.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// ModuleAddress is the bech32 address acting as the agreement module
	// authority over the share ledgers.
	ModuleAddress string `toml:"ModuleAddress"`
	// VerifierAddress is the bech32 address allowed to verify registry assets.
	VerifierAddress string `toml:"VerifierAddress"`
	// ModuleKeystorePath holds the encrypted key backing ModuleAddress when the
	// config was auto-generated.
	ModuleKeystorePath string `toml:"ModuleKeystorePath,omitempty"`

	Ledger     Ledger            `toml:"ledger"`
	Agreement  Agreement         `toml:"agreement"`
	Governance Governance        `toml:"governance"`
	Compliance compliance.Config `toml:"compliance"`
	Pauses     Pauses            `toml:"pauses"`
	Gateway    Gateway           `toml:"gateway"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ModuleAuthority decodes the configured module authority address.
func (c *Config) ModuleAuthority() ([20]byte, error) {
	return decodeAuthority(c.ModuleAddress, "ModuleAddress")
}

// Verifier decodes the configured registry verification authority address.
func (c *Config) Verifier() ([20]byte, error) {
	return decodeAuthority(c.VerifierAddress, "VerifierAddress")
}

func decodeAuthority(encoded, field string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return out, fmt.Errorf("config: %s must not be empty", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("config: invalid %s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./yield-data"
	}
	if cfg.Ledger.MaxHolders == 0 {
		cfg.Ledger.MaxHolders = 64
	}
	if cfg.Agreement.DefaultThreshold == 0 {
		cfg.Agreement.DefaultThreshold = 3
	}
	if cfg.Governance.QuorumBps == 0 {
		cfg.Governance.QuorumBps = 2000
	}
	if cfg.Governance.VotingPeriodSeconds == 0 {
		cfg.Governance.VotingPeriodSeconds = 7 * 24 * 3600
	}
	if cfg.Governance.MaxRateDeltaBps == 0 {
		cfg.Governance.MaxRateDeltaBps = 500
	}
	if cfg.Governance.MaxReserveBps == 0 {
		cfg.Governance.MaxReserveBps = 2000
	}
	if cfg.Gateway.RateLimitPerSecond == 0 {
		cfg.Gateway.RateLimitPerSecond = 50
	}
	if cfg.Gateway.RateLimitBurst == 0 {
		cfg.Gateway.RateLimitBurst = 100
	}
}

// createDefault creates and saves a default configuration file with generated
// authority addresses.
func createDefault(path string) (*Config, error) {
	moduleKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	verifierKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, moduleKey, ""); err != nil {
		return nil, err
	}
	cfg := &Config{
		ModuleAddress:      moduleKey.PubKey().Address().String(),
		VerifierAddress:    verifierKey.PubKey().Address().String(),
		ModuleKeystorePath: keystorePath,
		Agreement: Agreement{
			GracePeriodSeconds: 5 * 24 * 3600,
			PenaltyRateBps:     500,
			AllowPartial:       true,
		},
		Governance: Governance{
			MinProposerBps:     100,
			VotingDelaySeconds: 24 * 3600,
			AllowedParams:      []string{"fees.distributionBps"},
		},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "module.keystore")
}
