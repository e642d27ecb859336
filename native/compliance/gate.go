package compliance

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"yieldnet/crypto"
)

var (
	// ErrBlacklisted is returned when a participant is on the deny list.
	// Blacklist membership blocks unconditionally, overriding whitelist
	// status.
	ErrBlacklisted = errors.New("compliance: participant blacklisted")
	// ErrNotWhitelisted is returned when whitelist enforcement is active and
	// the participant is absent from the allow list.
	ErrNotWhitelisted = errors.New("compliance: participant not whitelisted")
)

// Gate is the capability interface consulted before every principal-changing
// operation. Implementations live outside the engines; the engines depend on
// nothing beyond these two lookups.
type Gate interface {
	IsWhitelisted(addr [20]byte) bool
	IsBlacklisted(addr [20]byte) bool
}

// Check applies the gate policy: blacklist wins over whitelist, and a missing
// whitelist entry blocks unless the gate reports whitelisting as disabled by
// whitelisting everyone. A nil gate disables compliance entirely.
func Check(gate Gate, addr [20]byte) error {
	if gate == nil {
		return nil
	}
	if gate.IsBlacklisted(addr) {
		return ErrBlacklisted
	}
	if !gate.IsWhitelisted(addr) {
		return ErrNotWhitelisted
	}
	return nil
}

// Config describes the allow and deny lists backing the default gate. Entries
// are bech32 addresses.
type Config struct {
	EnforceWhitelist bool     `toml:"EnforceWhitelist"`
	AllowList        []string `toml:"AllowList"`
	DenyList         []string `toml:"DenyList"`
}

// Normalise trims whitespace, removes duplicates, and applies canonical casing.
func (cfg Config) Normalise() Config {
	out := Config{EnforceWhitelist: cfg.EnforceWhitelist}
	out.AllowList = normaliseList(cfg.AllowList)
	out.DenyList = normaliseList(cfg.DenyList)
	return out
}

func normaliseList(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	trimmed := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		normalized := strings.ToLower(strings.TrimSpace(raw))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		trimmed = append(trimmed, normalized)
	}
	sort.Strings(trimmed)
	return trimmed
}

// ListGate is a Gate backed by static allow/deny lists. When whitelist
// enforcement is disabled every non-blacklisted participant passes.
type ListGate struct {
	enforceWhitelist bool
	allowed          map[[20]byte]struct{}
	denied           map[[20]byte]struct{}
}

// NewListGate converts the configuration into a runtime gate, decoding the
// bech32 entries.
func NewListGate(cfg Config) (*ListGate, error) {
	normalized := cfg.Normalise()
	gate := &ListGate{
		enforceWhitelist: normalized.EnforceWhitelist,
		allowed:          make(map[[20]byte]struct{}, len(normalized.AllowList)),
		denied:           make(map[[20]byte]struct{}, len(normalized.DenyList)),
	}
	for _, entry := range normalized.AllowList {
		addr, err := decodeEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("compliance: decode allow list entry %q: %w", entry, err)
		}
		gate.allowed[addr] = struct{}{}
	}
	for _, entry := range normalized.DenyList {
		addr, err := decodeEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("compliance: decode deny list entry %q: %w", entry, err)
		}
		gate.denied[addr] = struct{}{}
	}
	return gate, nil
}

func decodeEntry(entry string) ([20]byte, error) {
	var addr [20]byte
	decoded, err := crypto.DecodeAddress(entry)
	if err != nil {
		return addr, err
	}
	copy(addr[:], decoded.Bytes())
	return addr, nil
}

// IsWhitelisted reports allow-list membership; with enforcement disabled it
// reports true for everyone.
func (g *ListGate) IsWhitelisted(addr [20]byte) bool {
	if g == nil || !g.enforceWhitelist {
		return true
	}
	_, ok := g.allowed[addr]
	return ok
}

// IsBlacklisted reports deny-list membership.
func (g *ListGate) IsBlacklisted(addr [20]byte) bool {
	if g == nil {
		return false
	}
	_, ok := g.denied[addr]
	return ok
}
