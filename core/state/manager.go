package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"yieldnet/core/types"
	"yieldnet/storage"
)

var errInsufficientFunds = errors.New("state: insufficient account balance")

// Manager persists engine state in a key-value store. Records are RLP encoded
// under keccak-hashed prefixed keys. The manager performs no locking of its
// own; callers serialise mutating operations.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// nextSequence allocates the next identifier from a monotonic counter. The
// first allocated identifier is 1 so zero can mean "unset" in references.
func (m *Manager) nextSequence(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.getRLP(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.putRLP(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

type storedAccount struct {
	Nonce   uint64
	Balance string
}

// GetAccount loads the account record, returning a zero-value account when the
// address has never been seen.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.getRLP(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	balance, err := parseAmount(stored.Balance)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted balance for %x: %w", addr, err)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount stores the account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: account must not be nil")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: account balance must not be negative")
	}
	stored := storedAccount{Nonce: account.Nonce, Balance: balance.String()}
	return m.putRLP(accountKey(addr), stored)
}

// AccountBalance reports the spendable balance for the address.
func (m *Manager) AccountBalance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// AccountCredit adds the amount to the address balance.
func (m *Manager) AccountCredit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// AccountDebit subtracts the amount from the address balance, failing when the
// balance would go negative.
func (m *Manager) AccountDebit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: debit amount must be non-negative")
	}
	account, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if account.Balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	account.Balance = new(big.Int).Sub(account.Balance, amount)
	return m.PutAccount(addr, account)
}

// ParamStoreSet writes a governance-controlled parameter entry.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("state: parameter name must not be empty")
	}
	return m.putRLP(paramStoreKey(trimmed), value)
}

// ParamStoreGet reads a parameter entry, reporting whether it exists.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	var value []byte
	ok, err := m.getRLP(paramStoreKey(strings.TrimSpace(name)), &value)
	if err != nil || !ok {
		return nil, false, err
	}
	return value, true, nil
}

// SetPaused adds or removes the module from the persisted pause registry.
func (m *Manager) SetPaused(module string, paused bool) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("state: module name must not be empty")
	}
	list, err := m.pausedModules()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(list))
	for _, name := range list {
		set[name] = struct{}{}
	}
	if paused {
		set[trimmed] = struct{}{}
	} else {
		delete(set, trimmed)
	}
	updated := make([]string, 0, len(set))
	for name := range set {
		updated = append(updated, name)
	}
	sort.Strings(updated)
	return m.putRLP(pauseRegistryKey, updated)
}

// IsPaused reports whether the module is present in the pause registry. The
// signature satisfies the guard view consumed by the engines.
func (m *Manager) IsPaused(module string) bool {
	list, err := m.pausedModules()
	if err != nil {
		return false
	}
	for _, name := range list {
		if name == module {
			return true
		}
	}
	return false
}

func (m *Manager) pausedModules() ([]string, error) {
	var list []string
	if _, err := m.getRLP(pauseRegistryKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
