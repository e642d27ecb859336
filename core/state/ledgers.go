package state

import (
	"fmt"

	"yieldnet/native/ledger"
)

type storedHolder struct {
	Address       [20]byte
	Balance       string
	ReceiptCount  uint64
	LastReceiptAt uint64
}

type storedAllowance struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  string
}

type storedLedger struct {
	AgreementID uint64
	TotalSupply string
	Holders     []storedHolder
	Allowances  []storedAllowance
	LockupUntil uint64
}

// LedgerPut stores the share register keyed by its agreement identifier.
func (m *Manager) LedgerPut(l *ledger.Ledger) error {
	if l == nil {
		return fmt.Errorf("state: ledger must not be nil")
	}
	stored := storedLedger{
		AgreementID: l.AgreementID,
		TotalSupply: "0",
		LockupUntil: l.LockupUntil,
	}
	if l.TotalSupply != nil {
		stored.TotalSupply = l.TotalSupply.String()
	}
	if len(l.Holders) > 0 {
		stored.Holders = make([]storedHolder, len(l.Holders))
		for i, h := range l.Holders {
			stored.Holders[i] = storedHolder{
				Address:       h.Address,
				Balance:       "0",
				ReceiptCount:  h.ReceiptCount,
				LastReceiptAt: h.LastReceiptAt,
			}
			if h.Balance != nil {
				stored.Holders[i].Balance = h.Balance.String()
			}
		}
	}
	if len(l.Allowances) > 0 {
		stored.Allowances = make([]storedAllowance, len(l.Allowances))
		for i, a := range l.Allowances {
			stored.Allowances[i] = storedAllowance{
				Owner:   a.Owner,
				Spender: a.Spender,
				Amount:  "0",
			}
			if a.Amount != nil {
				stored.Allowances[i].Amount = a.Amount.String()
			}
		}
	}
	return m.putRLP(ledgerKey(stored.AgreementID), stored)
}

// LedgerGet loads the share register, reporting whether it exists. Loaded
// records pass the ledger sanitiser so corrupted supply invariants surface at
// read time rather than during distribution.
func (m *Manager) LedgerGet(agreementID uint64) (*ledger.Ledger, bool, error) {
	var stored storedLedger
	ok, err := m.getRLP(ledgerKey(agreementID), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := toLedger(&stored)
	if err != nil {
		return nil, false, err
	}
	sanitized, err := ledger.SanitizeLedger(record)
	if err != nil {
		return nil, false, fmt.Errorf("state: ledger %d: %w", agreementID, err)
	}
	return sanitized, true, nil
}

func toLedger(stored *storedLedger) (*ledger.Ledger, error) {
	if stored == nil {
		return nil, fmt.Errorf("state: stored ledger nil")
	}
	supply, err := parseAmount(stored.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("state: corrupted supply for ledger %d: %w", stored.AgreementID, err)
	}
	record := &ledger.Ledger{
		AgreementID: stored.AgreementID,
		TotalSupply: supply,
		LockupUntil: stored.LockupUntil,
	}
	if len(stored.Holders) > 0 {
		record.Holders = make([]ledger.Holder, len(stored.Holders))
		for i, h := range stored.Holders {
			balance, err := parseAmount(h.Balance)
			if err != nil {
				return nil, fmt.Errorf("state: corrupted holder balance in ledger %d: %w", stored.AgreementID, err)
			}
			record.Holders[i] = ledger.Holder{
				Address:       h.Address,
				Balance:       balance,
				ReceiptCount:  h.ReceiptCount,
				LastReceiptAt: h.LastReceiptAt,
			}
		}
	}
	if len(stored.Allowances) > 0 {
		record.Allowances = make([]ledger.Allowance, len(stored.Allowances))
		for i, a := range stored.Allowances {
			amount, err := parseAmount(a.Amount)
			if err != nil {
				return nil, fmt.Errorf("state: corrupted allowance in ledger %d: %w", stored.AgreementID, err)
			}
			record.Allowances[i] = ledger.Allowance{Owner: a.Owner, Spender: a.Spender, Amount: amount}
		}
	}
	return record, nil
}
