package ledger

import (
	"fmt"
	"math/big"
)

// Holder records one shareholder position inside an agreement ledger. Entries
// are kept in insertion order so pro-rata distribution iterates
// deterministically.
type Holder struct {
	Address [20]byte
	Balance *big.Int
	// ReceiptCount tracks how many times the holder has received shares.
	// The minimum holding period is waived for the first-ever receipt, so
	// LastReceiptAt is only stamped from the second receipt onwards.
	ReceiptCount  uint64
	LastReceiptAt uint64
}

// Allowance records a delegated transfer authorisation.
type Allowance struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

// Ledger is the fungible share register for a single agreement. Total supply
// is minted 1:1 with the agreement principal at creation. A holder appears in
// the Holders slice iff its balance is positive, and the slice never grows
// beyond the configured holder cap.
type Ledger struct {
	AgreementID uint64
	TotalSupply *big.Int
	Holders     []Holder
	Allowances  []Allowance
	// LockupUntil blocks secondary transfers until the timestamp elapses.
	// Mint and burn are funding operations and ignore it.
	LockupUntil uint64
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := &Ledger{
		AgreementID: l.AgreementID,
		TotalSupply: big.NewInt(0),
		LockupUntil: l.LockupUntil,
	}
	if l.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(l.TotalSupply)
	}
	if len(l.Holders) > 0 {
		clone.Holders = make([]Holder, len(l.Holders))
		for i, h := range l.Holders {
			clone.Holders[i] = h
			if h.Balance != nil {
				clone.Holders[i].Balance = new(big.Int).Set(h.Balance)
			} else {
				clone.Holders[i].Balance = big.NewInt(0)
			}
		}
	}
	if len(l.Allowances) > 0 {
		clone.Allowances = make([]Allowance, len(l.Allowances))
		for i, a := range l.Allowances {
			clone.Allowances[i] = a
			if a.Amount != nil {
				clone.Allowances[i].Amount = new(big.Int).Set(a.Amount)
			} else {
				clone.Allowances[i].Amount = big.NewInt(0)
			}
		}
	}
	return clone
}

// BalanceOf returns the holder's balance, zero when absent.
func (l *Ledger) BalanceOf(addr [20]byte) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	for i := range l.Holders {
		if l.Holders[i].Address == addr {
			if l.Holders[i].Balance == nil {
				return big.NewInt(0)
			}
			return new(big.Int).Set(l.Holders[i].Balance)
		}
	}
	return big.NewInt(0)
}

// Allowance returns the remaining delegated transfer amount for the pair.
func (l *Ledger) Allowance(owner, spender [20]byte) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	for i := range l.Allowances {
		if l.Allowances[i].Owner == owner && l.Allowances[i].Spender == spender {
			if l.Allowances[i].Amount == nil {
				return big.NewInt(0)
			}
			return new(big.Int).Set(l.Allowances[i].Amount)
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) holderIndex(addr [20]byte) int {
	for i := range l.Holders {
		if l.Holders[i].Address == addr {
			return i
		}
	}
	return -1
}

// SanitizeLedger validates a ledger record loaded from state, normalising nil
// amounts and checking that holder balances sum to the recorded supply.
func SanitizeLedger(l *Ledger) (*Ledger, error) {
	if l == nil {
		return nil, fmt.Errorf("nil ledger")
	}
	clone := l.Clone()
	if clone.TotalSupply.Sign() < 0 {
		return nil, fmt.Errorf("ledger supply must be non-negative")
	}
	sum := big.NewInt(0)
	for i := range clone.Holders {
		if clone.Holders[i].Balance.Sign() <= 0 {
			return nil, fmt.Errorf("holder %x carried with non-positive balance", clone.Holders[i].Address)
		}
		sum.Add(sum, clone.Holders[i].Balance)
	}
	if sum.Cmp(clone.TotalSupply) != 0 {
		return nil, fmt.Errorf("holder balances %s do not sum to supply %s", sum, clone.TotalSupply)
	}
	return clone, nil
}
