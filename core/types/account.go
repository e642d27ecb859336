package types

import "math/big"

// Account holds the spendable currency balance for a protocol participant.
// Repayments debit the payer account and distributions credit holder accounts
// in the smallest currency unit.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
