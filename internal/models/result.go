package models

import "github.com/shopspring/decimal"

// TransferResult reports a committed transfer with both accounts as they are after it
type TransferResult struct {
	Success     bool            `json:"success"`
	Amount      decimal.Decimal `json:"amount"`
	FromAccount Account         `json:"from_account"`
	ToAccount   Account         `json:"to_account"`
}

// AdjustResult reports a committed balance adjustment with the account as it is after it
type AdjustResult struct {
	Success    bool            `json:"success"`
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Difference decimal.Decimal `json:"difference"`
	Account    Account         `json:"account"`
}
