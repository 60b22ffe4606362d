package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind identifies the record carried by a HistoryEntry
type EntryKind string

const (
	EntryTransfer   EntryKind = "transfer"
	EntryAdjustment EntryKind = "adjustment"
)

// TransferRecord documents one successful transfer
type TransferRecord struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category,omitempty"`
	Note          string          `json:"note,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AdjustmentRecord documents one successful balance adjustment
type AdjustmentRecord struct {
	AccountID  string          `json:"account_id"`
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Difference decimal.Decimal `json:"difference"`
	Note       string          `json:"note,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// HistoryEntry is the write-once envelope appended to the history log.
// Exactly one of Transfer and Adjustment is set, matching Kind.
type HistoryEntry struct {
	ID         string            `json:"id"`
	Kind       EntryKind         `json:"kind"`
	Timestamp  time.Time         `json:"timestamp"`
	Transfer   *TransferRecord   `json:"transfer,omitempty"`
	Adjustment *AdjustmentRecord `json:"adjustment,omitempty"`
	Signature  string            `json:"signature,omitempty"`
}

// AccountIDs returns the accounts touched by the entry
func (e HistoryEntry) AccountIDs() []string {
	switch {
	case e.Transfer != nil:
		return []string{e.Transfer.FromAccountID, e.Transfer.ToAccountID}
	case e.Adjustment != nil:
		return []string{e.Adjustment.AccountID}
	}
	return nil
}
