package ledger

import (
	"context"

	"github.com/Dan9191/bookkeeping-service/internal/models"
)

// AccountStore is the key-value account store the engine reads and rewrites.
// Get returns ErrNoSuchAccount when id is unknown.
type AccountStore interface {
	Get(ctx context.Context, id string) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Save(ctx context.Context, account models.Account) error
}

// HistoryLog is the append-only sink for history entries
type HistoryLog interface {
	Append(ctx context.Context, entry models.HistoryEntry) error
}

// Transactor is implemented by stores that can stage several writes and
// commit them together. fn receives handles bound to the transaction; if it
// returns an error nothing it wrote becomes visible.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(accounts AccountStore, history HistoryLog) error) error
}
