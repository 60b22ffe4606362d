package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
	"github.com/Dan9191/bookkeeping-service/internal/utils"
)

// TransferRequest moves Amount from FromID to ToID
type TransferRequest struct {
	FromID   string
	ToID     string
	Amount   decimal.Decimal
	Category string
	Note     string
}

// AdjustRequest sets the balance of AccountID to NewBalance
type AdjustRequest struct {
	AccountID  string
	NewBalance decimal.Decimal
	Note       string
}

// Engine validates and applies balance-changing operations.
// Operations are serialized by an engine-wide lock; callers sharing the same
// store must go through a single Engine.
type Engine struct {
	mu         sync.Mutex
	store      AccountStore
	history    HistoryLog
	log        *logrus.Logger
	now        func() time.Time
	newID      func() string
	hmacSecret string
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how history entry ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithSigningSecret makes the engine sign every history entry with HMAC-SHA256
func WithSigningSecret(secret string) Option {
	return func(e *Engine) { e.hmacSecret = secret }
}

// NewEngine builds an engine over store and history. When store implements
// Transactor every operation is committed as one unit and the history handle
// supplied by the transaction is used instead of history.
func NewEngine(store AccountStore, history HistoryLog, log *logrus.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{
		store:   store,
		history: history,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer moves an exact amount between two distinct accounts.
// No overdraft check is made; the source balance may become negative.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (models.TransferResult, error) {
	if err := validateTransfer(req.FromID, req.ToID, req.Amount); err != nil {
		e.rejected("transfer", err)
		return models.TransferResult{}, err
	}

	amount := money.Round(req.Amount)

	e.mu.Lock()
	defer e.mu.Unlock()

	var result models.TransferResult
	err := e.run(ctx, func(accounts AccountStore, history HistoryLog) error {
		from, err := lookup(ctx, accounts, req.FromID)
		if err != nil {
			return err
		}
		to, err := lookup(ctx, accounts, req.ToID)
		if err != nil {
			return err
		}

		now := e.now().UTC().Truncate(time.Microsecond)
		from.Balance = money.Round(from.Balance.Sub(amount))
		from.UpdatedAt = now
		to.Balance = money.Round(to.Balance.Add(amount))
		to.UpdatedAt = now

		if err := accounts.Save(ctx, from); err != nil {
			return persistenceError(from.ID, err)
		}
		if err := accounts.Save(ctx, to); err != nil {
			return persistenceError(to.ID, err)
		}

		entry := e.entry(now, models.EntryTransfer)
		entry.Transfer = &models.TransferRecord{
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        amount,
			Category:      req.Category,
			Note:          req.Note,
			Timestamp:     now,
		}
		if err := e.append(ctx, history, entry); err != nil {
			return err
		}

		result = models.TransferResult{
			Success:     true,
			Amount:      amount,
			FromAccount: from,
			ToAccount:   to,
		}
		return nil
	})
	if err != nil {
		e.rejected("transfer", err)
		return models.TransferResult{}, err
	}

	e.log.WithFields(logrus.Fields{
		"operation": "transfer",
		"from":      req.FromID,
		"to":        req.ToID,
		"amount":    money.Format(amount),
	}).Info("Transfer committed")
	return result, nil
}

// AdjustBalance sets an account's balance directly and records the signed difference
func (e *Engine) AdjustBalance(ctx context.Context, req AdjustRequest) (models.AdjustResult, error) {
	if req.AccountID == "" {
		err := &Error{Kind: EmptyAccountSelection}
		e.rejected("adjust_balance", err)
		return models.AdjustResult{}, err
	}
	newBalance := money.Round(req.NewBalance)

	e.mu.Lock()
	defer e.mu.Unlock()

	var result models.AdjustResult
	err := e.run(ctx, func(accounts AccountStore, history HistoryLog) error {
		account, err := lookup(ctx, accounts, req.AccountID)
		if err != nil {
			return err
		}
		if req.NewBalance.IsNegative() {
			v := req.NewBalance
			return &Error{Kind: NegativeBalance, AccountID: req.AccountID, Value: &v}
		}

		now := e.now().UTC().Truncate(time.Microsecond)
		oldBalance := account.Balance
		difference := money.Round(newBalance.Sub(oldBalance))
		account.Balance = newBalance
		account.UpdatedAt = now

		if err := accounts.Save(ctx, account); err != nil {
			return persistenceError(account.ID, err)
		}

		entry := e.entry(now, models.EntryAdjustment)
		entry.Adjustment = &models.AdjustmentRecord{
			AccountID:  account.ID,
			OldBalance: oldBalance,
			NewBalance: newBalance,
			Difference: difference,
			Note:       req.Note,
			Timestamp:  now,
		}
		if err := e.append(ctx, history, entry); err != nil {
			return err
		}

		result = models.AdjustResult{
			Success:    true,
			OldBalance: oldBalance,
			NewBalance: newBalance,
			Difference: difference,
			Account:    account,
		}
		return nil
	})
	if err != nil {
		e.rejected("adjust_balance", err)
		return models.AdjustResult{}, err
	}

	e.log.WithFields(logrus.Fields{
		"operation":  "adjust_balance",
		"account_id": req.AccountID,
		"old":        money.Format(result.OldBalance),
		"new":        money.Format(result.NewBalance),
	}).Info("Balance adjusted")
	return result, nil
}

// validateTransfer checks the sign of the raw amount, so -0.004 is negative
// while 0.004 rounds to zero.
func validateTransfer(fromID, toID string, amount decimal.Decimal) error {
	switch {
	case fromID == "":
		return &Error{Kind: EmptySourceAccount}
	case toID == "":
		return &Error{Kind: EmptyDestinationAccount}
	case fromID == toID:
		return &Error{Kind: SameAccount, AccountID: fromID}
	case amount.IsNegative():
		return &Error{Kind: NegativeAmount, Value: &amount}
	case money.Round(amount).IsZero():
		return &Error{Kind: ZeroAmount, Value: &amount}
	}
	return nil
}

func lookup(ctx context.Context, accounts AccountStore, id string) (models.Account, error) {
	account, err := accounts.Get(ctx, id)
	if errors.Is(err, ErrNoSuchAccount) {
		return models.Account{}, &Error{Kind: AccountNotFound, AccountID: id}
	}
	if err != nil {
		return models.Account{}, persistenceError(id, err)
	}
	return account, nil
}

// run executes fn inside a store transaction when one is available
func (e *Engine) run(ctx context.Context, fn func(AccountStore, HistoryLog) error) error {
	tx, ok := e.store.(Transactor)
	if !ok {
		return fn(e.store, e.history)
	}
	if err := tx.WithinTx(ctx, fn); err != nil {
		return persistenceError("", err)
	}
	return nil
}

func (e *Engine) entry(now time.Time, kind models.EntryKind) models.HistoryEntry {
	return models.HistoryEntry{
		ID:        e.newID(),
		Kind:      kind,
		Timestamp: now,
	}
}

func (e *Engine) append(ctx context.Context, history HistoryLog, entry models.HistoryEntry) error {
	if e.hmacSecret != "" {
		sig, err := utils.SignEntry(entry, e.hmacSecret)
		if err != nil {
			return persistenceError("", err)
		}
		entry.Signature = sig
	}
	if err := history.Append(ctx, entry); err != nil {
		return persistenceError("", err)
	}
	return nil
}

func (e *Engine) rejected(op string, err error) {
	fields := logrus.Fields{"operation": op, "kind": KindOf(err).String()}
	if KindOf(err) == PersistenceFailure {
		e.log.WithFields(fields).Errorf("Ledger write failed: %v", err)
		return
	}
	e.log.WithFields(fields).Warnf("Ledger operation rejected: %v", err)
}
