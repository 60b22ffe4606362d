package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
)

// FileStore keeps accounts and history in memory and mirrors every committed
// change into a JSON snapshot. A FileStore without a path never touches disk.
type FileStore struct {
	mu       sync.Mutex
	path     string
	accounts map[string]models.Account
	history  []models.HistoryEntry
	log      *logrus.Logger
}

// NewMemoryStore returns a store that is never flushed to disk
func NewMemoryStore() *FileStore {
	return &FileStore{
		accounts: make(map[string]models.Account),
		log:      logrus.StandardLogger(),
	}
}

// Open loads the snapshot in dir, starting empty when there is none yet
func Open(dir string, log *logrus.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	s := NewMemoryStore()
	s.path = filepath.Join(dir, snapshotFile)
	if log != nil {
		s.log = log
	}

	snap, err := LoadSnapshot(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Infof("No snapshot at %s, starting with an empty ledger", s.path)
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	for _, a := range snap.Accounts {
		s.accounts[a.ID] = a
	}
	s.history = snap.History
	s.log.Infof("Loaded %d accounts and %d history entries from %s", len(snap.Accounts), len(snap.History), s.path)
	return s, nil
}

// Get returns the account with the given id
func (s *FileStore) Get(_ context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *FileStore) get(id string) (models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ledger.ErrNoSuchAccount
	}
	return a, nil
}

// List returns all accounts ordered by creation time
func (s *FileStore) List(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(), nil
}

func (s *FileStore) list() []models.Account {
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Save overwrites an existing account
func (s *FileStore) Save(ctx context.Context, account models.Account) error {
	return s.WithinTx(ctx, func(accounts ledger.AccountStore, _ ledger.HistoryLog) error {
		return accounts.Save(ctx, account)
	})
}

// Append adds an entry to the history log
func (s *FileStore) Append(ctx context.Context, entry models.HistoryEntry) error {
	return s.WithinTx(ctx, func(_ ledger.AccountStore, history ledger.HistoryLog) error {
		return history.Append(ctx, entry)
	})
}

// Create opens a new account. ID and timestamps are assigned when empty.
func (s *FileStore) Create(_ context.Context, account models.Account) (models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	account.Balance = money.Round(account.Balance)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return models.Account{}, fmt.Errorf("account %s already exists", account.ID)
	}
	s.accounts[account.ID] = account
	if err := s.flush(); err != nil {
		delete(s.accounts, account.ID)
		return models.Account{}, err
	}
	return account, nil
}

// History returns the history log, oldest first
func (s *FileStore) History(_ context.Context) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out, nil
}

// WithinTx stages every write made through the handles passed to fn and
// applies them only if fn succeeds and the snapshot is flushed.
func (s *FileStore) WithinTx(_ context.Context, fn func(ledger.AccountStore, ledger.HistoryLog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stagedTx{store: s, accounts: make(map[string]models.Account)}
	if err := fn(tx, tx); err != nil {
		return err
	}
	if len(tx.accounts) == 0 && len(tx.history) == 0 {
		return nil
	}

	previous := make(map[string]models.Account, len(tx.accounts))
	for id := range tx.accounts {
		previous[id] = s.accounts[id]
	}
	historyLen := len(s.history)

	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	s.history = append(s.history, tx.history...)

	if err := s.flush(); err != nil {
		for id, a := range previous {
			s.accounts[id] = a
		}
		s.history = s.history[:historyLen]
		return err
	}
	return nil
}

// flush writes the snapshot; callers hold s.mu
func (s *FileStore) flush() error {
	if s.path == "" {
		return nil
	}
	snap := Snapshot{
		Meta:     Meta{Storage: snapshotKind, Version: snapshotVersion},
		Accounts: s.list(),
		History:  s.history,
	}
	if err := SaveSnapshot(s.path, snap); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// stagedTx collects writes on top of the store's committed state
type stagedTx struct {
	store    *FileStore
	accounts map[string]models.Account
	history  []models.HistoryEntry
}

func (t *stagedTx) Get(_ context.Context, id string) (models.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	return t.store.get(id)
}

func (t *stagedTx) List(_ context.Context) ([]models.Account, error) {
	out := t.store.list()
	for i, a := range out {
		if staged, ok := t.accounts[a.ID]; ok {
			out[i] = staged
		}
	}
	return out, nil
}

func (t *stagedTx) Save(ctx context.Context, account models.Account) error {
	if _, err := t.Get(ctx, account.ID); err != nil {
		return err
	}
	t.accounts[account.ID] = account
	return nil
}

func (t *stagedTx) Append(_ context.Context, entry models.HistoryEntry) error {
	t.history = append(t.history, entry)
	return nil
}

// LoadSnapshot reads a snapshot file
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot writes snap next to path and renames it into place
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = snapshotKind
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
