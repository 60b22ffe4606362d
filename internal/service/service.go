package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/bookkeeping-service/internal/config"
	"github.com/Dan9191/bookkeeping-service/internal/export"
	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
	"github.com/Dan9191/bookkeeping-service/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is not configured")
	ErrEmptyName          = errors.New("account name is required")
	ErrNegativeOpening    = errors.New("opening balance must not be negative")
	ErrSigningDisabled    = errors.New("history signing is not configured")
)

const tokenTTL = 24 * time.Hour

// Store is the account store plus the operations the engine does not need
type Store interface {
	ledger.AccountStore
	Create(ctx context.Context, account models.Account) (models.Account, error)
	History(ctx context.Context) ([]models.HistoryEntry, error)
}

// Notifier is told about committed operations
type Notifier interface {
	SendTransferNotice(res models.TransferResult, note string) error
	SendAdjustmentNotice(res models.AdjustResult, note string) error
}

// Service handles business logic
type Service struct {
	store    Store
	engine   *ledger.Engine
	notifier Notifier
	log      *logrus.Logger
	config   *config.Config
}

// NewService initializes a new service. notifier may be nil.
func NewService(store Store, engine *ledger.Engine, notifier Notifier, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, engine: engine, notifier: notifier, log: log, config: cfg}
}

// Login checks the owner password and returns a signed JWT
func (s *Service) Login(password string) (models.Token, error) {
	if !s.config.AuthEnabled() {
		return models.Token{}, ErrAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.OwnerPasswordHash), []byte(password)); err != nil {
		s.log.Warn("Rejected login attempt")
		return models.Token{}, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return models.Token{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Info("Owner logged in")
	return models.Token{AccessToken: tokenString, ExpiresAt: expiresAt.Unix()}, nil
}

// CreateAccount opens a new account
func (s *Service) CreateAccount(ctx context.Context, in models.NewAccount) (models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Account{}, ErrEmptyName
	}
	if in.Balance.IsNegative() {
		return models.Account{}, ErrNegativeOpening
	}
	balance := money.Round(in.Balance)

	account, err := s.store.Create(ctx, models.Account{
		Name:     name,
		Category: in.Category,
		Icon:     in.Icon,
		Color:    in.Color,
		Balance:  balance,
	})
	if err != nil {
		return models.Account{}, err
	}

	s.log.Infof("Account created: %s (%s)", account.Name, account.ID)
	return account, nil
}

// ListAccounts returns every account
func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.store.List(ctx)
}

// GetAccount returns one account; unknown ids yield an AccountNotFound error
func (s *Service) GetAccount(ctx context.Context, id string) (models.Account, error) {
	account, err := s.store.Get(ctx, id)
	if errors.Is(err, ledger.ErrNoSuchAccount) {
		return models.Account{}, &ledger.Error{Kind: ledger.AccountNotFound, AccountID: id}
	}
	return account, err
}

// TotalBalance sums the balances of all accounts
func (s *Service) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	balances := make([]decimal.Decimal, len(accounts))
	for i, a := range accounts {
		balances[i] = a.Balance
	}
	return money.Sum(balances...), nil
}

// Transfer moves money between two accounts
func (s *Service) Transfer(ctx context.Context, req ledger.TransferRequest) (models.TransferResult, error) {
	res, err := s.engine.Transfer(ctx, req)
	if err != nil {
		return res, err
	}
	if s.notifier != nil {
		if err := s.notifier.SendTransferNotice(res, req.Note); err != nil {
			s.log.Warnf("Transfer committed but notification failed: %v", err)
		}
	}
	return res, nil
}

// AdjustBalance reconciles one account to a known balance
func (s *Service) AdjustBalance(ctx context.Context, req ledger.AdjustRequest) (models.AdjustResult, error) {
	res, err := s.engine.AdjustBalance(ctx, req)
	if err != nil {
		return res, err
	}
	if s.notifier != nil {
		if err := s.notifier.SendAdjustmentNotice(res, req.Note); err != nil {
			s.log.Warnf("Adjustment committed but notification failed: %v", err)
		}
	}
	return res, nil
}

// History returns the audit log, oldest first
func (s *Service) History(ctx context.Context) ([]models.HistoryEntry, error) {
	return s.store.History(ctx)
}

// VerifyHistory returns the ids of entries whose signature does not match.
// Without an HMAC secret nothing was signed, so it returns ErrSigningDisabled.
func (s *Service) VerifyHistory(ctx context.Context) ([]string, error) {
	if s.config.HMACSecret == "" {
		return nil, ErrSigningDisabled
	}
	entries, err := s.store.History(ctx)
	if err != nil {
		return nil, err
	}
	invalid := []string{}
	for _, e := range entries {
		if !utils.VerifyEntry(e, s.config.HMACSecret) {
			invalid = append(invalid, e.ID)
		}
	}
	if len(invalid) > 0 {
		s.log.WithField("entries", len(invalid)).Warn("History entries failed signature check")
	}
	return invalid, nil
}

// ExportStatement writes an XML statement of all accounts and history to w
func (s *Service) ExportStatement(ctx context.Context, w io.Writer) error {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	entries, err := s.store.History(ctx)
	if err != nil {
		return err
	}
	return export.WriteStatement(w, accounts, entries, time.Now())
}
