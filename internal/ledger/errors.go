package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of failures the engine reports
type Kind int

const (
	EmptySourceAccount Kind = iota + 1
	EmptyDestinationAccount
	SameAccount
	ZeroAmount
	NegativeAmount
	AccountNotFound
	EmptyAccountSelection
	NegativeBalance
	PersistenceFailure
)

var kindNames = map[Kind]string{
	EmptySourceAccount:      "EmptySourceAccount",
	EmptyDestinationAccount: "EmptyDestinationAccount",
	SameAccount:             "SameAccount",
	ZeroAmount:              "ZeroAmount",
	NegativeAmount:          "NegativeAmount",
	AccountNotFound:         "AccountNotFound",
	EmptyAccountSelection:   "EmptyAccountSelection",
	NegativeBalance:         "NegativeBalance",
	PersistenceFailure:      "PersistenceFailure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsValidation reports whether k is raised before any mutation happens
func (k Kind) IsValidation() bool {
	return k != PersistenceFailure && k != 0
}

// Error is returned by every engine operation that fails.
// AccountID and Value carry the offending input where one exists.
type Error struct {
	Kind      Kind
	AccountID string
	Value     *decimal.Decimal
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case EmptySourceAccount:
		return "source account is required"
	case EmptyDestinationAccount:
		return "destination account is required"
	case SameAccount:
		return fmt.Sprintf("source and destination account must differ: %s", e.AccountID)
	case ZeroAmount:
		return "amount must not be zero"
	case NegativeAmount:
		return fmt.Sprintf("amount must not be negative: %s", e.value())
	case AccountNotFound:
		return fmt.Sprintf("account not found: %s", e.AccountID)
	case EmptyAccountSelection:
		return "an account must be selected"
	case NegativeBalance:
		return fmt.Sprintf("balance must not be negative: %s", e.value())
	case PersistenceFailure:
		if e.AccountID != "" {
			return fmt.Sprintf("failed to persist account %s: %v", e.AccountID, e.Err)
		}
		return fmt.Sprintf("failed to persist ledger change: %v", e.Err)
	}
	return e.Kind.String()
}

func (e *Error) value() string {
	if e.Value == nil {
		return ""
	}
	return e.Value.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only, so errors.Is(err, ErrAccountNotFound) holds for any id
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrEmptySourceAccount      = &Error{Kind: EmptySourceAccount}
	ErrEmptyDestinationAccount = &Error{Kind: EmptyDestinationAccount}
	ErrSameAccount             = &Error{Kind: SameAccount}
	ErrZeroAmount              = &Error{Kind: ZeroAmount}
	ErrNegativeAmount          = &Error{Kind: NegativeAmount}
	ErrAccountNotFound         = &Error{Kind: AccountNotFound}
	ErrEmptyAccountSelection   = &Error{Kind: EmptyAccountSelection}
	ErrNegativeBalance         = &Error{Kind: NegativeBalance}
	ErrPersistenceFailure      = &Error{Kind: PersistenceFailure}
)

// ErrNoSuchAccount is returned by AccountStore.Get for an unknown id
var ErrNoSuchAccount = errors.New("no such account")

// KindOf extracts the Kind from err, or 0 when err is not an engine error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func persistenceError(accountID string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: PersistenceFailure, AccountID: accountID, Err: err}
}
