package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a bookkeeping account owned by the account store.
// Category, Icon and Color are presentation-only.
type Account struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Icon      string          `json:"icon"`
	Color     string          `json:"color"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount holds the fields a caller supplies when opening an account
type NewAccount struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Icon     string          `json:"icon"`
	Color    string          `json:"color"`
	Balance  decimal.Decimal `json:"balance"`
}
