// Package domain holds the reference data models shared across modules.
package domain

import "github.com/shopspring/decimal"

// AssetClass is immutable reference data. Exactly one class carries the
// IsCash flag; it receives the implicit residual when a policy scope does
// not state cash explicitly.
type AssetClass struct {
	Name         string `json:"name"`
	CategoryCode string `json:"category_code"`
	ID           int64  `json:"id"`
	IsCash       bool   `json:"is_cash"`
}

// AccountType is reference data describing the tax treatment bucket an
// account belongs to (tax_deferred, tax_free, taxable).
type AccountType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	ID    int64  `json:"id"`
}

// Account belongs to exactly one AccountType and owns zero or more holdings.
// The engine treats it as read-only input.
type Account struct {
	Name          string `json:"name"`
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	AccountTypeID int64  `json:"account_type_id"`
}

// Security maps a ticker to its asset class.
type Security struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	ID           int64  `json:"id"`
	AssetClassID int64  `json:"asset_class_id"`
}

// Holding is a position in one account. Value is shares times the last
// stored price; the engine never writes it.
type Holding struct {
	Shares     decimal.Decimal `json:"shares"`
	Value      decimal.Decimal `json:"value"`
	ID         int64           `json:"id"`
	AccountID  int64           `json:"account_id"`
	SecurityID int64           `json:"security_id"`
}

// ScopeType identifies the level a policy target record applies at.
type ScopeType string

const (
	// ScopeAccountType targets apply to every account of the type unless overridden
	ScopeAccountType ScopeType = "type"
	// ScopeAccount targets apply to exactly one account and fully replace its defaults
	ScopeAccount ScopeType = "account"
)

// PolicyTarget is a stored percentage assigned to one asset class at one scope.
type PolicyTarget struct {
	ScopeType    ScopeType `json:"scope_type"`
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ScopeID      int64     `json:"scope_id"`
	AssetClassID int64     `json:"asset_class_id"`
	TargetPct    float64   `json:"target_pct"`
}
