package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment is a shared reference entity, one row per ticker symbol. It is
// created on first reference and refreshed whenever a newer name, currency or
// price is observed, but never deleted by the core: historical holdings keep
// pointing at it.
type Investment struct {
	gorm.Model
	Symbol    string `gorm:"uniqueIndex"`
	Name      string
	Currency  string
	LastPrice decimal.Decimal `gorm:"type:decimal(20,8)"`
	LogoURL   *string
}

// Holding is a user's position in one Investment, optionally attached to the
// brokerage account it was last seen in.
//
// The uniqueness key is (user, investment) rather than
// (user, investment, account), so the same symbol held at two brokerages
// collapses into one row and the account synced last wins. Kept as-is to match
// the upstream schema; widening the key to include the account is the known
// fix.
type Holding struct {
	gorm.Model
	UserID             uint `gorm:"uniqueIndex:idx_user_investment"`
	InvestmentID       uint `gorm:"uniqueIndex:idx_user_investment"`
	BrokerageAccountID *uint
	Quantity           decimal.Decimal `gorm:"type:decimal(20,8)"`
	Price              decimal.Decimal `gorm:"type:decimal(20,8)"`
	Currency           string

	Investment Investment
}
