package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankConnection is a consent-scoped open-banking link.
type BankConnection struct {
	gorm.Model
	UserID          uint `gorm:"index"`
	Provider        string
	ProviderItemID  string
	ConsentID       string
	InstitutionID   string
	InstitutionName string
	AccessToken     string `json:"-"`
	LastSyncedAt    *time.Time

	Accounts []Account `gorm:"constraint:OnDelete:CASCADE"`
}

type Account struct {
	gorm.Model
	BankConnectionID  uint   `gorm:"index"`
	ProviderAccountID string `gorm:"index"`
	Name              string
	Type              string
	Currency          string
	Balance           decimal.Decimal  `gorm:"type:decimal(20,8)"`
	AvailableBalance  *decimal.Decimal `gorm:"type:decimal(20,8)"`

	Transactions []Transaction `gorm:"constraint:OnDelete:CASCADE"`
}

type Transaction struct {
	gorm.Model
	AccountID             uint            `gorm:"index"`
	ProviderTransactionID string          `gorm:"index"`
	Amount                decimal.Decimal `gorm:"type:decimal(20,8)"`
	Currency              string
	Description           string
	Category              string
	Merchant              *string
	Date                  time.Time
	Pending               bool
}
