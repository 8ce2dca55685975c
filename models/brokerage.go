package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BrokerageConnection is one linked brokerage login. Sync matches connections
// by (user, institution name) rather than by ExternalConnectionID, so two
// accounts at the same institution share one connection and a renamed
// institution produces a duplicate. Matches the upstream behaviour.
type BrokerageConnection struct {
	gorm.Model
	UserID               uint `gorm:"index"`
	ExternalConnectionID string
	InstitutionName      string
	Status               string
	LastSyncedAt         *time.Time

	BrokerageAccounts []BrokerageAccount `gorm:"constraint:OnDelete:CASCADE"`
}

// BrokerageAccount is upserted by ExternalAccountID, which is the one stable
// key the aggregator gives us.
type BrokerageAccount struct {
	gorm.Model
	BrokerageConnectionID uint   `gorm:"index"`
	ExternalAccountID     string `gorm:"uniqueIndex"`
	Name                  string
	Type                  string
	Number                string
	Currency              string
	Balance               decimal.Decimal `gorm:"type:decimal(20,8)"`
}
