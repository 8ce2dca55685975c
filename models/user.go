package models

import (
	"gorm.io/gorm"
)

// User is the root owner of all connections and holdings. ExternalID is the
// identity-provider subject; users are created lazily on the first
// authenticated request that references an unknown subject.
type User struct {
	gorm.Model
	ExternalID string `gorm:"uniqueIndex"`
	Email      string `gorm:"index"`
	Password   string `json:"-"`

	// Brokerage aggregator credentials, set once the user registers.
	BrokerageUserID     string
	BrokerageUserSecret string `json:"-"`

	Holdings             []Holding
	BrokerageConnections []BrokerageConnection
	BankConnections      []BankConnection
}
