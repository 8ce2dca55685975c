package brokerage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"my-finance-app/models"
)

// ErrNotRegistered means the user has no aggregator credentials yet; the
// register endpoint has to be called first.
var ErrNotRegistered = errors.New("user not registered with the brokerage aggregator")

// SyncResult reports what one reconcile pass touched.
type SyncResult struct {
	SyncedAccounts int `json:"syncedAccounts"`
	SyncedHoldings int `json:"syncedHoldings"`
}

// SyncService reconciles the aggregator's view of a user's brokerage holdings
// into the local store.
type SyncService struct {
	db  *gorm.DB
	api API
	log zerolog.Logger

	// beforePrune runs inside the transaction after all upserts and before
	// stale-holding pruning. Test seam; nil in production.
	beforePrune func(tx *gorm.DB) error
}

func NewSyncService(db *gorm.DB, api API, log zerolog.Logger) *SyncService {
	return &SyncService{
		db:  db,
		api: api,
		log: log.With().Str("service", "brokerage-sync").Logger(),
	}
}

// Sync fetches every account and position the aggregator knows for the user
// and reconciles them into the local store: connections found-or-created per
// institution, accounts upserted by their stable external id, holdings
// upserted per investment, and holdings that disappeared upstream pruned.
// The whole reconcile runs in one transaction; a mid-sync failure leaves the
// previous portfolio fully intact.
func (s *SyncService) Sync(user *models.User) (SyncResult, error) {
	if user.BrokerageUserID == "" || user.BrokerageUserSecret == "" {
		return SyncResult{}, ErrNotRegistered
	}

	holdings, err := s.api.ListUserHoldings(user.BrokerageUserID, user.BrokerageUserSecret)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync failed: %w", err)
	}

	var result SyncResult
	syncedHoldingIDs := make(map[uint]struct{})

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, accountHoldings := range holdings {
			if accountHoldings.Account == nil {
				continue
			}
			account := accountHoldings.Account

			connection, err := s.findOrCreateConnection(tx, user.ID, account)
			if err != nil {
				return err
			}

			brokerageAccount, err := upsertAccount(tx, connection.ID, account)
			if err != nil {
				return err
			}
			result.SyncedAccounts++

			for _, position := range accountHoldings.Positions {
				symbol := ResolveSymbol(position)
				if symbol == "" {
					continue
				}
				// Zero quantity means closed upstream; the prune below
				// removes any local row for it.
				if position.Units == 0 {
					continue
				}

				holdingID, err := upsertPosition(tx, user.ID, brokerageAccount.ID, symbol, position)
				if err != nil {
					return err
				}
				syncedHoldingIDs[holdingID] = struct{}{}
			}
		}

		if s.beforePrune != nil {
			if err := s.beforePrune(tx); err != nil {
				return err
			}
		}

		return pruneStaleHoldings(tx, user.ID, syncedHoldingIDs)
	})
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", user.ID).Msg("brokerage sync failed")
		return SyncResult{}, fmt.Errorf("sync failed: %w", err)
	}

	result.SyncedHoldings = len(syncedHoldingIDs)
	s.log.Info().
		Uint("user_id", user.ID).
		Int("accounts", result.SyncedAccounts).
		Int("holdings", result.SyncedHoldings).
		Msg("brokerage sync complete")
	return result, nil
}

// findOrCreateConnection matches by (user, institution name). The external
// connection id is stored but not used as the key, mirroring the upstream
// schema: two accounts at one institution share a connection, and a renamed
// institution creates a duplicate.
func (s *SyncService) findOrCreateConnection(tx *gorm.DB, userID uint, account *Account) (*models.BrokerageConnection, error) {
	institution := account.InstitutionName
	if institution == "" {
		institution = "Unknown"
	}
	now := time.Now()

	var connection models.BrokerageConnection
	err := tx.Where("user_id = ? AND institution_name = ?", userID, institution).First(&connection).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		externalID := account.ID
		if externalID == "" {
			externalID = "conn-" + uuid.NewString()
		}
		connection = models.BrokerageConnection{
			UserID:               userID,
			ExternalConnectionID: externalID,
			InstitutionName:      institution,
			Status:               "CONNECTED",
			LastSyncedAt:         &now,
		}
		if err := tx.Create(&connection).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := tx.Model(&connection).Update("last_synced_at", &now).Error; err != nil {
			return nil, err
		}
	}
	return &connection, nil
}

func upsertAccount(tx *gorm.DB, connectionID uint, account *Account) (*models.BrokerageAccount, error) {
	name := account.Name
	if name == "" {
		name = account.Number
	}
	if name == "" {
		name = "Unnamed Account"
	}
	accountType := "Investment"
	if account.Meta != nil && account.Meta.Type != "" {
		accountType = account.Meta.Type
	}
	currency := "USD"
	balance := decimal.Zero
	if account.Balance != nil {
		if account.Balance.Currency != "" {
			currency = account.Balance.Currency
		}
		balance = decimal.NewFromFloat(account.Balance.Amount)
	}

	var brokerageAccount models.BrokerageAccount
	err := tx.Where("external_account_id = ?", account.ID).First(&brokerageAccount).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		brokerageAccount = models.BrokerageAccount{
			BrokerageConnectionID: connectionID,
			ExternalAccountID:     account.ID,
			Name:                  name,
			Type:                  accountType,
			Number:                account.Number,
			Currency:              currency,
			Balance:               balance,
		}
		if err := tx.Create(&brokerageAccount).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := tx.Model(&brokerageAccount).Updates(map[string]interface{}{
			"name":     name,
			"type":     accountType,
			"number":   account.Number,
			"currency": currency,
			"balance":  balance,
		}).Error; err != nil {
			return nil, err
		}
	}
	return &brokerageAccount, nil
}

func upsertPosition(tx *gorm.DB, userID, accountID uint, symbol string, position Position) (uint, error) {
	name := symbol
	currency := "USD"
	if position.Symbol != nil {
		if position.Symbol.Description != "" {
			name = position.Symbol.Description
		}
		if position.Symbol.Currency != nil && position.Symbol.Currency.Code != "" {
			currency = position.Symbol.Currency.Code
		}
	}
	price := decimal.NewFromFloat(position.Price)
	quantity := decimal.NewFromFloat(position.Units)

	var investment models.Investment
	err := tx.Where("symbol = ?", symbol).First(&investment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		investment = models.Investment{
			Symbol:    symbol,
			Name:      name,
			Currency:  currency,
			LastPrice: price,
		}
		if err := tx.Create(&investment).Error; err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if err := tx.Model(&investment).Updates(map[string]interface{}{
			"name":       name,
			"currency":   currency,
			"last_price": price,
		}).Error; err != nil {
			return 0, err
		}
	}

	// Upsert by (user, investment). Holding the same symbol at two
	// brokerages collapses to one row and the account processed last wins;
	// see the note on models.Holding.
	var holding models.Holding
	err = tx.Where("user_id = ? AND investment_id = ?", userID, investment.ID).First(&holding).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		holding = models.Holding{
			UserID:             userID,
			InvestmentID:       investment.ID,
			BrokerageAccountID: &accountID,
			Quantity:           quantity,
			Price:              price,
			Currency:           currency,
		}
		if err := tx.Create(&holding).Error; err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if err := tx.Model(&holding).Updates(map[string]interface{}{
			"quantity":             quantity,
			"price":                price,
			"currency":             currency,
			"brokerage_account_id": accountID,
		}).Error; err != nil {
			return 0, err
		}
	}
	return holding.ID, nil
}

// pruneStaleHoldings removes holdings attached to any of the user's brokerage
// accounts that this pass did not touch: positions closed upstream since the
// last sync.
func pruneStaleHoldings(tx *gorm.DB, userID uint, syncedHoldingIDs map[uint]struct{}) error {
	var accountIDs []uint
	err := tx.Model(&models.BrokerageAccount{}).
		Joins("JOIN brokerage_connections ON brokerage_connections.id = brokerage_accounts.brokerage_connection_id").
		Where("brokerage_connections.user_id = ?", userID).
		Pluck("brokerage_accounts.id", &accountIDs).Error
	if err != nil {
		return err
	}
	if len(accountIDs) == 0 {
		return nil
	}

	query := tx.Unscoped().Where("brokerage_account_id IN ?", accountIDs)
	if len(syncedHoldingIDs) > 0 {
		keep := make([]uint, 0, len(syncedHoldingIDs))
		for id := range syncedHoldingIDs {
			keep = append(keep, id)
		}
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Delete(&models.Holding{}).Error
}
