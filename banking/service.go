package banking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"my-finance-app/database"
	"my-finance-app/models"
)

const transactionBatchSize = 100

// Service handles the open-banking consent callback and account/transaction
// ingestion.
type Service struct {
	db  *gorm.DB
	api API
	log zerolog.Logger
}

func NewService(db *gorm.DB, api API, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		api: api,
		log: log.With().Str("service", "banking").Logger(),
	}
}

// HandleCallback completes the consent flow: records the connection, then
// pulls the consented accounts and their transactions into the store.
// Transaction fetch failures for a single account are logged and skipped so
// one broken account doesn't lose the rest.
func (s *Service) HandleCallback(user *models.User, consentToken, institutionID string) (*models.BankConnection, error) {
	now := time.Now()
	connection := models.BankConnection{
		UserID:          user.ID,
		Provider:        "yapily",
		ProviderItemID:  consentToken,
		ConsentID:       consentToken,
		InstitutionID:   institutionID,
		InstitutionName: institutionID,
		AccessToken:     consentToken,
		LastSyncedAt:    &now,
	}
	if err := s.db.Create(&connection).Error; err != nil {
		return nil, err
	}

	accounts, err := s.api.Accounts(consentToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	for _, apiAccount := range accounts {
		name := "Unknown Account"
		if len(apiAccount.AccountNames) > 0 && apiAccount.AccountNames[0].Name != "" {
			name = apiAccount.AccountNames[0].Name
		}

		account := models.Account{
			BankConnectionID:  connection.ID,
			ProviderAccountID: apiAccount.ID,
			Name:              name,
			Type:              apiAccount.AccountType,
			Currency:          apiAccount.Currency,
			Balance:           decimal.NewFromFloat(apiAccount.Balance),
		}
		if err := s.db.Create(&account).Error; err != nil {
			return nil, err
		}

		apiTransactions, err := s.api.Transactions(consentToken, apiAccount.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("account", apiAccount.ID).Msg("failed to fetch transactions")
			continue
		}
		if len(apiTransactions) == 0 {
			continue
		}

		transactions := make([]models.Transaction, 0, len(apiTransactions))
		for _, t := range apiTransactions {
			transactions = append(transactions, models.Transaction{
				AccountID:             account.ID,
				ProviderTransactionID: t.ID,
				Amount:                decimal.NewFromFloat(t.TransactionAmount.Amount),
				Currency:              t.TransactionAmount.Currency,
				Description:           orDefault(t.Description, "No description"),
				Date:                  parseTransactionDate(t),
			})
		}
		if err := database.CreateInBatches(s.db, transactions, transactionBatchSize); err != nil {
			return nil, err
		}
	}

	s.log.Info().Uint("user_id", user.ID).Int("accounts", len(accounts)).Msg("bank connection synced")
	return &connection, nil
}

// MockSync seeds a demo bank connection with two accounts and two months of
// generated transactions. Dev/demo path only.
func (s *Service) MockSync(user *models.User) error {
	now := time.Now()
	connection := models.BankConnection{
		UserID:          user.ID,
		Provider:        "mock",
		ProviderItemID:  "mock_" + uuid.NewString(),
		InstitutionID:   "mock_bank",
		InstitutionName: "Mock Bank",
		AccessToken:     "mock_access_token",
		LastSyncedAt:    &now,
	}
	if err := s.db.Create(&connection).Error; err != nil {
		return err
	}

	available := decimal.NewFromFloat(2300.25)
	savingsBalance := decimal.NewFromFloat(10450.0)
	checking := models.Account{
		BankConnectionID:  connection.ID,
		ProviderAccountID: "mock_acc_checking_" + uuid.NewString(),
		Name:              "Main Checking",
		Type:              "checking",
		Currency:          "EUR",
		Balance:           decimal.NewFromFloat(2450.25),
		AvailableBalance:  &available,
	}
	savings := models.Account{
		BankConnectionID:  connection.ID,
		ProviderAccountID: "mock_acc_savings_" + uuid.NewString(),
		Name:              "Savings",
		Type:              "savings",
		Currency:          "EUR",
		Balance:           savingsBalance,
		AvailableBalance:  &savingsBalance,
	}
	if err := s.db.Create(&checking).Error; err != nil {
		return err
	}
	if err := s.db.Create(&savings).Error; err != nil {
		return err
	}

	merchants := []string{"Continente", "Pingo Doce", "Uber", "Amazon"}
	transactions := make([]models.Transaction, 0, 60)
	for i := 0; i < 60; i++ {
		date := now.AddDate(0, 0, -i)
		isExpense := i%3 != 0

		var amount decimal.Decimal
		description := "Salary / Transfer"
		category := "income"
		var merchant *string
		if isExpense {
			amount = decimal.NewFromFloat(-(5 + float64(i%20)*3.25))
			description = "Card Purchase"
			category = "shopping"
			m := merchants[i%len(merchants)]
			merchant = &m
		} else {
			amount = decimal.NewFromFloat(150 + float64(i%5)*25)
		}

		transactions = append(transactions, models.Transaction{
			AccountID:             checking.ID,
			ProviderTransactionID: fmt.Sprintf("mock_tx_%s_%d", uuid.NewString(), i),
			Amount:                amount,
			Currency:              "EUR",
			Description:           description,
			Category:              category,
			Merchant:              merchant,
			Date:                  date,
		})
	}
	return database.CreateInBatches(s.db, transactions, transactionBatchSize)
}

func parseTransactionDate(t APITransaction) time.Time {
	for _, raw := range []string{t.BookingDate, t.Date} {
		if raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
