package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"my-finance-app/models"
)

// ErrNoHoldingsDetected means the file was readable but contained no rows the
// normalizer could resolve into holdings (or had an unsupported extension).
var ErrNoHoldingsDetected = errors.New("no holdings detected in the uploaded file")

// Service runs the import pipeline: parse, normalize, aggregate, upsert.
type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("service", "importer").Logger(),
	}
}

// Import replaces the user's per-symbol positions with the aggregate of the
// uploaded file. Re-importing the same file is idempotent; importing a
// different export for a symbol overwrites whatever was there before, it does
// not merge. The whole upsert loop runs in one transaction, so a failure midway
// leaves the portfolio untouched.
func (s *Service) Import(userID uint, filename string, r io.Reader) (int, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var raw []Row
	var err error
	switch ext {
	case "csv":
		raw, err = ParseCSV(r)
	case "xls", "xlsx":
		raw, err = ParseXLS(r)
	}
	if err != nil {
		return 0, err
	}

	var rows []NormalizedRow
	for _, rawRow := range raw {
		if row, ok := Normalize(rawRow); ok {
			rows = append(rows, row)
		}
	}

	holdings := Aggregate(rows)
	if len(holdings) == 0 {
		return 0, ErrNoHoldingsDetected
	}

	imported := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, h := range holdings {
			investment, err := upsertInvestment(tx, h)
			if err != nil {
				return err
			}
			if err := upsertHolding(tx, userID, investment.ID, h); err != nil {
				return err
			}
			imported++
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Str("file", filename).Msg("import failed")
		return 0, fmt.Errorf("import failed: %w", err)
	}

	s.log.Info().Uint("user_id", userID).Int("imported", imported).Msg("portfolio imported")
	return imported, nil
}

func upsertInvestment(tx *gorm.DB, h AggregatedHolding) (*models.Investment, error) {
	var investment models.Investment
	err := tx.Where("symbol = ?", h.Symbol).First(&investment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		investment = models.Investment{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Currency: h.Currency,
		}
		if err := tx.Create(&investment).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		updates := map[string]interface{}{
			"name":     h.Name,
			"currency": h.Currency,
		}
		if err := tx.Model(&investment).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &investment, nil
}

func upsertHolding(tx *gorm.DB, userID, investmentID uint, h AggregatedHolding) error {
	quantity := decimal.NewFromFloat(h.Quantity)
	price := decimal.NewFromFloat(h.Price)

	var holding models.Holding
	err := tx.Where("user_id = ? AND investment_id = ?", userID, investmentID).First(&holding).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		holding = models.Holding{
			UserID:       userID,
			InvestmentID: investmentID,
			Quantity:     quantity,
			Price:        price,
			Currency:     h.Currency,
		}
		return tx.Create(&holding).Error
	case err != nil:
		return err
	default:
		return tx.Model(&holding).Updates(map[string]interface{}{
			"quantity": quantity,
			"price":    price,
			"currency": h.Currency,
		}).Error
	}
}
