package importer

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"my-finance-app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Investment{}, &models.Holding{}))
	return db
}

const trading212CSV = `Action,Time,Ticker,Name,No. of shares,Price / share,Currency (Price / share)
Market buy,2024-01-01 10:00:00,AAPL,Apple Inc.,10,100,USD
Market buy,2024-02-01 10:00:00,AAPL,Apple Inc.,10,200,USD
Market sell,2024-03-01 10:00:00,AAPL,Apple Inc.,4,250,USD
Market buy,2024-01-15 10:00:00,VWCE,Vanguard FTSE All-World,2,105.5,EUR
Dividend (Ordinary),2024-02-10 10:00:00,AAPL,Apple Inc.,,0.24,USD
`

func TestImportCSV(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	imported, err := service.Import(1, "export.csv", strings.NewReader(trading212CSV))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	var investment models.Investment
	require.NoError(t, db.Where("symbol = ?", "AAPL").First(&investment).Error)
	assert.Equal(t, "Apple Inc.", investment.Name)

	var holding models.Holding
	require.NoError(t, db.Where("user_id = ? AND investment_id = ?", 1, investment.ID).First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(decimal.NewFromInt(16)), "got %s", holding.Quantity)
	assert.True(t, holding.Price.Equal(decimal.NewFromInt(150)), "got %s", holding.Price)
}

func TestImportIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	_, err := service.Import(1, "export.csv", strings.NewReader(trading212CSV))
	require.NoError(t, err)
	imported, err := service.Import(1, "export.csv", strings.NewReader(trading212CSV))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	var count int64
	db.Model(&models.Holding{}).Where("user_id = ?", 1).Count(&count)
	assert.EqualValues(t, 2, count, "re-import must not duplicate holdings")

	var investment models.Investment
	require.NoError(t, db.Where("symbol = ?", "AAPL").First(&investment).Error)
	var holding models.Holding
	require.NoError(t, db.Where("user_id = ? AND investment_id = ?", 1, investment.ID).First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(decimal.NewFromInt(16)))
	assert.True(t, holding.Price.Equal(decimal.NewFromInt(150)))
}

func TestImportOverwritesExistingHolding(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	investment := models.Investment{Symbol: "AAPL", Name: "Apple", Currency: "USD"}
	require.NoError(t, db.Create(&investment).Error)
	require.NoError(t, db.Create(&models.Holding{
		UserID:       1,
		InvestmentID: investment.ID,
		Quantity:     decimal.NewFromInt(999),
		Price:        decimal.NewFromInt(1),
		Currency:     "USD",
	}).Error)

	_, err := service.Import(1, "export.csv", strings.NewReader(trading212CSV))
	require.NoError(t, err)

	var holding models.Holding
	require.NoError(t, db.Where("user_id = ? AND investment_id = ?", 1, investment.ID).First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(decimal.NewFromInt(16)), "import replaces, it does not merge")
}

func TestImportRollsBackOnMidLoopFailure(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	// Reject the second symbol's insert so the upsert loop fails after the
	// first symbol has already been written.
	require.NoError(t, db.Exec(`CREATE TRIGGER reject_vwce BEFORE INSERT ON investments
		WHEN NEW.symbol = 'VWCE'
		BEGIN SELECT RAISE(ABORT, 'insert rejected'); END`).Error)

	_, err := service.Import(1, "export.csv", strings.NewReader(trading212CSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import failed")

	var investments, holdings int64
	db.Model(&models.Investment{}).Count(&investments)
	db.Model(&models.Holding{}).Count(&holdings)
	assert.EqualValues(t, 0, investments, "a failed import must not half-apply")
	assert.EqualValues(t, 0, holdings)
}

func TestImportUnsupportedExtension(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	_, err := service.Import(1, "export.pdf", strings.NewReader("whatever"))
	assert.ErrorIs(t, err, ErrNoHoldingsDetected)
}

func TestImportNoResolvableRows(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	csv := "Description,Amount\nGroceries,12.50\n"
	_, err := service.Import(1, "statement.csv", strings.NewReader(csv))
	assert.ErrorIs(t, err, ErrNoHoldingsDetected)
}

func TestImportMalformedCSV(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, zerolog.Nop())

	_, err := service.Import(1, "broken.csv", strings.NewReader("Ticker,Quantity\n\"AAPL,10\n"))
	assert.ErrorIs(t, err, ErrParse)
}
