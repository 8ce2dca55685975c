package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"my-finance-app/banking"
	"my-finance-app/brokerage"
	"my-finance-app/config"
	"my-finance-app/handlers"
	"my-finance-app/importer"
	"my-finance-app/middleware"
	"my-finance-app/models"
	"my-finance-app/quotes"
)

const quoteCacheTTL = 60 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	config.InitLogger()
	config.InitDB()
	config.InitRedis()

	// Get underlying SQL DB and close it properly
	sqlDB, err := config.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database instance: ", err)
	}
	defer sqlDB.Close()

	// Auto-migrate models.
	err = config.DB.AutoMigrate(
		&models.User{},
		&models.Investment{},
		&models.Holding{},
		&models.BrokerageConnection{},
		&models.BrokerageAccount{},
		&models.BankConnection{},
		&models.Account{},
		&models.Transaction{},
	)
	if err != nil {
		log.Fatal("Failed to migrate models:", err)
	}

	brokerageClient := brokerage.NewClient(
		os.Getenv("BROKERAGE_API_URL"),
		os.Getenv("BROKERAGE_CLIENT_ID"),
		os.Getenv("BROKERAGE_CONSUMER_KEY"),
	)
	bankingClient := banking.NewClient(
		os.Getenv("BANKING_API_URL"),
		os.Getenv("BANKING_API_KEY"),
		os.Getenv("BANKING_API_SECRET"),
	)
	quoteClient := quotes.NewClient(os.Getenv("QUOTE_API_URL"))
	quoteCache := quotes.NewCache(quotes.NewRedisStore(config.Rdb, config.Ctx), quoteCacheTTL, nil)

	h := &handlers.Handler{
		DB:        config.DB,
		Importer:  importer.NewService(config.DB, config.Log),
		Brokerage: brokerageClient,
		Sync:      brokerage.NewSyncService(config.DB, brokerageClient, config.Log),
		Banking:   banking.NewService(config.DB, bankingClient, config.Log),
		BankAPI:   bankingClient,
		Quotes:    quotes.NewResolver(quoteClient, quoteCache, config.Log),
		Profiles:  quoteClient,
		Log:       config.Log,
	}

	router := gin.Default()

	// Public routes
	router.POST("/signup", handlers.Signup)
	router.POST("/login", handlers.Login)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth())
	{
		auth.POST("/portfolio/import", h.ImportPortfolio)
		auth.GET("/portfolio/holdings", h.ListHoldings)
		auth.POST("/investments/quotes", h.GetQuotes)

		auth.POST("/brokerage/register", h.RegisterBrokerage)
		auth.POST("/brokerage/connect", h.BrokerageConnectURL)
		auth.GET("/brokerage/connections", h.ListConnections)
		auth.DELETE("/brokerage/connections", h.DeleteConnection)
		auth.POST("/brokerage/sync", h.SyncBrokerage)
		auth.DELETE("/brokerage/reset", h.ResetBrokerage)

		auth.GET("/banking/consent-url", h.ConsentURL)
		auth.GET("/banking/callback", h.BankingCallback)
		auth.POST("/banking/mock-sync", h.MockBankSync)

		auth.GET("/admin/update-logos", h.UpdateLogos)
	}

	router.Run(":8080")
}
