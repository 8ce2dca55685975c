package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"my-finance-app/importer"
	"my-finance-app/models"
)

// ImportPortfolio accepts a multipart broker export (csv, xls or xlsx under
// the "file" field) and replaces the caller's holdings with its aggregate.
func (h *Handler) ImportPortfolio(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}
	defer file.Close()

	imported, err := h.Importer.Import(user.ID, fileHeader.Filename, file)
	switch {
	case errors.Is(err, importer.ErrNoHoldingsDetected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No holdings detected in the uploaded file."})
		return
	case errors.Is(err, importer.ErrParse):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to import portfolio. Please check the file format."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to import portfolio. Please check the file format."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

type holdingView struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	LogoURL      *string `json:"logoUrl,omitempty"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"averagePrice"`
	Currency     string  `json:"currency"`
	LastPrice    float64 `json:"lastPrice"`
	Value        float64 `json:"value"`
}

// ListHoldings returns the caller's holdings enriched with live quotes and
// converted to the requested display currency (query param "currency",
// default EUR). Quote and rate lookups are best effort.
func (h *Handler) ListHoldings(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	displayCurrency := c.DefaultQuery("currency", "EUR")

	var holdings []models.Holding
	if err := h.DB.Preload("Investment").Where("user_id = ?", user.ID).Find(&holdings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch holdings"})
		return
	}

	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		symbols = append(symbols, holding.Investment.Symbol)
	}
	liveQuotes := h.Quotes.Quotes(symbols)
	quoteBySymbol := make(map[string]float64, len(liveQuotes))
	currencyBySymbol := make(map[string]string, len(liveQuotes))
	for _, q := range liveQuotes {
		quoteBySymbol[q.Symbol] = q.RegularMarketPrice
		currencyBySymbol[q.Symbol] = q.Currency
	}

	views := make([]holdingView, 0, len(holdings))
	var total float64
	for _, holding := range holdings {
		quantity, _ := holding.Quantity.Float64()
		averagePrice, _ := holding.Price.Float64()

		currency := holding.Currency
		lastPrice, _ := holding.Investment.LastPrice.Float64()
		if live, ok := quoteBySymbol[holding.Investment.Symbol]; ok {
			lastPrice = live
			if qc := currencyBySymbol[holding.Investment.Symbol]; qc != "" {
				currency = qc
			}
		}

		value := h.Quotes.Convert(quantity*lastPrice, currency, displayCurrency)
		total += value

		views = append(views, holdingView{
			Symbol:       holding.Investment.Symbol,
			Name:         holding.Investment.Name,
			LogoURL:      holding.Investment.LogoURL,
			Quantity:     quantity,
			AveragePrice: averagePrice,
			Currency:     currency,
			LastPrice:    lastPrice,
			Value:        value,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"holdings": views,
		"total":    total,
		"currency": displayCurrency,
	})
}
