package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// ConsentURL starts the open-banking consent flow for an institution and
// returns the authorisation URL the user must visit.
func (h *Handler) ConsentURL(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	institutionID := c.Query("institution")
	if institutionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing institution"})
		return
	}

	callbackURL := os.Getenv("BANKING_CALLBACK_URL")
	authorisationURL, err := h.BankAPI.CreateConsentURL(user.ExternalID, institutionID, callbackURL)
	if err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("failed to create consent URL")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create consent URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorisationUrl": authorisationURL})
}

// BankingCallback completes the consent flow: the aggregator redirects here
// with the consent token, and we ingest the consented accounts plus their
// transactions.
func (h *Handler) BankingCallback(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	consentToken := c.Query("consent")
	institutionID := c.Query("institution")
	if consentToken == "" || institutionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing consent token or institution"})
		return
	}

	connection, err := h.Banking.HandleCallback(user, consentToken, institutionID)
	if err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("bank connection callback failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect bank account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "connectionId": connection.ID})
}

// MockBankSync seeds demo banking data for the caller.
func (h *Handler) MockBankSync(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.Banking.MockSync(user); err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("mock sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seed mock data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
