package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"my-finance-app/banking"
	"my-finance-app/brokerage"
	"my-finance-app/importer"
	"my-finance-app/models"
	"my-finance-app/quotes"
)

// Handler bundles the request handlers' dependencies; main wires one up per
// process.
type Handler struct {
	DB        *gorm.DB
	Importer  *importer.Service
	Brokerage brokerage.API
	Sync      *brokerage.SyncService
	Banking   *banking.Service
	BankAPI   banking.API
	Quotes    *quotes.Resolver
	Profiles  quotes.Profiler
	Log       zerolog.Logger
}

// EnsureUser resolves the authenticated caller to a User row, creating it on
// first sight of a new identity-provider subject.
func (h *Handler) EnsureUser(c *gin.Context) (*models.User, error) {
	externalID := c.MustGet("external_id").(string)
	email := c.GetString("email")

	var user models.User
	err := h.DB.Where("external_id = ?", externalID).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{ExternalID: externalID, Email: email}
		if err := h.DB.Create(&user).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if email != "" && email != user.Email {
			if err := h.DB.Model(&user).Update("email", email).Error; err != nil {
				return nil, err
			}
		}
	}
	return &user, nil
}

// currentUser is EnsureUser plus the standard 500 response on failure.
func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	user, err := h.EnsureUser(c)
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to resolve user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return nil, false
	}
	return user, true
}
