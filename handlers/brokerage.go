package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"my-finance-app/brokerage"
	"my-finance-app/models"
)

// RegisterBrokerage registers the caller with the brokerage aggregator and
// stores the returned credentials. Idempotent: an already-registered user just
// gets their stored id back.
func (h *Handler) RegisterBrokerage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if user.BrokerageUserID != "" && user.BrokerageUserSecret != "" {
		c.JSON(http.StatusOK, gin.H{"registered": true, "userId": user.BrokerageUserID})
		return
	}

	registered, err := h.Brokerage.RegisterUser(user.ExternalID)
	if err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("brokerage registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user with the brokerage aggregator"})
		return
	}

	err = h.DB.Model(user).Updates(map[string]interface{}{
		"brokerage_user_id":     registered.UserID,
		"brokerage_user_secret": registered.UserSecret,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store brokerage credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"registered": true, "userId": registered.UserID})
}

// BrokerageConnectURL returns the aggregator's connection portal URL for
// linking a brokerage login.
func (h *Handler) BrokerageConnectURL(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if user.BrokerageUserID == "" || user.BrokerageUserSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User not registered with the brokerage aggregator"})
		return
	}

	redirectURI := os.Getenv("BROKERAGE_REDIRECT_URI")
	portalURL, err := h.Brokerage.ConnectionPortalURL(user.BrokerageUserID, user.BrokerageUserSecret, redirectURI)
	if err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("failed to create connection portal URL")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate connection URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirectURI": portalURL})
}

type connectionView struct {
	ID              string `json:"id"`
	InstitutionName string `json:"institutionName"`
	CreatedDate     string `json:"createdDate"`
	Disabled        bool   `json:"disabled"`
	DisabledDate    string `json:"disabledDate,omitempty"`
}

// ListConnections lists the caller's brokerage authorizations as the
// aggregator sees them, mapped to the dashboard's camelCase contract.
func (h *Handler) ListConnections(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if user.BrokerageUserID == "" || user.BrokerageUserSecret == "" {
		c.JSON(http.StatusOK, gin.H{"connections": []connectionView{}})
		return
	}

	authorizations, err := h.Brokerage.ListAuthorizations(user.BrokerageUserID, user.BrokerageUserSecret)
	if err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("failed to list connections")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}

	connections := make([]connectionView, 0, len(authorizations))
	for _, authorization := range authorizations {
		connections = append(connections, connectionView{
			ID:              authorization.ID,
			InstitutionName: authorization.InstitutionName,
			CreatedDate:     authorization.CreatedDate,
			Disabled:        authorization.Disabled,
			DisabledDate:    authorization.DisabledDate,
		})
	}

	c.JSON(http.StatusOK, gin.H{"connections": connections})
}

type deleteConnectionInput struct {
	AuthorizationID string `json:"authorizationId" binding:"required"`
}

// DeleteConnection removes a brokerage authorization upstream, then deletes
// the local connection, its accounts and their holdings.
func (h *Handler) DeleteConnection(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var input deleteConnectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Authorization ID required"})
		return
	}

	if user.BrokerageUserID == "" || user.BrokerageUserSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.Brokerage.RemoveAuthorization(user.BrokerageUserID, user.BrokerageUserSecret, input.AuthorizationID); err != nil {
		h.Log.Error().Err(err).Uint("user_id", user.ID).Msg("failed to remove authorization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}

	var connection models.BrokerageConnection
	err := h.DB.Preload("BrokerageAccounts").
		Where("user_id = ? AND external_connection_id = ?", user.ID, input.AuthorizationID).
		First(&connection).Error
	if err == nil {
		accountIDs := make([]uint, 0, len(connection.BrokerageAccounts))
		for _, account := range connection.BrokerageAccounts {
			accountIDs = append(accountIDs, account.ID)
		}

		tx := h.DB.Begin()
		if len(accountIDs) > 0 {
			if err := tx.Unscoped().Where("brokerage_account_id IN ?", accountIDs).Delete(&models.Holding{}).Error; err != nil {
				tx.Rollback()
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
				return
			}
		}
		if err := tx.Unscoped().Select("BrokerageAccounts").Delete(&connection).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
			return
		}
		tx.Commit()
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SyncBrokerage runs one full reconcile of the caller's brokerage holdings.
func (h *Handler) SyncBrokerage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	result, err := h.Sync.Sync(user)
	switch {
	case errors.Is(err, brokerage.ErrNotRegistered):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User not registered with the brokerage aggregator"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"syncedAccounts": result.SyncedAccounts,
		"syncedHoldings": result.SyncedHoldings,
	})
}

// ResetBrokerage wipes the caller's portfolio: every holding (including rows
// orphaned by earlier disconnects) and every brokerage connection, in one
// transaction.
func (h *Handler) ResetBrokerage(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	tx := h.DB.Begin()
	if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.Holding{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
		return
	}

	var connections []models.BrokerageConnection
	if err := tx.Where("user_id = ?", user.ID).Find(&connections).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
		return
	}
	for _, connection := range connections {
		if err := tx.Unscoped().Where("brokerage_connection_id = ?", connection.ID).Delete(&models.BrokerageAccount{}).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
			return
		}
	}
	if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.BrokerageConnection{}).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
