package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"my-finance-app/models"
)

const logoBatchSize = 50

// UpdateLogos backfills logo URLs for investments that have none, at most 50
// per call to stay inside the request timeout. The caller repeats the call
// until remaining reaches 0.
func (h *Handler) UpdateLogos(c *gin.Context) {
	var investments []models.Investment
	if err := h.DB.Where("logo_url IS NULL").Limit(logoBatchSize).Find(&investments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch investments"})
		return
	}

	updated := 0
	var failures []string
	for _, investment := range investments {
		website, err := h.Profiles.Website(investment.Symbol)
		if err != nil {
			h.Log.Warn().Err(err).Str("symbol", investment.Symbol).Msg("profile lookup failed")
			failures = append(failures, investment.Symbol)
			continue
		}
		if website == "" {
			continue
		}

		domain := websiteDomain(website)
		if domain == "" {
			continue
		}

		logoURL := "https://cdn.brandfetch.io/" + domain + "/logo.png"
		if err := h.DB.Model(&investment).Update("logo_url", logoURL).Error; err != nil {
			failures = append(failures, investment.Symbol)
			continue
		}
		updated++
	}

	var remaining int64
	h.DB.Model(&models.Investment{}).Where("logo_url IS NULL").Count(&remaining)

	c.JSON(http.StatusOK, gin.H{
		"processed": len(investments),
		"updated":   updated,
		"failed":    failures,
		"remaining": remaining,
	})
}

func websiteDomain(website string) string {
	if parsed, err := url.Parse(website); err == nil && parsed.Hostname() != "" {
		return strings.TrimPrefix(parsed.Hostname(), "www.")
	}
	// Fallback for bare domains without a scheme.
	trimmed := strings.TrimPrefix(strings.TrimPrefix(website, "https://"), "http://")
	trimmed = strings.TrimPrefix(trimmed, "www.")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}
