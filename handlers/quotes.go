package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type quotesInput struct {
	Symbols []string `json:"symbols"`
}

// GetQuotes returns best-effort live quotes for the requested symbols. The
// resolver never fails: on upstream trouble the response is stale or empty,
// not an error.
func (h *Handler) GetQuotes(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	var input quotesInput
	if err := c.ShouldBindJSON(&input); err != nil || len(input.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbols must be an array of strings."})
		return
	}

	c.JSON(http.StatusOK, h.Quotes.Quotes(input.Symbols))
}
