package handlers

import (
	"net/http"

	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/gin-gonic/gin"
)

// CreditsHandler serves the user's own balance and transaction history.
type CreditsHandler struct {
	ledger *ledger.Ledger
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(l *ledger.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: l}
}

// Balance returns the user's committed credit balance.
func (h *CreditsHandler) Balance(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, errBalance := h.ledger.BalanceCents(c.Request.Context(), userID)
	if errBalance != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query balance failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance_cents": balance})
}

// transactionsQuery defines query parameters for transaction history.
type transactionsQuery struct {
	Limit  int `form:"limit,default=50"`
	Offset int `form:"offset,default=0"`
}

// Transactions returns the user's credit transactions, newest first.
func (h *CreditsHandler) Transactions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q transactionsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	rows, errList := h.ledger.Transactions(c.Request.Context(), userID, q.Limit, q.Offset)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"amount_cents": row.AmountCents,
			"method":       row.Method,
			"status":       row.Status,
			"description":  row.Description,
			"reference_id": row.ReferenceID,
			"created_at":   row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": out})
}
