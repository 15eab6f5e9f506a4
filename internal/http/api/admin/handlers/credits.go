package handlers

import (
	"errors"
	"net/http"

	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/gin-gonic/gin"
)

// CreditsHandler handles admin credit adjustments.
type CreditsHandler struct {
	ledger *ledger.Ledger
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(l *ledger.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: l}
}

// adjustRequest defines the request body for balance adjustments. Amounts
// are signed cents: positive grants credit, negative deducts it.
type adjustRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

// Adjust applies a manual balance change to the target user's account.
//
// A deduction that would take the committed balance below zero is rejected
// whole; the response then carries the current balance so the operator can
// retry with the largest deduction that would succeed.
func (h *CreditsHandler) Adjust(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var body adjustRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errAdjust := h.ledger.AdjustBalance(c.Request.Context(), userID, body.AmountCents, body.Reason, getActor(c))
	if errAdjust != nil {
		var insufficient *ledger.InsufficientBalanceError
		switch {
		case errors.As(errAdjust, &insufficient):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":                 "insufficient balance",
				"current_balance_cents": insufficient.CurrentBalanceCents,
				"max_deduction_cents":   insufficient.MaxDeductionCents(),
			})
		case errors.Is(errAdjust, ledger.ErrZeroAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount_cents must be non-zero"})
		case errors.Is(errAdjust, ledger.ErrEmptyReason):
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		case errors.Is(errAdjust, ledger.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "adjust balance failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"previous_balance_cents": result.PreviousBalanceCents,
		"adjusted_amount_cents":  body.AmountCents,
		"new_balance_cents":      result.NewBalanceCents,
		"transaction_id":         result.TransactionID,
	})
}

// transactionsQuery defines query parameters for transaction history.
type transactionsQuery struct {
	Limit  int `form:"limit,default=50"`
	Offset int `form:"offset,default=0"`
}

// Transactions returns a user's credit transactions, newest first.
func (h *CreditsHandler) Transactions(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
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
			"user_id":      row.UserID,
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
