package scoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/amlscope/internal/features"
	"github.com/mbd888/amlscope/internal/history"
	"github.com/mbd888/amlscope/internal/model"
	"github.com/mbd888/amlscope/internal/validation"
)

// Handler provides the HTTP endpoint for single-transaction scoring.
type Handler struct {
	engine *Engine
}

// NewHandler creates a scoring handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up scoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/score", h.ScoreTransaction)
}

// ScoreRequest is the transaction as entered by an analyst.
type ScoreRequest struct {
	Timestamp         string  `json:"timestamp" binding:"required"` // RFC 3339
	Amount            float64 `json:"amount"`
	PaymentCurrency   string  `json:"paymentCurrency" binding:"required"`
	ReceivingCurrency string  `json:"receivingCurrency"` // defaults to paymentCurrency
	PaymentFormat     string  `json:"paymentFormat" binding:"required"`
	SenderBank        int64   `json:"senderBank"`
	ReceiverBank      int64   `json:"receiverBank"`
	SenderAccount     string  `json:"senderAccount"`
	ReceiverAccount   string  `json:"receiverAccount"`
}

// ScoreTransaction handles POST /v1/score.
func (h *Handler) ScoreTransaction(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "timestamp must be RFC 3339",
		})
		return
	}

	if req.ReceivingCurrency == "" {
		req.ReceivingCurrency = req.PaymentCurrency
	}

	tx := &features.Transaction{
		Timestamp:         ts,
		Amount:            req.Amount,
		PaymentCurrency:   features.Currency(req.PaymentCurrency),
		ReceivingCurrency: features.Currency(req.ReceivingCurrency),
		PaymentFormat:     features.PaymentFormat(req.PaymentFormat),
		SenderBank:        req.SenderBank,
		ReceiverBank:      req.ReceiverBank,
		// Account strings are opaque reference data; sanitize rather
		// than validate.
		SenderAccount:   validation.SanitizeString(req.SenderAccount, validation.MaxStringLength),
		ReceiverAccount: validation.SanitizeString(req.ReceiverAccount, validation.MaxStringLength),
	}

	a, err := h.engine.Score(c.Request.Context(), tx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessment": a,
		"riskScore":  history.FormatRiskScore(a.Probability),
	})
}

// writeError maps pipeline failures to stable error codes. Nothing here
// is recovered automatically — every failure surfaces to the caller.
func (h *Handler) writeError(c *gin.Context, err error) {
	var enumErr *features.EnumError
	var schemaErr *model.SchemaError
	var clfErr *ClassifierError

	switch {
	case errors.As(err, &enumErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": enumErr.Error(),
			"field":   enumErr.Field,
		})
	case errors.Is(err, features.ErrNegativeAmount), errors.Is(err, features.ErrNegativeBank):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": err.Error(),
		})
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "schema_mismatch",
			"message": schemaErr.Error(),
		})
	case errors.As(err, &clfErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "model_unavailable",
			"message": clfErr.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
