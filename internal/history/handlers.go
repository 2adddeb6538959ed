package history

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the prediction history.
type Handler struct {
	store     Store
	onCleared func()
}

// NewHandler creates a history handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// WithEvents registers a callback invoked after a successful history reset.
func (h *Handler) WithEvents(onCleared func()) *Handler {
	h.onCleared = onCleared
	return h
}

// RegisterRoutes sets up history routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/history", h.List)
	r.GET("/history/summary", h.GetSummary)
	r.GET("/history/export.csv", h.ExportCSV)
	r.DELETE("/history", h.Clear)
}

// List handles GET /v1/history. Most recent first.
func (h *Handler) List(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list prediction history",
		})
		return
	}

	// Rows mirror the dashboard table: formatted amount and risk score
	// alongside the raw values.
	type row struct {
		*Record
		AmountDisplay string `json:"amountDisplay"`
		RiskScore     string `json:"riskScore"`
	}
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row{
			Record:        rec,
			AmountDisplay: FormatAmount(rec.Amount),
			RiskScore:     FormatRiskScore(rec.Probability),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"records": rows,
		"count":   len(rows),
	})
}

// GetSummary handles GET /v1/history/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	sum, err := h.store.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to summarize prediction history",
		})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ExportCSV handles GET /v1/history/export.csv, streaming the flat-file
// layout with oldest records first.
func (h *Handler) ExportCSV(c *gin.Context) {
	records, err := h.store.List(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to export prediction history",
		})
		return
	}

	// List returns newest first; the export is chronological.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	filename := fmt.Sprintf("prediction_history_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if err := WriteCSV(c.Writer, records); err != nil {
		// Headers already sent; log via gin's error list.
		_ = c.Error(err)
	}
}

// Clear handles DELETE /v1/history.
func (h *Handler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to clear prediction history",
		})
		return
	}
	if h.onCleared != nil {
		h.onCleared()
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
