package model

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves read-only model metadata for the dashboard.
type Handler struct {
	artifacts *Artifacts
	threshold float64 // effective decision threshold (may override optimal)
}

// NewHandler creates a model metadata handler. threshold is the effective
// decision threshold in use by the scorer.
func NewHandler(artifacts *Artifacts, threshold float64) *Handler {
	return &Handler{artifacts: artifacts, threshold: threshold}
}

// RegisterRoutes sets up model metadata routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/model", h.GetModel)
	r.GET("/model/metrics", h.GetMetrics)
	r.GET("/model/features", h.GetFeatureImportance)
}

// GetModel handles GET /v1/model.
func (h *Handler) GetModel(c *gin.Context) {
	cfg := h.artifacts.Config
	c.JSON(http.StatusOK, gin.H{
		"name":             cfg.ModelName,
		"version":          cfg.ModelVersion,
		"optimalThreshold": cfg.OptimalThreshold,
		"activeThreshold":  h.threshold,
		"featureCount":     len(h.artifacts.FeatureNames),
		"features":         h.artifacts.FeatureNames,
		"hyperparameters":  cfg.Hyperparameters,
		"trainingInfo":     cfg.TrainingInfo,
	})
}

// GetMetrics handles GET /v1/model/metrics. Returns the training-time
// held-out performance plus the confusion matrix.
func (h *Handler) GetMetrics(c *gin.Context) {
	m := h.artifacts.Config.Metrics
	total := m.TrueNegatives + m.FalsePositives + m.FalseNegatives + m.TruePositives
	c.JSON(http.StatusOK, gin.H{
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1Score":   m.F1Score,
		"rocAuc":    m.ROCAUC,
		"confusionMatrix": gin.H{
			"trueNegatives":  m.TrueNegatives,
			"falsePositives": m.FalsePositives,
			"falseNegatives": m.FalseNegatives,
			"truePositives":  m.TruePositives,
			"total":          total,
		},
	})
}

// GetFeatureImportance handles GET /v1/model/features. Importance rows are
// returned in the trained model's order with each row's share of the total.
func (h *Handler) GetFeatureImportance(c *gin.Context) {
	var total float64
	for _, row := range h.artifacts.Importance {
		total += row.Importance
	}

	type entry struct {
		Feature    string  `json:"feature"`
		Importance float64 `json:"importance"`
		Share      float64 `json:"share"`
	}
	out := make([]entry, 0, len(h.artifacts.Importance))
	for _, row := range h.artifacts.Importance {
		share := 0.0
		if total > 0 {
			share = row.Importance / total
		}
		out = append(out, entry{Feature: row.Feature, Importance: row.Importance, Share: share})
	}

	c.JSON(http.StatusOK, gin.H{"features": out, "totalImportance": total})
}
