// Package model loads and fronts the pre-trained AML classifier's
// artifacts: the model config document, the feature schema, the fitted
// scaler, and the feature importance table.
//
// The classifier itself is an external black box reached through the
// Classifier interface. Everything in this package is loaded once at
// startup, validated eagerly, and treated as read-only afterwards —
// concurrent scoring requests share it without locking.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactMissing means a required artifact file was not found at
	// any known location. Fatal at startup: no artifacts, no scoring.
	ErrArtifactMissing = errors.New("model artifact missing")

	// ErrConfigInvalid means an artifact was found but failed eager
	// validation.
	ErrConfigInvalid = errors.New("model config invalid")
)

// SchemaError reports a feature vector that does not match the schema the
// scaler and classifier were fit on. Misaligned vectors must never proceed
// to scoring.
type SchemaError struct {
	Want int
	Got  int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("feature vector has %d features, schema expects %d", e.Got, e.Want)
}

// PerformanceMetrics holds the held-out test metrics recorded by the
// training pipeline, including the raw confusion matrix counts.
type PerformanceMetrics struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	ROCAUC         float64 `json:"roc_auc"`
	TrueNegatives  int64   `json:"true_negatives"`
	FalsePositives int64   `json:"false_positives"`
	FalseNegatives int64   `json:"false_negatives"`
	TruePositives  int64   `json:"true_positives"`
}

// Config is the model_config.json document. Required fields are checked
// at load time so nothing fails lazily deep in the scoring path.
type Config struct {
	ModelName        string             `json:"model_name"`
	ModelVersion     string             `json:"model_version"`
	OptimalThreshold float64            `json:"optimal_threshold"`
	Metrics          PerformanceMetrics `json:"performance_metrics"`

	// Population statistics for the amount_zscore feature. Saved by the
	// training pipeline; the one canonical source for these constants.
	AmountMean float64 `json:"population_amount_mean"`
	AmountStd  float64 `json:"population_amount_std"`

	// Free-form training metadata, surfaced verbatim by the API.
	Hyperparameters map[string]any `json:"hyperparameters"`
	TrainingInfo    map[string]any `json:"training_info"`
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name is required", ErrConfigInvalid)
	}
	if c.ModelVersion == "" {
		return fmt.Errorf("%w: model_version is required", ErrConfigInvalid)
	}
	if c.OptimalThreshold <= 0 || c.OptimalThreshold > 1 {
		return fmt.Errorf("%w: optimal_threshold %v outside (0, 1]", ErrConfigInvalid, c.OptimalThreshold)
	}
	if c.AmountStd <= 0 {
		return fmt.Errorf("%w: population_amount_std must be positive", ErrConfigInvalid)
	}
	for name, v := range map[string]float64{
		"precision": c.Metrics.Precision,
		"recall":    c.Metrics.Recall,
		"f1_score":  c.Metrics.F1Score,
		"roc_auc":   c.Metrics.ROCAUC,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: performance_metrics.%s %v outside [0, 1]", ErrConfigInvalid, name, v)
		}
	}
	if c.Metrics.TrueNegatives < 0 || c.Metrics.FalsePositives < 0 ||
		c.Metrics.FalseNegatives < 0 || c.Metrics.TruePositives < 0 {
		return fmt.Errorf("%w: confusion matrix counts must be non-negative", ErrConfigInvalid)
	}
	return nil
}

// Importance is one row of the feature importance table, consumed only by
// presentation — never by the scoring path.
type Importance struct {
	Feature    string  `json:"Feature"`
	Importance float64 `json:"Importance"`
}
