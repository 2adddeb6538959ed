package model

import (
	"fmt"

	"github.com/mbd888/amlscope/internal/features"
)

// StandardScaler is the fitted per-feature standardization exported by the
// training pipeline (scaler.json). Transform applies (x - mean) / scale
// positionally, so the feature order baked into this artifact must match
// the encoder's — LoadArtifacts verifies that once at startup.
type StandardScaler struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// Validate checks internal consistency of the fitted scaler.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) != len(s.FeatureNames) || len(s.Scale) != len(s.FeatureNames) {
		return fmt.Errorf("%w: scaler arrays disagree on length (names=%d mean=%d scale=%d)",
			ErrConfigInvalid, len(s.FeatureNames), len(s.Mean), len(s.Scale))
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("%w: scaler scale[%d] (%s) is zero", ErrConfigInvalid, i, s.FeatureNames[i])
		}
	}
	return nil
}

// Transform standardizes a feature vector. The only hard invariant the
// rest of the system is careless about lives here: a vector of the wrong
// width is a typed SchemaError, never a silent misalignment.
func (s *StandardScaler) Transform(v features.Vector) (features.Vector, error) {
	if len(v) != len(s.Mean) {
		return nil, &SchemaError{Want: len(s.Mean), Got: len(v)}
	}
	out := make(features.Vector, len(v))
	for i, x := range v {
		out[i] = (x - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
