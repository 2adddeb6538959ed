package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mbd888/amlscope/internal/features"
)

// Artifact file names as written by the training pipeline.
const (
	configFile     = "model_config.json"
	featuresFile   = "feature_names.json"
	importanceFile = "feature_importance.json"
	scalerFile     = "scaler.json"
)

// DefaultSearchPaths are the candidate artifact directories, tried in
// order when no explicit directory is configured.
var DefaultSearchPaths = []string{"models", "../models", "../../models"}

// Artifacts bundles everything loaded from the model directory.
type Artifacts struct {
	Config       *Config
	FeatureNames []string
	Importance   []Importance
	Scaler       *StandardScaler
}

// Discover returns the first candidate directory containing a model
// config, or ErrArtifactMissing if none does.
func Discover(dirs ...string) (string, error) {
	if len(dirs) == 0 {
		dirs = DefaultSearchPaths
	}
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, configFile)); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: no model directory among %v", ErrArtifactMissing, dirs)
}

// LoadArtifacts reads and cross-validates all artifacts from dir. Any
// missing file, malformed document, or schema disagreement is fatal — a
// partially loaded model must never score.
func LoadArtifacts(dir string) (*Artifacts, error) {
	a := &Artifacts{Config: &Config{}, Scaler: &StandardScaler{}}

	if err := readJSON(filepath.Join(dir, configFile), a.Config); err != nil {
		return nil, err
	}
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}

	if err := readJSON(filepath.Join(dir, featuresFile), &a.FeatureNames); err != nil {
		return nil, err
	}
	if err := checkFeatureOrder(a.FeatureNames); err != nil {
		return nil, err
	}

	if err := readJSON(filepath.Join(dir, importanceFile), &a.Importance); err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(a.FeatureNames))
	for _, name := range a.FeatureNames {
		known[name] = true
	}
	for _, imp := range a.Importance {
		if !known[imp.Feature] {
			return nil, fmt.Errorf("%w: importance table names unknown feature %q", ErrConfigInvalid, imp.Feature)
		}
	}

	if err := readJSON(filepath.Join(dir, scalerFile), a.Scaler); err != nil {
		return nil, err
	}
	if err := a.Scaler.Validate(); err != nil {
		return nil, err
	}
	if err := checkFeatureOrder(a.Scaler.FeatureNames); err != nil {
		return nil, fmt.Errorf("scaler fit order: %w", err)
	}

	return a, nil
}

// checkFeatureOrder verifies an artifact's feature list matches the
// encoder's canonical order exactly, element by element.
func checkFeatureOrder(names []string) error {
	canonical := features.FeatureNames()
	if len(names) != len(canonical) {
		return &SchemaError{Want: len(canonical), Got: len(names)}
	}
	for i, name := range names {
		if name != canonical[i] {
			return fmt.Errorf("%w: feature %d is %q, encoder emits %q", ErrConfigInvalid, i, name, canonical[i])
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
	}
	return nil
}
