package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Classifier is the trained calibrated classifier: given a scaled feature
// vector, return a probability in [0, 1]. The artifact itself (gradient
// boosting + calibration) lives outside this process.
type Classifier interface {
	PredictProbability(ctx context.Context, scaled []float64) (float64, error)
}

// HTTPClassifier calls a model inference sidecar over HTTP. The underlying
// model is deterministic and stateless, so invocation failures are not
// retried — a retry would return the same error.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier creates a classifier client for the sidecar's predict
// endpoint.
func NewHTTPClassifier(endpoint string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Probability float64 `json:"probability"`
}

// PredictProbability sends the scaled vector to the sidecar and returns
// the calibrated probability.
func (c *HTTPClassifier) PredictProbability(ctx context.Context, scaled []float64) (float64, error) {
	body, err := json.Marshal(predictRequest{Features: scaled})
	if err != nil {
		return 0, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("classifier unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(msg))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode predict response: %w", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("classifier returned probability %v outside [0, 1]", out.Probability)
	}
	return out.Probability, nil
}
