// Package scoring runs the single-transaction risk evaluation pipeline:
// encode -> scale -> classify -> threshold. One synchronous in-process
// computation per request, no retries, expected to finish well under a
// second.
package scoring

import (
	"fmt"
	"time"

	"github.com/mbd888/amlscope/internal/explain"
	"github.com/mbd888/amlscope/internal/features"
)

// Verdict is the binary decision on a scored transaction.
type Verdict string

const (
	VerdictHighRisk Verdict = "HIGH_RISK"
	VerdictLowRisk  Verdict = "LOW_RISK"
)

// ClassifierError wraps a failed invocation of the external classifier.
// The model is deterministic and stateless, so the failure is surfaced
// verbatim and never retried.
type ClassifierError struct {
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier invocation failed: %v", e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// Assessment is the result of evaluating a single transaction.
type Assessment struct {
	ID          string           `json:"id"`
	ScoredAt    time.Time        `json:"scoredAt"`
	Probability float64          `json:"probability"`
	Threshold   float64          `json:"threshold"`
	Verdict     Verdict          `json:"verdict"`
	RiskScoreV2 float64          `json:"riskScoreV2"`
	Flags       features.Flags   `json:"flags"`
	Factors     []explain.Factor `json:"factors"`
}

// Emitter receives completed assessments for live streaming. Implemented
// by the realtime hub adapter in the server.
type Emitter interface {
	ScoreEvaluated(a *Assessment, tx *features.Transaction)
}
