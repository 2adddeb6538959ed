package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/mbd888/amlscope/internal/explain"
	"github.com/mbd888/amlscope/internal/features"
	"github.com/mbd888/amlscope/internal/history"
	"github.com/mbd888/amlscope/internal/idgen"
	"github.com/mbd888/amlscope/internal/metrics"
	"github.com/mbd888/amlscope/internal/model"
	"github.com/mbd888/amlscope/internal/traces"
)

// Engine evaluates transactions against the loaded model artifacts. All
// artifact state is read-only after construction; the only mutable shared
// state is the injected history store, which guards itself.
type Engine struct {
	encoder    *features.Encoder
	scaler     *model.StandardScaler
	classifier model.Classifier
	threshold  float64
	store      history.Store
	emitter    Emitter
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a scoring engine from loaded artifacts. The decision
// threshold defaults to the config's optimal_threshold.
func NewEngine(artifacts *model.Artifacts, classifier model.Classifier, store history.Store, logger *slog.Logger) *Engine {
	cfg := artifacts.Config
	return &Engine{
		encoder:    features.NewEncoder(cfg.AmountMean, cfg.AmountStd),
		scaler:     artifacts.Scaler,
		classifier: classifier,
		threshold:  cfg.OptimalThreshold,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// WithThreshold overrides the decision threshold. Read once at startup,
// never mutated at runtime.
func (e *Engine) WithThreshold(t float64) *Engine {
	e.threshold = t
	return e
}

// WithEmitter attaches a live event emitter.
func (e *Engine) WithEmitter(em Emitter) *Engine {
	e.emitter = em
	return e
}

// Threshold returns the effective decision threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Score evaluates one transaction. Validation, schema, and classifier
// failures abort the request; nothing is defaulted and nothing is
// retried.
func (e *Engine) Score(ctx context.Context, tx *features.Transaction) (*Assessment, error) {
	ctx, span := traces.StartSpan(ctx, "scoring.score",
		traces.Currency(string(tx.PaymentCurrency)),
		traces.PaymentFormat(string(tx.PaymentFormat)),
		traces.Amount(tx.Amount),
		traces.BankID("sender", tx.SenderBank),
		traces.BankID("receiver", tx.ReceiverBank),
	)
	defer span.End()

	start := e.now()

	vector, flags, err := e.encoder.Encode(tx)
	if err != nil {
		metrics.ScoreFailuresTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	scaled, err := e.scaler.Transform(vector)
	if err != nil {
		metrics.ScoreFailuresTotal.WithLabelValues("schema").Inc()
		return nil, err
	}

	clfStart := e.now()
	probability, err := e.classifier.PredictProbability(ctx, scaled)
	metrics.ClassifierDuration.Observe(e.now().Sub(clfStart).Seconds())
	if err != nil {
		metrics.ScoreFailuresTotal.WithLabelValues("classifier").Inc()
		return nil, &ClassifierError{Err: err}
	}

	// Strict >=: a probability exactly at the threshold is high risk.
	verdict := VerdictLowRisk
	if probability >= e.threshold {
		verdict = VerdictHighRisk
	}

	a := &Assessment{
		ID:          idgen.WithPrefix("score_"),
		ScoredAt:    e.now(),
		Probability: probability,
		Threshold:   e.threshold,
		Verdict:     verdict,
		RiskScoreV2: flags.RiskScoreV2(),
		Flags:       flags,
		Factors:     explain.Explain(flags),
	}

	traces.SetVerdict(span, string(verdict), probability)
	metrics.ScoresTotal.WithLabelValues(string(verdict)).Inc()
	metrics.ScoreDuration.Observe(e.now().Sub(start).Seconds())

	e.record(ctx, a, tx)

	if e.emitter != nil {
		e.emitter.ScoreEvaluated(a, tx)
	}

	return a, nil
}

// record appends the prediction to the history log. Best effort: a failed
// append is logged, not surfaced — the verdict already stands.
func (e *Engine) record(ctx context.Context, a *Assessment, tx *features.Transaction) {
	status := history.StatusLowRisk
	if a.Verdict == VerdictHighRisk {
		status = history.StatusHighRisk
	}

	rec := &history.Record{
		ID:            a.ID,
		Timestamp:     tx.Timestamp,
		SenderBank:    tx.SenderBank,
		ReceiverBank:  tx.ReceiverBank,
		Amount:        tx.Amount,
		Currency:      string(tx.PaymentCurrency),
		PaymentFormat: string(tx.PaymentFormat),
		Probability:   a.Probability,
		Status:        status,
	}

	if err := e.store.Append(ctx, rec); err != nil {
		e.logger.Warn("failed to append prediction history", "error", err, "id", a.ID)
		return
	}
	if sum, err := e.store.Summary(ctx); err == nil {
		metrics.HistoryRecords.Set(float64(sum.Total))
	}
}
