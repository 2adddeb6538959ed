package scoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mbd888/amlscope/internal/features"
	"github.com/mbd888/amlscope/internal/history"
	"github.com/mbd888/amlscope/internal/model"
)

type stubClassifier struct {
	probability float64
	err         error
	calls       int
	lastInput   []float64
}

func (s *stubClassifier) PredictProbability(ctx context.Context, feats []float64) (float64, error) {
	s.calls++
	s.lastInput = feats
	if s.err != nil {
		return 0, s.err
	}
	return s.probability, nil
}

type stubEmitter struct {
	assessments  []*Assessment
	transactions []*features.Transaction
}

func (s *stubEmitter) ScoreEvaluated(a *Assessment, tx *features.Transaction) {
	s.assessments = append(s.assessments, a)
	s.transactions = append(s.transactions, tx)
}

func testArtifacts() *model.Artifacts {
	names := features.FeatureNames()
	mean := make([]float64, len(names))
	scale := make([]float64, len(names))
	for i := range scale {
		scale[i] = 1
	}
	return &model.Artifacts{
		Config: &model.Config{
			ModelName:        "xgboost_aml_v2",
			ModelVersion:     "2.1.0",
			OptimalThreshold: 0.5,
			AmountMean:       5000,
			AmountStd:        3000,
		},
		FeatureNames: names,
		Scaler: &model.StandardScaler{
			FeatureNames: names,
			Mean:         mean,
			Scale:        scale,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func riskyTransaction() *features.Transaction {
	return &features.Transaction{
		Timestamp:         time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC), // Saturday
		Amount:            9450,
		PaymentCurrency:   features.CurrencyUKPound,
		ReceivingCurrency: features.CurrencyUKPound,
		PaymentFormat:     features.FormatACH,
		SenderBank:        12,
		ReceiverBank:      1004,
	}
}

func TestScore_HighRiskVerdict(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	store := history.NewMemoryStore()
	engine := NewEngine(testArtifacts(), clf, store, testLogger())

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if a.Verdict != VerdictHighRisk {
		t.Errorf("verdict = %s, want HIGH_RISK", a.Verdict)
	}
	if a.Probability != 0.93 {
		t.Errorf("probability = %v, want 0.93", a.Probability)
	}
	if a.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", a.Threshold)
	}
	if !strings.HasPrefix(a.ID, "score_") {
		t.Errorf("id = %q, want score_ prefix", a.ID)
	}
	if a.ScoredAt.IsZero() {
		t.Error("scoredAt is zero")
	}
	if clf.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", clf.calls)
	}
	if len(clf.lastInput) != 20 {
		t.Errorf("classifier input width = %d, want 20", len(clf.lastInput))
	}
}

func TestScore_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		want        Verdict
	}{
		{"exactly at threshold", 0.5, VerdictHighRisk},
		{"just below", 0.4999999, VerdictLowRisk},
		{"just above", 0.5000001, VerdictHighRisk},
		{"zero", 0, VerdictLowRisk},
		{"one", 1, VerdictHighRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := &stubClassifier{probability: tt.probability}
			engine := NewEngine(testArtifacts(), clf, history.NewMemoryStore(), testLogger())

			a, err := engine.Score(context.Background(), riskyTransaction())
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if a.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s", a.Verdict, tt.want)
			}
		})
	}
}

func TestScore_ThresholdOverride(t *testing.T) {
	clf := &stubClassifier{probability: 0.6}
	engine := NewEngine(testArtifacts(), clf, history.NewMemoryStore(), testLogger()).
		WithThreshold(0.7)

	if engine.Threshold() != 0.7 {
		t.Fatalf("Threshold() = %v, want 0.7", engine.Threshold())
	}

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// 0.6 clears the artifact threshold but not the override.
	if a.Verdict != VerdictLowRisk {
		t.Errorf("verdict = %s, want LOW_RISK", a.Verdict)
	}
	if a.Threshold != 0.7 {
		t.Errorf("threshold = %v, want 0.7", a.Threshold)
	}
}

func TestScore_FlagsAndFactors(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	engine := NewEngine(testArtifacts(), clf, history.NewMemoryStore(), testLogger())

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !a.Flags.ACH || !a.Flags.Weekend || !a.Flags.UKPound || !a.Flags.HighRiskBank {
		t.Errorf("flags = %+v, want ACH/weekend/UK pound/high-risk bank set", a.Flags)
	}
	// 3 (ACH) + 1.5 (weekend) + 4 (structuring) + 5 (bank 1004) + 2 (UK pound structuring)
	if a.RiskScoreV2 != 15.5 {
		t.Errorf("riskScoreV2 = %v, want 15.5", a.RiskScoreV2)
	}
	if len(a.Factors) == 0 {
		t.Fatal("no risk factors for a transaction tripping every flag")
	}
}

func TestScore_InvalidInput(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	store := history.NewMemoryStore()
	engine := NewEngine(testArtifacts(), clf, store, testLogger())

	tx := riskyTransaction()
	tx.PaymentCurrency = "Doubloon"

	_, err := engine.Score(context.Background(), tx)
	if !errors.Is(err, features.ErrInvalidEnum) {
		t.Fatalf("err = %v, want ErrInvalidEnum", err)
	}
	if clf.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", clf.calls)
	}
	sum, _ := store.Summary(context.Background())
	if sum.Total != 0 {
		t.Errorf("history total = %d, want 0", sum.Total)
	}
}

func TestScore_ScalerMismatch(t *testing.T) {
	artifacts := testArtifacts()
	artifacts.Scaler = &model.StandardScaler{
		FeatureNames: artifacts.FeatureNames[:19],
		Mean:         make([]float64, 19),
		Scale:        []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
	clf := &stubClassifier{probability: 0.93}
	engine := NewEngine(artifacts, clf, history.NewMemoryStore(), testLogger())

	_, err := engine.Score(context.Background(), riskyTransaction())
	var schemaErr *model.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if clf.calls != 0 {
		t.Errorf("classifier calls = %d, want 0", clf.calls)
	}
}

func TestScore_ClassifierFailure(t *testing.T) {
	cause := errors.New("connection refused")
	clf := &stubClassifier{err: cause}
	store := history.NewMemoryStore()
	engine := NewEngine(testArtifacts(), clf, store, testLogger())

	_, err := engine.Score(context.Background(), riskyTransaction())
	var clfErr *ClassifierError
	if !errors.As(err, &clfErr) {
		t.Fatalf("err = %v, want ClassifierError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err does not unwrap to the classifier cause")
	}
	if clf.calls != 1 {
		t.Errorf("classifier calls = %d, want 1 (no retries)", clf.calls)
	}
	sum, _ := store.Summary(context.Background())
	if sum.Total != 0 {
		t.Errorf("history total = %d, want 0", sum.Total)
	}
}

func TestScore_RecordsHistory(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	store := history.NewMemoryStore()
	engine := NewEngine(testArtifacts(), clf, store, testLogger())

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	records, _ := store.List(context.Background(), 0)
	if len(records) != 1 {
		t.Fatalf("history len = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.ID != a.ID {
		t.Errorf("record id = %q, want %q", rec.ID, a.ID)
	}
	if rec.Status != history.StatusHighRisk {
		t.Errorf("status = %q, want HIGH RISK", rec.Status)
	}
	if rec.Amount != 9450 || rec.SenderBank != 12 || rec.ReceiverBank != 1004 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Currency != "UK Pound" || rec.PaymentFormat != "ACH" {
		t.Errorf("currency/format = %q/%q", rec.Currency, rec.PaymentFormat)
	}
	if rec.Probability != 0.93 {
		t.Errorf("probability = %v", rec.Probability)
	}
}

type failingAppendStore struct {
	history.Store
}

func (s *failingAppendStore) Append(ctx context.Context, rec *history.Record) error {
	return errors.New("db down")
}

func TestScore_HistoryFailureIsBestEffort(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	store := &failingAppendStore{Store: history.NewMemoryStore()}
	engine := NewEngine(testArtifacts(), clf, store, testLogger())

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if a.Verdict != VerdictHighRisk {
		t.Errorf("verdict = %s, want HIGH_RISK despite history failure", a.Verdict)
	}
}

func TestScore_EmitsEvent(t *testing.T) {
	clf := &stubClassifier{probability: 0.93}
	emitter := &stubEmitter{}
	engine := NewEngine(testArtifacts(), clf, history.NewMemoryStore(), testLogger()).
		WithEmitter(emitter)

	a, err := engine.Score(context.Background(), riskyTransaction())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(emitter.assessments) != 1 {
		t.Fatalf("emitted = %d, want 1", len(emitter.assessments))
	}
	if emitter.assessments[0].ID != a.ID {
		t.Errorf("emitted id = %q, want %q", emitter.assessments[0].ID, a.ID)
	}
}

func TestScore_ScalerApplied(t *testing.T) {
	artifacts := testArtifacts()
	// Shift every feature by 1 and halve it; the classifier must see the
	// standardized vector, not the raw one.
	for i := range artifacts.Scaler.Mean {
		artifacts.Scaler.Mean[i] = 1
		artifacts.Scaler.Scale[i] = 2
	}
	clf := &stubClassifier{probability: 0.1}
	engine := NewEngine(artifacts, clf, history.NewMemoryStore(), testLogger())

	if _, err := engine.Score(context.Background(), riskyTransaction()); err != nil {
		t.Fatalf("Score: %v", err)
	}
	// Raw feature 0 is the receiver bank (1004): scaled (1004-1)/2.
	if clf.lastInput[0] != (1004-1)/2.0 {
		t.Errorf("scaled[0] = %v, want %v", clf.lastInput[0], (1004-1)/2.0)
	}
}
