package features

// Canonical feature order from the training pipeline's feature_names.json.
// Position matters: the scaler and classifier consume the vector
// positionally with no name checking of their own.
var featureNames = []string{
	"To Bank",
	"From Bank",
	"Amount Received",
	"Amount Paid",
	"hour",
	"day_of_week",
	"is_weekend",
	"is_night",
	"is_ach",
	"is_usd",
	"is_euro",
	"is_uk_pound",
	"is_bank_800",
	"is_bank_1004",
	"in_structuring_range",
	"is_just_below_threshold",
	"ach_weekend",
	"uk_pound_structuring",
	"amount_zscore",
	"risk_score_v2",
}

// FeatureCount is the width of the model's input vector.
const FeatureCount = 20

// FeatureNames returns a copy of the canonical feature order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Bank identifier sentinels from the training data. Bank 800 is the
// trusted counterparty; bank 1004 carries a 95% laundering rate in the
// training set.
const (
	TrustedBankID  = 800
	HighRiskBankID = 1004
)

// Structuring policy bands (inclusive low/high unless noted).
// CTRThreshold is the $10,000 reporting line; amounts sized just under it
// are the classic structuring signature.
const (
	CTRThreshold        = 10000.0
	StructuringLow      = 9000.0  // in_structuring_range: [9000, 10000]
	JustBelowLow        = 9500.0  // is_just_below_threshold: [9500, 10000)
	NightStartHour      = 22      // is_night: hour >= 22 or hour < 6
	NightEndHour        = 6
	WeekendFirstWeekday = 5       // day_of_week 0=Monday; 5,6 are weekend
)

// risk_score_v2 weights from the training pipeline.
const (
	weightACH         = 3.0
	weightWeekend     = 1.5
	weightStructuring = 4.0
	weightHighRisk    = 5.0
	weightUKPound     = 2.0
)

// Flags holds the derived sub-features shared between the encoder and the
// risk-factor explainer. The explainer must never recompute these.
type Flags struct {
	Hour      int
	DayOfWeek int // 0=Monday .. 6=Sunday

	Weekend            bool
	Night              bool
	ACH                bool
	USD                bool
	Euro               bool
	UKPound            bool
	TrustedBank        bool // either bank ID == 800
	HighRiskBank       bool // either bank ID == 1004
	StructuringRange   bool
	JustBelowThreshold bool
	ACHWeekend         bool
	UKPoundStructuring bool
}

// RiskScoreV2 is the composite weighted indicator used as the final
// engineered feature.
func (f Flags) RiskScoreV2() float64 {
	return b2f(f.ACH)*weightACH +
		b2f(f.Weekend)*weightWeekend +
		b2f(f.StructuringRange)*weightStructuring +
		b2f(f.HighRiskBank)*weightHighRisk +
		b2f(f.UKPound)*weightUKPound
}

// Vector is an encoded feature vector in the canonical order.
type Vector []float64

// Encoder turns transactions into model-ready feature vectors. The
// population amount statistics come from the training pipeline's saved
// config — they are never recomputed per request.
type Encoder struct {
	amountMean float64
	amountStd  float64
}

// NewEncoder creates an encoder with the training population's amount
// mean and standard deviation.
func NewEncoder(amountMean, amountStd float64) *Encoder {
	return &Encoder{amountMean: amountMean, amountStd: amountStd}
}

// Derive computes the boolean sub-features without building the vector.
// Pure: reads only the transaction's own fields, no clock access.
func (e *Encoder) Derive(t *Transaction) Flags {
	hour := t.Timestamp.Hour()

	// Go's time.Weekday has Sunday=0; training used Monday=0.
	dow := (int(t.Timestamp.Weekday()) + 6) % 7

	f := Flags{
		Hour:      hour,
		DayOfWeek: dow,

		Weekend: dow >= WeekendFirstWeekday,
		Night:   hour >= NightStartHour || hour < NightEndHour,
		ACH:     t.PaymentFormat == FormatACH,
		USD:     t.PaymentCurrency == CurrencyUSDollar,
		Euro:    t.PaymentCurrency == CurrencyEuro,
		UKPound: t.PaymentCurrency == CurrencyUKPound,

		// Exact numeric match on the sentinel bank IDs. Account strings
		// are reference data and play no part in bank identity.
		TrustedBank:  t.SenderBank == TrustedBankID || t.ReceiverBank == TrustedBankID,
		HighRiskBank: t.SenderBank == HighRiskBankID || t.ReceiverBank == HighRiskBankID,

		StructuringRange:   t.Amount >= StructuringLow && t.Amount <= CTRThreshold,
		JustBelowThreshold: t.Amount >= JustBelowLow && t.Amount < CTRThreshold,
	}

	f.ACHWeekend = f.ACH && f.Weekend
	f.UKPoundStructuring = f.UKPound && f.StructuringRange
	return f
}

// Encode validates the transaction and emits the 20-feature vector in the
// canonical order, plus the derived flags for the explainer.
func (e *Encoder) Encode(t *Transaction) (Vector, Flags, error) {
	if err := t.Validate(); err != nil {
		return nil, Flags{}, err
	}

	f := e.Derive(t)

	v := Vector{
		float64(t.ReceiverBank),                 // To Bank
		float64(t.SenderBank),                   // From Bank
		t.Amount,                                // Amount Received
		t.Amount,                                // Amount Paid
		float64(f.Hour),                         // hour
		float64(f.DayOfWeek),                    // day_of_week
		b2f(f.Weekend),                          // is_weekend
		b2f(f.Night),                            // is_night
		b2f(f.ACH),                              // is_ach
		b2f(f.USD),                              // is_usd
		b2f(f.Euro),                             // is_euro
		b2f(f.UKPound),                          // is_uk_pound
		b2f(f.TrustedBank),                      // is_bank_800
		b2f(f.HighRiskBank),                     // is_bank_1004
		b2f(f.StructuringRange),                 // in_structuring_range
		b2f(f.JustBelowThreshold),               // is_just_below_threshold
		b2f(f.ACHWeekend),                       // ach_weekend
		b2f(f.UKPoundStructuring),               // uk_pound_structuring
		(t.Amount - e.amountMean) / e.amountStd, // amount_zscore
		f.RiskScoreV2(),                         // risk_score_v2
	}

	return v, f, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
