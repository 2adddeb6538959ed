// Package explain turns the encoder's derived flags into the risk and
// protective indicator list shown next to a verdict.
//
// The multiplier text in the labels is narrative carried over from the
// training analysis ("49x baseline" etc). It is presentational context for
// the analyst, not a live model output, and is never used in scoring.
package explain

import "github.com/mbd888/amlscope/internal/features"

// Polarity tags an indicator as increasing or decreasing risk so the
// presentation layer can style them apart.
type Polarity string

const (
	PolarityRisk       Polarity = "risk"
	PolarityProtective Polarity = "protective"
)

// Factor is one triggered indicator.
type Factor struct {
	Code     string   `json:"code"`
	Label    string   `json:"label"`
	Polarity Polarity `json:"polarity"`
}

// Explain lists the indicators triggered by the derived flags. Purely
// additive: each flag independently contributes at most one entry, with no
// suppression or precedence between entries. It reads only the flags the
// encoder derived — nothing is recomputed here.
func Explain(f features.Flags) []Factor {
	var out []Factor

	if f.ACH {
		out = append(out, Factor{
			Code:     "ach_payment",
			Label:    "ACH Payment (49x baseline risk)",
			Polarity: PolarityRisk,
		})
	}
	if f.Weekend {
		out = append(out, Factor{
			Code:     "weekend",
			Label:    "Weekend Transaction (3x baseline risk)",
			Polarity: PolarityRisk,
		})
	}
	if f.ACHWeekend {
		out = append(out, Factor{
			Code:     "ach_weekend",
			Label:    "ACH + Weekend Combined (21.6x baseline risk)",
			Polarity: PolarityRisk,
		})
	}
	if f.StructuringRange {
		out = append(out, Factor{
			Code:     "structuring_range",
			Label:    "Structuring Range $9K-$10K (8.3x baseline risk)",
			Polarity: PolarityRisk,
		})
	}
	if f.UKPoundStructuring {
		out = append(out, Factor{
			Code:     "uk_pound_structuring",
			Label:    "UK Pound + Structuring (8.3x baseline risk)",
			Polarity: PolarityRisk,
		})
	}
	if f.UKPound {
		out = append(out, Factor{
			Code:     "uk_pound",
			Label:    "UK Pound Currency",
			Polarity: PolarityRisk,
		})
	}
	if f.HighRiskBank {
		out = append(out, Factor{
			Code:     "high_risk_bank",
			Label:    "High-Risk Bank 1004 (95.2% laundering rate)",
			Polarity: PolarityRisk,
		})
	}
	if f.JustBelowThreshold {
		out = append(out, Factor{
			Code:     "just_below_ctr",
			Label:    "Just Below $10K CTR Threshold",
			Polarity: PolarityRisk,
		})
	}
	if f.TrustedBank {
		out = append(out, Factor{
			Code:     "trusted_bank",
			Label:    "Bank 800 (Trusted Counterparty)",
			Polarity: PolarityProtective,
		})
	}
	if f.Night {
		out = append(out, Factor{
			Code:     "night",
			Label:    "Night Transaction 10PM-6AM (0.53x baseline)",
			Polarity: PolarityProtective,
		})
	}

	return out
}
