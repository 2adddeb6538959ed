package explain

import (
	"testing"
	"time"

	"github.com/mbd888/amlscope/internal/features"
)

func codes(factors []Factor) map[string]Polarity {
	out := make(map[string]Polarity, len(factors))
	for _, f := range factors {
		out[f.Code] = f.Polarity
	}
	return out
}

func TestExplain_NoFlags(t *testing.T) {
	factors := Explain(features.Flags{})
	if len(factors) != 0 {
		t.Errorf("Expected no factors for zero flags, got %d", len(factors))
	}
}

func TestExplain_AllRiskFlags(t *testing.T) {
	f := features.Flags{
		ACH:                true,
		Weekend:            true,
		ACHWeekend:         true,
		StructuringRange:   true,
		UKPound:            true,
		UKPoundStructuring: true,
		HighRiskBank:       true,
		JustBelowThreshold: true,
	}

	got := codes(Explain(f))
	expected := []string{
		"ach_payment", "weekend", "ach_weekend", "structuring_range",
		"uk_pound_structuring", "uk_pound", "high_risk_bank", "just_below_ctr",
	}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d factors, got %d: %v", len(expected), len(got), got)
	}
	for _, code := range expected {
		if got[code] != PolarityRisk {
			t.Errorf("Expected %s with risk polarity, got %q", code, got[code])
		}
	}
}

func TestExplain_ProtectiveFlags(t *testing.T) {
	got := codes(Explain(features.Flags{TrustedBank: true, Night: true}))

	if got["trusted_bank"] != PolarityProtective {
		t.Errorf("Expected trusted_bank protective, got %q", got["trusted_bank"])
	}
	if got["night"] != PolarityProtective {
		t.Errorf("Expected night protective, got %q", got["night"])
	}
}

func TestExplain_Additive(t *testing.T) {
	// Risk and protective indicators coexist; nothing suppresses anything.
	f := features.Flags{
		ACH:         true,
		TrustedBank: true,
		Night:       true,
	}
	got := codes(Explain(f))
	if len(got) != 3 {
		t.Fatalf("Expected 3 factors, got %d: %v", len(got), got)
	}
	if got["ach_payment"] != PolarityRisk || got["trusted_bank"] != PolarityProtective {
		t.Error("Expected mixed polarities to coexist")
	}
}

func TestExplain_InteractionIndependentOfParts(t *testing.T) {
	// The interaction entry appears only when the encoder derived it, even
	// if the constituent flags are set.
	f := features.Flags{ACH: true, Weekend: true}
	got := codes(Explain(f))
	if _, ok := got["ach_weekend"]; ok {
		t.Error("ach_weekend must come from the derived flag, not be recomputed")
	}
}

func TestExplain_UsesDerivedFlags(t *testing.T) {
	// A real encoder pass produces matching factor and flag sets.
	enc := features.NewEncoder(5000, 3000)
	tx := &features.Transaction{
		Timestamp:         time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC), // Saturday night
		Amount:            9750,
		PaymentCurrency:   features.CurrencyUKPound,
		ReceivingCurrency: features.CurrencyUKPound,
		PaymentFormat:     features.FormatACH,
		SenderBank:        800,
		ReceiverBank:      1004,
	}
	_, flags, err := enc.Encode(tx)
	if err != nil {
		t.Fatal(err)
	}

	got := codes(Explain(flags))
	for _, code := range []string{
		"ach_payment", "weekend", "ach_weekend", "structuring_range",
		"uk_pound_structuring", "uk_pound", "high_risk_bank",
		"just_below_ctr", "trusted_bank", "night",
	} {
		if _, ok := got[code]; !ok {
			t.Errorf("Expected factor %s for the maximal transaction", code)
		}
	}
}
