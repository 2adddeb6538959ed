// Package history keeps the append-only prediction log: one record per
// scoring action, never mutated after creation, only appended and
// optionally cleared in bulk.
//
// The store is an explicit dependency injected into the scorer's caller —
// not ambient session state — so multi-user deployments get real
// concurrent-access control and tests get isolation for free.
package history

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Verdict labels as they appear in the record store and exports.
const (
	StatusHighRisk = "HIGH RISK"
	StatusLowRisk  = "LOW RISK"
)

// Record is one scoring action. Append-only; no field changes after
// creation.
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SenderBank    int64     `json:"senderBank"`
	ReceiverBank  int64     `json:"receiverBank"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentFormat string    `json:"paymentFormat"`
	Probability   float64   `json:"probability"`
	Status        string    `json:"status"`
}

// Summary is the aggregate view shown above the history table.
type Summary struct {
	Total        int     `json:"total"`
	HighRisk     int     `json:"highRisk"`
	LowRisk      int     `json:"lowRisk"`
	HighRiskRate float64 `json:"highRiskRate"`
}

// Store persists prediction records.
type Store interface {
	// Append adds one record. Records arrive in scoring order.
	Append(ctx context.Context, rec *Record) error
	// List returns the most recent records first, up to limit.
	List(ctx context.Context, limit int) ([]*Record, error)
	// Summary returns aggregate counts over all records.
	Summary(ctx context.Context) (*Summary, error)
	// Clear removes all records. The only non-append mutation.
	Clear(ctx context.Context) error
}

// FormatAmount renders an amount the way the dashboard and the flat-file
// export show it: "$9,450.00".
func FormatAmount(amount float64) string {
	whole := int64(math.Floor(amount))
	cents := int64(math.Round((amount - float64(whole)) * 100))
	if cents == 100 { // rounding carried over
		whole++
		cents = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("$%s.%02d", b.String(), cents)
}

// FormatRiskScore renders a probability as the percentage string used in
// exports: "12.34%".
func FormatRiskScore(probability float64) string {
	return fmt.Sprintf("%.2f%%", probability*100)
}

// summarize computes a Summary from a record slice.
func summarize(records []*Record) *Summary {
	s := &Summary{Total: len(records)}
	for _, rec := range records {
		if rec.Status == StatusHighRisk {
			s.HighRisk++
		} else {
			s.LowRisk++
		}
	}
	if s.Total > 0 {
		s.HighRiskRate = float64(s.HighRisk) / float64(s.Total)
	}
	return s
}
