// Package features derives the model's input feature vector from a raw
// transaction record.
//
// The trained model was fit on exactly 20 engineered features in a fixed
// order. Nothing downstream validates that order — the scaler and the
// classifier both apply positionally — so this package is the single place
// where the schema is allowed to be known. Encode emits the canonical
// order; everything else asserts against it.
package features

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidEnum is the sentinel for out-of-set currency or payment
	// format values. Callers branch with errors.Is.
	ErrInvalidEnum = errors.New("value outside closed enumeration")

	// ErrNegativeAmount is returned for amounts below zero.
	ErrNegativeAmount = errors.New("amount must be non-negative")

	// ErrNegativeBank is returned for negative bank identifiers.
	ErrNegativeBank = errors.New("bank identifier must be non-negative")
)

// EnumError reports which field carried an out-of-set value.
type EnumError struct {
	Field string
	Value string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("%s: %q is not a recognized value", e.Field, e.Value)
}

func (e *EnumError) Unwrap() error { return ErrInvalidEnum }

// Currency is one of the 15 currency codes the model was trained on.
type Currency string

const (
	CurrencyUSDollar         Currency = "US Dollar"
	CurrencyEuro             Currency = "Euro"
	CurrencyUKPound          Currency = "UK Pound"
	CurrencyYen              Currency = "Yen"
	CurrencyYuan             Currency = "Yuan"
	CurrencyBitcoin          Currency = "Bitcoin"
	CurrencyAustralianDollar Currency = "Australian Dollar"
	CurrencyBrazilReal       Currency = "Brazil Real"
	CurrencyCanadianDollar   Currency = "Canadian Dollar"
	CurrencyMexicanPeso      Currency = "Mexican Peso"
	CurrencyRuble            Currency = "Ruble"
	CurrencyRupee            Currency = "Rupee"
	CurrencySaudiRiyal       Currency = "Saudi Riyal"
	CurrencyShekel           Currency = "Shekel"
	CurrencySwissFranc       Currency = "Swiss Franc"
)

// Currencies lists every valid currency, in the training data's order.
func Currencies() []Currency {
	return []Currency{
		CurrencyUSDollar, CurrencyEuro, CurrencyUKPound, CurrencyYen,
		CurrencyYuan, CurrencyBitcoin, CurrencyAustralianDollar,
		CurrencyBrazilReal, CurrencyCanadianDollar, CurrencyMexicanPeso,
		CurrencyRuble, CurrencyRupee, CurrencySaudiRiyal, CurrencyShekel,
		CurrencySwissFranc,
	}
}

// Valid reports whether c is in the closed set.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSDollar, CurrencyEuro, CurrencyUKPound, CurrencyYen,
		CurrencyYuan, CurrencyBitcoin, CurrencyAustralianDollar,
		CurrencyBrazilReal, CurrencyCanadianDollar, CurrencyMexicanPeso,
		CurrencyRuble, CurrencyRupee, CurrencySaudiRiyal, CurrencyShekel,
		CurrencySwissFranc:
		return true
	}
	return false
}

// ParseCurrency validates a raw string against the closed set.
func ParseCurrency(field, s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", &EnumError{Field: field, Value: s}
	}
	return c, nil
}

// PaymentFormat is one of the 7 payment rails the model was trained on.
type PaymentFormat string

const (
	FormatACH          PaymentFormat = "ACH"
	FormatWire         PaymentFormat = "Wire"
	FormatCheque       PaymentFormat = "Cheque"
	FormatCash         PaymentFormat = "Cash"
	FormatBitcoin      PaymentFormat = "Bitcoin"
	FormatCreditCard   PaymentFormat = "Credit Card"
	FormatReinvestment PaymentFormat = "Reinvestment"
)

// PaymentFormats lists every valid payment format.
func PaymentFormats() []PaymentFormat {
	return []PaymentFormat{
		FormatACH, FormatWire, FormatCheque, FormatCash,
		FormatBitcoin, FormatCreditCard, FormatReinvestment,
	}
}

// Valid reports whether f is in the closed set.
func (f PaymentFormat) Valid() bool {
	switch f {
	case FormatACH, FormatWire, FormatCheque, FormatCash,
		FormatBitcoin, FormatCreditCard, FormatReinvestment:
		return true
	}
	return false
}

// ParsePaymentFormat validates a raw string against the closed set.
func ParsePaymentFormat(field, s string) (PaymentFormat, error) {
	f := PaymentFormat(s)
	if !f.Valid() {
		return "", &EnumError{Field: field, Value: s}
	}
	return f, nil
}

// Transaction is a raw transaction record as entered by an analyst.
// Immutable once submitted; all derivation reads only these fields.
type Transaction struct {
	Timestamp         time.Time
	Amount            float64 // paid and received amounts are equal in this flow
	PaymentCurrency   Currency
	ReceivingCurrency Currency
	PaymentFormat     PaymentFormat
	SenderBank        int64
	ReceiverBank      int64
	SenderAccount     string // reference only, not a model input
	ReceiverAccount   string
}

// Validate rejects malformed input before any feature derivation runs.
// Enum violations never silently encode to all-zero indicator flags.
func (t *Transaction) Validate() error {
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	if t.SenderBank < 0 || t.ReceiverBank < 0 {
		return ErrNegativeBank
	}
	if !t.PaymentCurrency.Valid() {
		return &EnumError{Field: "payment_currency", Value: string(t.PaymentCurrency)}
	}
	if !t.ReceivingCurrency.Valid() {
		return &EnumError{Field: "receiving_currency", Value: string(t.ReceivingCurrency)}
	}
	if !t.PaymentFormat.Valid() {
		return &EnumError{Field: "payment_format", Value: string(t.PaymentFormat)}
	}
	return nil
}
