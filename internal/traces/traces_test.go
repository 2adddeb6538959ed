package traces

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestAttributeHelpers(t *testing.T) {
	if kv := Currency("UK Pound"); string(kv.Key) != "tx.currency" || kv.Value.AsString() != "UK Pound" {
		t.Errorf("Currency = %s=%v", kv.Key, kv.Value.Emit())
	}
	if kv := PaymentFormat("ACH"); string(kv.Key) != "tx.payment_format" || kv.Value.AsString() != "ACH" {
		t.Errorf("PaymentFormat = %s=%v", kv.Key, kv.Value.Emit())
	}
	if kv := Amount(9450); string(kv.Key) != "tx.amount" || kv.Value.AsFloat64() != 9450 {
		t.Errorf("Amount = %s=%v", kv.Key, kv.Value.Emit())
	}
	if kv := BankID("sender", 12); string(kv.Key) != "tx.bank.sender" || kv.Value.AsInt64() != 12 {
		t.Errorf("BankID sender = %s=%v", kv.Key, kv.Value.Emit())
	}
	if kv := BankID("receiver", 1004); string(kv.Key) != "tx.bank.receiver" || kv.Value.AsInt64() != 1004 {
		t.Errorf("BankID receiver = %s=%v", kv.Key, kv.Value.Emit())
	}
}

func TestInit_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := Init(context.Background(), "", logger)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	// Spans still work against the no-op provider.
	ctx, span := StartSpan(context.Background(), "test", Amount(1))
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	span.End()
}
