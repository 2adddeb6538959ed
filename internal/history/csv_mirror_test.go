package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	rec := testRecord("a", StatusHighRisk)
	var b strings.Builder
	if err := WriteCSV(&b, []*Record{rec}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	wantHeader := "Timestamp,Sender Bank,Receiver Bank,Amount,Currency,Payment Format,Risk Score,Status"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}
	wantRow := `2024-06-01 14:30:00,12,1004,"$9,450.00",UK Pound,ACH,93.00%,HIGH RISK`
	if lines[1] != wantRow {
		t.Errorf("row = %q, want %q", lines[1], wantRow)
	}
}

func TestFileMirror_AppendReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	mirror := NewFileMirror(path)

	first := testRecord("a", StatusHighRisk)
	second := testRecord("b", StatusLowRisk)
	second.Amount = 1234567.89
	second.Probability = 0.1234

	if err := mirror.Append(first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mirror.Append(second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := mirror.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}

	got := records[0]
	if got.Timestamp.Format(csvTimeLayout) != "2024-06-01 14:30:00" {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
	if got.SenderBank != 12 || got.ReceiverBank != 1004 {
		t.Errorf("banks = %d/%d, want 12/1004", got.SenderBank, got.ReceiverBank)
	}
	if got.Amount != 9450 {
		t.Errorf("amount = %v, want 9450", got.Amount)
	}
	if got.Currency != "UK Pound" || got.PaymentFormat != "ACH" {
		t.Errorf("currency/format = %q/%q", got.Currency, got.PaymentFormat)
	}
	if got.Probability != 0.93 {
		t.Errorf("probability = %v, want 0.93", got.Probability)
	}
	if got.Status != StatusHighRisk {
		t.Errorf("status = %q", got.Status)
	}

	// Grouped thousands and fractional percentages also round-trip.
	if records[1].Amount != 1234567.89 {
		t.Errorf("amount = %v, want 1234567.89", records[1].Amount)
	}
	if records[1].Probability != 0.1234 {
		t.Errorf("probability = %v, want 0.1234", records[1].Probability)
	}
}

func TestFileMirror_ReadAllMissingFile(t *testing.T) {
	mirror := NewFileMirror(filepath.Join(t.TempDir(), "absent.csv"))
	records, err := mirror.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
}

func TestFileMirror_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	mirror := NewFileMirror(path)

	if err := mirror.Append(testRecord("a", StatusHighRisk)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mirror.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	records, err := mirror.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len after clear = %d, want 0", len(records))
	}

	// Clearing a mirror that never wrote anything is a no-op.
	fresh := NewFileMirror(filepath.Join(t.TempDir(), "absent.csv"))
	if err := fresh.Clear(); err != nil {
		t.Errorf("Clear on missing file: %v", err)
	}
}

type failingStore struct {
	Store
	appendErr error
}

func (s *failingStore) Append(ctx context.Context, rec *Record) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.Store.Append(ctx, rec)
}

func TestMirroredStore_AppendAndClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")
	mirror := NewFileMirror(path)
	store := NewMirroredStore(NewMemoryStore(), mirror, nil)

	if err := store.Append(ctx, testRecord("a", StatusHighRisk)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, _ := store.List(ctx, 0)
	if len(records) != 1 {
		t.Fatalf("store len = %d, want 1", len(records))
	}
	mirrored, err := mirror.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(mirrored) != 1 {
		t.Fatalf("mirror len = %d, want 1", len(mirrored))
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	mirrored, _ = mirror.ReadAll()
	if len(mirrored) != 0 {
		t.Errorf("mirror len after clear = %d, want 0", len(mirrored))
	}
}

func TestMirroredStore_InnerFailureWins(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("db down")
	inner := &failingStore{Store: NewMemoryStore(), appendErr: wantErr}
	mirror := NewFileMirror(filepath.Join(t.TempDir(), "history.csv"))
	store := NewMirroredStore(inner, mirror, nil)

	if err := store.Append(ctx, testRecord("a", StatusHighRisk)); !errors.Is(err, wantErr) {
		t.Fatalf("Append err = %v, want %v", err, wantErr)
	}
	// Inner append failed, so nothing reaches the mirror.
	mirrored, _ := mirror.ReadAll()
	if len(mirrored) != 0 {
		t.Errorf("mirror len = %d, want 0", len(mirrored))
	}
}

func TestMirroredStore_MirrorFailureReported(t *testing.T) {
	ctx := context.Background()
	// A directory path makes every mirror write fail.
	dir := t.TempDir()
	mirror := NewFileMirror(dir)

	var reported error
	store := NewMirroredStore(NewMemoryStore(), mirror, func(err error) { reported = err })

	if err := store.Append(ctx, testRecord("a", StatusHighRisk)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if reported == nil {
		t.Error("mirror failure was not reported")
	}

	// The store stays authoritative despite the mirror failure.
	records, _ := store.List(ctx, 0)
	if len(records) != 1 {
		t.Errorf("store len = %d, want 1", len(records))
	}
}
