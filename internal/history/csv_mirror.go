package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// csvTimeLayout matches the timestamp column of the flat-file export.
const csvTimeLayout = "2006-01-02 15:04:05"

// csvHeader is the fixed export column set. Convenience export only, not
// authoritative state.
var csvHeader = []string{
	"Timestamp", "Sender Bank", "Receiver Bank", "Amount",
	"Currency", "Payment Format", "Risk Score", "Status",
}

// WriteCSV writes records (oldest first) in the flat-file layout.
func WriteCSV(w io.Writer, records []*Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(csvRow(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(rec *Record) []string {
	return []string{
		rec.Timestamp.Format(csvTimeLayout),
		strconv.FormatInt(rec.SenderBank, 10),
		strconv.FormatInt(rec.ReceiverBank, 10),
		FormatAmount(rec.Amount),
		rec.Currency,
		rec.PaymentFormat,
		FormatRiskScore(rec.Probability),
		rec.Status,
	}
}

// FileMirror appends each record to a flat CSV file as it is scored, and
// can reload the file into a store at startup.
type FileMirror struct {
	path string
	mu   sync.Mutex
}

// NewFileMirror creates a mirror writing to path.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Append adds one record to the file, writing the header first if the
// file is new or empty.
func (m *FileMirror) Append(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history mirror: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat history mirror: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := cw.Write(csvRow(rec)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ReadAll parses the mirror file back into records, oldest first. A
// missing file is an empty history, not an error.
func (m *FileMirror) ReadAll() ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history mirror: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse history mirror: %w", err)
	}

	var records []*Record
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue // header
		}
		rec, err := parseCSVRow(row)
		if err != nil {
			return nil, fmt.Errorf("history mirror row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear truncates the mirror file. Called on bulk history clear.
func (m *FileMirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Truncate(m.path, 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate history mirror: %w", err)
	}
	return nil
}

func parseCSVRow(row []string) (*Record, error) {
	if len(row) != len(csvHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}

	ts, err := time.ParseInLocation(csvTimeLayout, row[0], time.Local)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	senderBank, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("sender bank: %w", err)
	}
	receiverBank, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("receiver bank: %w", err)
	}

	amountStr := strings.NewReplacer("$", "", ",", "").Replace(row[3])
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(row[6], "%"), 64)
	if err != nil {
		return nil, fmt.Errorf("risk score: %w", err)
	}

	return &Record{
		Timestamp:     ts,
		SenderBank:    senderBank,
		ReceiverBank:  receiverBank,
		Amount:        amount,
		Currency:      row[4],
		PaymentFormat: row[5],
		Probability:   pct / 100,
		Status:        row[7],
	}, nil
}

// MirroredStore wraps a Store so every append and clear is reflected in
// the flat-file mirror. Mirror write failures do not fail the request —
// the store remains authoritative.
type MirroredStore struct {
	Store
	mirror *FileMirror
	onErr  func(error)
}

// NewMirroredStore wraps inner with a file mirror. onErr receives mirror
// write failures; nil means they are dropped.
func NewMirroredStore(inner Store, mirror *FileMirror, onErr func(error)) *MirroredStore {
	return &MirroredStore{Store: inner, mirror: mirror, onErr: onErr}
}

func (s *MirroredStore) Append(ctx context.Context, rec *Record) error {
	if err := s.Store.Append(ctx, rec); err != nil {
		return err
	}
	if err := s.mirror.Append(rec); err != nil && s.onErr != nil {
		s.onErr(err)
	}
	return nil
}

func (s *MirroredStore) Clear(ctx context.Context) error {
	if err := s.Store.Clear(ctx); err != nil {
		return err
	}
	if err := s.mirror.Clear(); err != nil && s.onErr != nil {
		s.onErr(err)
	}
	return nil
}
