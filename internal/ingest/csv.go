// Package ingest validates labeled spin records before they reach the store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

// RowError reports the first malformed row of an input.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadCSV parses rows of "s,b1,...,b9" or "b1,...,b9". Cells may be symbol
// codes or names. A header row is skipped. Rows without a sequence column are
// numbered from 1 in file order.
func ReadCSV(r io.Reader) ([]slot.Outcome, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []slot.Outcome
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		if row == 1 && isHeader(rec) {
			continue
		}
		o, err := parseRecord(rec, int64(len(out)+1))
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		out = append(out, o)
	}
	return out, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	return first == "s" || first == "seq" || first == "b1"
}

func parseRecord(rec []string, next int64) (slot.Outcome, error) {
	seq := next
	switch len(rec) {
	case slot.GridSize:
	case slot.GridSize + 1:
		v, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return slot.Outcome{}, fmt.Errorf("bad sequence %q: %w", rec[0], err)
		}
		seq = v
		rec = rec[1:]
	default:
		return slot.Outcome{}, fmt.Errorf("%w: want %d or %d fields, got %d",
			slot.ErrMalformedOutcome, slot.GridSize, slot.GridSize+1, len(rec))
	}

	cells := make([]int, slot.GridSize)
	for i, field := range rec {
		field = strings.TrimSpace(field)
		if n, err := strconv.Atoi(field); err == nil {
			cells[i] = n
			continue
		}
		s, err := slot.ParseSymbol(field)
		if err != nil {
			return slot.Outcome{}, fmt.Errorf("%w: cell b%d: %v", slot.ErrMalformedOutcome, i+1, err)
		}
		cells[i] = int(s)
	}
	return slot.NewOutcome(seq, cells)
}

// Importer loads CSV spin records into a store.
type Importer struct {
	db     store.DB
	logger *zap.Logger
}

// NewImporter creates an importer. A nil logger disables logging.
func NewImporter(db store.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, logger: logger}
}

// Import validates the whole input before saving anything.
func (im *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	outcomes, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	if err := im.db.SaveOutcomes(ctx, outcomes); err != nil {
		return 0, err
	}
	im.logger.Info("imported spins", zap.Int("count", len(outcomes)))
	return len(outcomes), nil
}
