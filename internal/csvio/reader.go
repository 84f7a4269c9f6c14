// Package csvio reads transaction records from CSV and writes account
// balance reports as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fairyhunter13/payments-engine/internal/model"
	"github.com/fairyhunter13/payments-engine/internal/obs"
)

// Reader streams transactions from CSV rows of the form
// "type, client, tx, amount". Rows that cannot be parsed are skipped.
type Reader struct {
	r       *csv.Reader
	line    int
	skipped int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Read returns the next valid transaction, or io.EOF at the end of input.
func (r *Reader) Read() (model.Transaction, error) {
	for {
		fields, err := r.r.Read()
		if errors.Is(err, io.EOF) {
			return model.Transaction{}, io.EOF
		}
		r.line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				r.skip(err)
				continue
			}
			return model.Transaction{}, fmt.Errorf("read csv line %d: %w", r.line, err)
		}
		if r.line == 1 && isHeader(fields) {
			continue
		}
		tx, err := ParseRecord(fields)
		if err != nil {
			r.skip(err)
			continue
		}
		return tx, nil
	}
}

// Skipped returns the number of rows dropped so far.
func (r *Reader) Skipped() int { return r.skipped }

func (r *Reader) skip(err error) {
	r.skipped++
	obs.Logger.Warn("csv_row_skipped", "line", r.line, "error", err)
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "type")
}

// ParseRecord converts one CSV row into a transaction. The amount column is
// only read for deposits and withdrawals; an amount that does not parse is
// left nil so the ledger rejects the record as malformed.
func ParseRecord(fields []string) (model.Transaction, error) {
	if len(fields) < 3 {
		return model.Transaction{}, fmt.Errorf("expected at least 3 columns, got %d", len(fields))
	}
	kind, ok := model.ParseKind(strings.ToLower(strings.TrimSpace(fields[0])))
	if !ok {
		return model.Transaction{}, fmt.Errorf("unknown transaction type %q", fields[0])
	}
	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parse client: %w", err)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parse tx: %w", err)
	}
	tx := model.Transaction{
		ID:       model.TransactionID(id),
		ClientID: model.ClientID(client),
		Kind:     kind,
	}
	if _, adjustment := model.AdjustmentKindOf(kind); adjustment && len(fields) > 3 {
		if s := strings.TrimSpace(fields[3]); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				tx.Amount = &v
			}
		}
	}
	return tx, nil
}
