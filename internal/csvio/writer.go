package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/payments-engine/internal/model"
)

// AmountPlaces is the number of decimal places used when rendering balances.
const AmountPlaces = 4

var reportHeader = []string{"client", "available", "held", "total", "locked"}

// FormatAmount renders v with exactly AmountPlaces decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(AmountPlaces)
}

// WriteAccounts writes a header and one row per account, in the given order.
func WriteAccounts(w io.Writer, accts []model.AccountSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	row := make([]string, len(reportHeader))
	for _, a := range accts {
		row[0] = strconv.FormatUint(uint64(a.ClientID), 10)
		row[1] = FormatAmount(a.Available)
		row[2] = FormatAmount(a.Held)
		row[3] = FormatAmount(a.Total())
		row[4] = strconv.FormatBool(a.Locked)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write account %d: %w", a.ClientID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
