package csvio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/payments-engine/internal/model"
)

func readAll(t *testing.T, in string) ([]model.Transaction, *Reader) {
	t.Helper()
	r := NewReader(strings.NewReader(in))
	var out []model.Transaction
	for {
		tx, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, r
		}
		require.NoError(t, err)
		out = append(out, tx)
	}
}

func TestReader_ParsesRowsAndSkipsBadOnes(t *testing.T) {
	in := `type, client, tx, amount
deposit, 1, 1, 1.0
deposit,2,2,2.5
withdrawal, 1, 4, 1.5
dispute, 1, 1,
resolve, 1, 1
chargeback, 2, 2,
bogus, 1, 9, 1.0
deposit, x, 10, 1.0
deposit, 70000, 11, 1.0
withdrawal, 3, 12, abc

Deposit, 3, 13, 0.0001
`
	txs, r := readAll(t, in)
	require.Len(t, txs, 8)
	assert.Equal(t, 3, r.Skipped())

	assert.Equal(t, model.Transaction{ID: 1, ClientID: 1, Kind: model.Deposit, Amount: txs[0].Amount}, txs[0])
	require.NotNil(t, txs[0].Amount)
	assert.Equal(t, 1.0, *txs[0].Amount)
	assert.Equal(t, 2.5, *txs[1].Amount)
	assert.Equal(t, model.Withdrawal, txs[2].Kind)
	assert.Equal(t, model.Dispute, txs[3].Kind)
	assert.Nil(t, txs[3].Amount)
	assert.Equal(t, model.Resolve, txs[4].Kind)
	assert.Equal(t, model.Chargeback, txs[5].Kind)
	assert.Equal(t, model.Withdrawal, txs[6].Kind)
	assert.Nil(t, txs[6].Amount)
	assert.Equal(t, model.ClientID(3), txs[7].ClientID)
	assert.Equal(t, 0.0001, *txs[7].Amount)
}

func TestReader_NoHeader(t *testing.T) {
	txs, r := readAll(t, "deposit,1,1,5\n")
	require.Len(t, txs, 1)
	assert.Zero(t, r.Skipped())
}

func TestParseRecord_AmountIgnoredForReferences(t *testing.T) {
	tx, err := ParseRecord([]string{"dispute", "1", "7", "40.0"})
	require.NoError(t, err)
	assert.Nil(t, tx.Amount)
	assert.Equal(t, model.TransactionID(7), tx.ID)
}

func TestParseRecord_MissingAmountIsLeftToTheLedger(t *testing.T) {
	tx, err := ParseRecord([]string{"deposit", "1", "7"})
	require.NoError(t, err)
	assert.Nil(t, tx.Amount)
}

func TestParseRecord_UnparsableAmountIsLeftToTheLedger(t *testing.T) {
	tx, err := ParseRecord([]string{"withdrawal", "2", "8", "1.2.3"})
	require.NoError(t, err)
	assert.Equal(t, model.Withdrawal, tx.Kind)
	assert.Equal(t, model.ClientID(2), tx.ClientID)
	assert.Nil(t, tx.Amount)
}

func TestParseRecord_TooFewColumns(t *testing.T) {
	_, err := ParseRecord([]string{"deposit", "1"})
	require.Error(t, err)
}

func TestWriteAccounts(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAccounts(&buf, []model.AccountSnapshot{
		{ClientID: 1, Available: 1.5, Held: 0},
		{ClientID: 2, Available: 2, Held: 0.12346, Locked: true},
		{ClientID: 3, Available: -30, Held: 100},
	})
	require.NoError(t, err)
	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,2.0000,0.1235,2.1235,true\n" +
		"3,-30.0000,100.0000,70.0000,false\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.0000", FormatAmount(0))
	assert.Equal(t, "100.0000", FormatAmount(100))
	assert.Equal(t, "0.0001", FormatAmount(0.0001))
}
