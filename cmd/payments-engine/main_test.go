package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/payments-engine/internal/config"
	"github.com/fairyhunter13/payments-engine/internal/obs"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunBatch_WritesReport(t *testing.T) {
	obs.InitLogger("error")
	path := writeInput(t, `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
`)
	var out bytes.Buffer
	err := runBatch(context.Background(), config.Config{ShardCount: 2}, path, &out)
	require.NoError(t, err)
	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,2.0000,0.0000,2.0000,false\n"
	assert.Equal(t, want, out.String())
}

func TestRunBatch_DisputesAndChargebacks(t *testing.T) {
	obs.InitLogger("error")
	path := writeInput(t, `type,client,tx,amount
deposit,1,1,100
withdrawal,1,2,50
dispute,1,2,
chargeback,1,2,
deposit,1,3,10
deposit,3,4,100
dispute,3,4,
deposit,5,5,100
dispute,5,5,
resolve,5,5,
dispute,5,999,
`)
	var out bytes.Buffer
	require.NoError(t, runBatch(context.Background(), config.Config{ShardCount: 3}, path, &out))
	want := "client,available,held,total,locked\n" +
		"1,100.0000,0.0000,100.0000,true\n" +
		"3,0.0000,100.0000,100.0000,false\n" +
		"5,100.0000,0.0000,100.0000,false\n"
	assert.Equal(t, want, out.String())
}

func TestRunBatch_MissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runBatch(context.Background(), config.Config{ShardCount: 1}, filepath.Join(t.TempDir(), "nope.csv"), &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunBatch_CancelledContext(t *testing.T) {
	obs.InitLogger("error")
	path := writeInput(t, "deposit,1,1,1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := runBatch(ctx, config.Config{ShardCount: 1}, path, &out)
	require.ErrorIs(t, err, context.Canceled)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunBatch_LogsOutcomeCounters(t *testing.T) {
	var logs lockedBuffer
	obs.InitLoggerTo(&logs, "info")
	defer obs.InitLogger("error")

	path := writeInput(t, `type,client,tx,amount
deposit,1,1,5
withdrawal,1,2,10
dispute,1,99,
deposit,2,3,1
`)
	var out bytes.Buffer
	require.NoError(t, runBatch(context.Background(), config.Config{ShardCount: 2}, path, &out))

	var complete map[string]any
	sc := bufio.NewScanner(strings.NewReader(logs.String()))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["msg"] == "run_complete" {
			complete = line
		}
	}
	require.NotNil(t, complete, "run_complete not logged")
	counters, ok := complete["counters"].(map[string]any)
	require.True(t, ok, "counters missing: %v", complete)
	assert.Equal(t, float64(4), counters["transactions_processed_total"])
	assert.Equal(t, float64(2), counters["transactions_rejected_total"])
}
