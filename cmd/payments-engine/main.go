// Package main runs the payments engine, either over a CSV file or as an
// HTTP service.
//
//	payments-engine transactions.csv > accounts.csv
//	payments-engine -serve -addr :8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/payments-engine/internal/config"
	"github.com/fairyhunter13/payments-engine/internal/csvio"
	httpapi "github.com/fairyhunter13/payments-engine/internal/http"
	"github.com/fairyhunter13/payments-engine/internal/metrics"
	"github.com/fairyhunter13/payments-engine/internal/model"
	"github.com/fairyhunter13/payments-engine/internal/obs"
	"github.com/fairyhunter13/payments-engine/internal/pipeline"
	"github.com/fairyhunter13/payments-engine/internal/store"
)

func main() {
	cfg := config.Load()
	shards := flag.Int("shards", cfg.ShardCount, "number of shard processors")
	serveMode := flag.Bool("serve", false, "run the HTTP transport instead of reading a CSV file")
	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address in -serve mode")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] transactions.csv\n       %s -serve [flags]\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.ShardCount = *shards
	cfg.HTTPAddr = *addr
	cfg.LogLevel = *logLevel
	cfg = cfg.Normalize()

	obs.InitLogger(cfg.LogLevel)
	obs.Logger = obs.Logger.With("run_id", uuid.NewString())

	if *serveMode {
		serve(cfg)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := runBatch(ctx, cfg, flag.Arg(0), os.Stdout); err != nil {
		obs.Logger.Error("run_failed", "error", err)
		os.Exit(1)
	}
}

// runBatch streams a CSV file through the pipeline and writes the final
// balances to out.
func runBatch(ctx context.Context, cfg config.Config, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rec, err := metrics.NewSDKRecorder()
	if err != nil {
		return err
	}
	defer func() { _ = rec.Shutdown(context.Background()) }()
	p := pipeline.New(cfg, store.New(), rec)
	p.Start(ctx)
	consumed := consumeOutcomes(p.Outcomes())

	r := csvio.NewReader(f)
	var readErr error
	for ctx.Err() == nil {
		tx, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if _, ok := p.Submit(tx); !ok {
			break
		}
	}
	if readErr != nil {
		p.Stop()
	} else {
		p.Close()
	}

	accts, err := p.Wait()
	<-consumed
	if readErr != nil {
		return readErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	st := p.Stats()
	counters, err := rec.Totals(ctx)
	if err != nil {
		obs.Logger.Warn("metrics_collect_error", "error", err)
	}
	obs.Logger.Info("run_complete",
		"transactions", st.Submitted,
		"rejected", st.Rejected,
		"rows_skipped", r.Skipped(),
		"accounts", len(accts),
		"counters", counters,
	)
	return csvio.WriteAccounts(out, accts)
}

// consumeOutcomes logs every rejected transaction. The returned channel is
// closed once the outcome stream ends.
func consumeOutcomes(outcomes <-chan model.Outcome) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range outcomes {
			if o.OK() {
				obs.Logger.Debug("transaction_applied", "tx_id", o.TransactionID, "client_id", o.ClientID, "kind", o.Kind.String(), "shard", o.Shard)
				continue
			}
			obs.Logger.Warn("transaction_rejected",
				"tx_id", o.TransactionID,
				"client_id", o.ClientID,
				"kind", o.Kind.String(),
				"shard", o.Shard,
				"reason", metrics.Reason(o.Err),
				"error", o.Err,
			)
		}
	}()
	return done
}

func serve(cfg config.Config) {
	obs.Logger.Info("service_starting", "shards", cfg.ShardCount)

	rec, err := metrics.NewSDKRecorder()
	if err != nil {
		obs.Logger.Error("metrics_init_error", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rec.Shutdown(context.Background()) }()
	p := pipeline.New(cfg, store.New(), rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	consumed := consumeOutcomes(p.Outcomes())

	app := httpapi.NewApp(cfg, p)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "queue_depth", p.QueueDepth())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := p.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
		p.Stop()
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}
	<-consumed

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	counters, err := rec.Totals(context.Background())
	if err != nil {
		obs.Logger.Warn("metrics_collect_error", "error", err)
	}
	obs.Logger.Info("service_stopped", "accounts", len(p.Accounts()), "counters", counters)
}
