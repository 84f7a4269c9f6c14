// Package pipeline wires the router, the per-shard queues and the shard
// processors into one share-nothing processing pipeline.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/payments-engine/internal/config"
	"github.com/fairyhunter13/payments-engine/internal/metrics"
	"github.com/fairyhunter13/payments-engine/internal/model"
	"github.com/fairyhunter13/payments-engine/internal/obs"
	"github.com/fairyhunter13/payments-engine/internal/queue"
	"github.com/fairyhunter13/payments-engine/internal/shard"
	"github.com/fairyhunter13/payments-engine/internal/store"
)

// Receipt acknowledges a submitted transaction.
type Receipt struct {
	Sequence uint64
	Shard    int
}

// Stats is a point-in-time view of pipeline counters.
type Stats struct {
	Shards       int
	LastSequence uint64
	Submitted    uint64
	Completed    uint64
	Rejected     uint64
	Backlog      []int
}

// Pipeline routes transactions to shard processors and merges their outcomes.
//
// Each shard has an inbound and an outcome queue and is driven by its own
// goroutine; shards never share state. Callers must drain Outcomes until it
// is closed, otherwise Wait blocks.
type Pipeline struct {
	cfg    config.Config
	router Router
	st     *store.Store
	rec    *metrics.Recorder

	submitMu sync.Mutex
	seq      queue.Sequencer

	inbound  []*queue.Queue[model.Transaction]
	outbound []*queue.Queue[model.Outcome]
	procs    []*shard.Processor
	outcomes chan model.Outcome

	startOnce sync.Once
	closeOnce sync.Once
	closing   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	err       error

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
}

// New builds a Pipeline with cfg.ShardCount shards publishing into st.
// st and rec may be nil.
func New(cfg config.Config, st *store.Store, rec *metrics.Recorder) *Pipeline {
	cfg = cfg.Normalize()
	m := &Pipeline{
		cfg:      cfg,
		router:   NewRouter(cfg.ShardCount),
		st:       st,
		rec:      rec,
		outcomes: make(chan model.Outcome, cfg.QueueBuffer),
		done:     make(chan struct{}),
	}
	var pub shard.Publisher
	if st != nil {
		pub = st
	}
	for i := 0; i < m.router.Shards(); i++ {
		m.inbound = append(m.inbound, queue.New[model.Transaction](fmt.Sprintf("shard-%d-in", i), cfg.QueueBuffer))
		m.outbound = append(m.outbound, queue.New[model.Outcome](fmt.Sprintf("shard-%d-out", i), cfg.QueueBuffer))
		m.procs = append(m.procs, shard.New(i, pub))
	}
	return m
}

// Start launches the shard processors and outcome forwarders.
func (m *Pipeline) Start(parent context.Context) {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		m.cancel = cancel
		g, gctx := errgroup.WithContext(ctx)
		for i := range m.procs {
			in, out, proc := m.inbound[i], m.outbound[i], m.procs[i]
			in.Start(gctx, m.cfg.QueueHighWatermark)
			out.Start(gctx, m.cfg.QueueHighWatermark)
			g.Go(func() error {
				defer out.CloseIntake()
				return proc.Run(gctx, in.Out(), func(o model.Outcome) {
					in.MarkProcessed()
					out.Enqueue(o)
				})
			})
			g.Go(func() error { return m.forward(gctx, out) })
		}
		go func() {
			m.err = g.Wait()
			close(m.outcomes)
			close(m.done)
			obs.Logger.Info("pipeline_stopped", "submitted", m.submitted.Load(), "completed", m.completed.Load(), "rejected", m.rejected.Load())
		}()
		obs.Logger.Info("pipeline_started", "shards", m.router.Shards())
	})
}

// forward moves one shard's outcomes to the merged outcome channel.
func (m *Pipeline) forward(ctx context.Context, out *queue.Queue[model.Outcome]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o, ok := <-out.Out():
			if !ok {
				return nil
			}
			out.MarkProcessed()
			m.rec.Record(ctx, o)
			if !o.OK() {
				m.rejected.Add(1)
			}
			m.completed.Add(1)
			select {
			case m.outcomes <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Submit stamps tx with the next sequence number and queues it on its shard.
// It returns false once the pipeline is closing.
func (m *Pipeline) Submit(tx model.Transaction) (Receipt, bool) {
	m.submitMu.Lock()
	defer m.submitMu.Unlock()
	if m.closing.Load() {
		return Receipt{}, false
	}
	idx := m.router.Route(tx.ClientID)
	tx.Sequence = m.seq.Next()
	if !m.inbound[idx].Enqueue(tx) {
		return Receipt{}, false
	}
	m.submitted.Add(1)
	return Receipt{Sequence: tx.Sequence, Shard: idx}, true
}

// Outcomes is the merged outcome stream. It is closed after every shard has
// exited.
func (m *Pipeline) Outcomes() <-chan model.Outcome { return m.outcomes }

// Close stops intake. Queued transactions are still processed.
func (m *Pipeline) Close() {
	m.closeOnce.Do(func() {
		m.submitMu.Lock()
		m.closing.Store(true)
		m.submitMu.Unlock()
		for _, in := range m.inbound {
			in.CloseIntake()
		}
		obs.Logger.Info("pipeline_intake_closed", "submitted", m.submitted.Load())
	})
}

// IsClosing reports whether Close has been called.
func (m *Pipeline) IsClosing() bool { return m.closing.Load() }

// Stop rejects further submissions and cancels every shard without draining.
func (m *Pipeline) Stop() {
	m.submitMu.Lock()
	m.closing.Store(true)
	m.submitMu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Wait blocks until every shard has exited and returns the final account
// state of all shards sorted by client id.
func (m *Pipeline) Wait() ([]model.AccountSnapshot, error) {
	<-m.done
	var all []model.AccountSnapshot
	for _, p := range m.procs {
		all = append(all, p.Accounts()...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ClientID < all[j].ClientID })
	return all, m.err
}

// DrainUntil closes intake and blocks until every shard has drained or ctx is
// done.
func (m *Pipeline) DrainUntil(ctx context.Context) bool {
	m.Close()
	select {
	case <-m.done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Snapshot returns the latest published state of one account.
func (m *Pipeline) Snapshot(id model.ClientID) (model.AccountSnapshot, bool) {
	if m.st == nil {
		return model.AccountSnapshot{}, false
	}
	return m.st.Get(id)
}

// Accounts returns the latest published state of every account.
func (m *Pipeline) Accounts() []model.AccountSnapshot {
	if m.st == nil {
		return nil
	}
	return m.st.All()
}

// Recorder returns the outcome recorder, which may be nil.
func (m *Pipeline) Recorder() *metrics.Recorder { return m.rec }

// Router returns the routing function used by the pipeline.
func (m *Pipeline) Router() Router { return m.router }

// Stats returns counters and per-shard backlog.
func (m *Pipeline) Stats() Stats {
	s := Stats{
		Shards:       m.router.Shards(),
		LastSequence: m.seq.Last(),
		Submitted:    m.submitted.Load(),
		Completed:    m.completed.Load(),
		Rejected:     m.rejected.Load(),
	}
	for _, in := range m.inbound {
		s.Backlog = append(s.Backlog, in.QueueDepth())
	}
	return s
}

// QueueDepth returns the number of submitted transactions not yet processed.
func (m *Pipeline) QueueDepth() int {
	n := 0
	for _, in := range m.inbound {
		n += in.QueueDepth()
	}
	return n
}
