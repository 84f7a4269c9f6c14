// Package shard implements the worker that owns one partition of client
// accounts and applies their transactions in arrival order.
package shard

import (
	"context"
	"sort"

	"github.com/fairyhunter13/payments-engine/internal/ledger"
	"github.com/fairyhunter13/payments-engine/internal/model"
	"github.com/fairyhunter13/payments-engine/internal/obs"
)

// Publisher receives the account state after every processed transaction.
type Publisher interface {
	Publish(seq uint64, snap model.AccountSnapshot)
}

// Processor exclusively owns the accounts of its shard and their resolver.
// It must be driven by a single goroutine.
type Processor struct {
	id       int
	accounts map[model.ClientID]*ledger.Account
	resolver *ledger.Resolver
	pub      Publisher
}

// New creates a Processor for shard id. pub may be nil.
func New(id int, pub Publisher) *Processor {
	return &Processor{
		id:       id,
		accounts: make(map[model.ClientID]*ledger.Account),
		resolver: ledger.NewResolver(),
		pub:      pub,
	}
}

// ID returns the shard index.
func (p *Processor) ID() int { return p.id }

// Run processes transactions from in until it is closed, emitting one outcome
// per transaction. It returns ctx.Err() if ctx is cancelled first.
func (p *Processor) Run(ctx context.Context, in <-chan model.Transaction, emit func(model.Outcome)) error {
	obs.Logger.Debug("shard_started", "shard", p.id)
	processed := 0
	for {
		select {
		case <-ctx.Done():
			obs.Logger.Warn("shard_cancelled", "shard", p.id, "processed", processed)
			return ctx.Err()
		case tx, ok := <-in:
			if !ok {
				obs.Logger.Info("shard_drained", "shard", p.id, "processed", processed, "accounts", len(p.accounts), "active_disputes", p.resolver.ActiveDisputes())
				return nil
			}
			emit(p.Process(tx))
			processed++
		}
	}
}

// Process applies one transaction and reports its outcome. A rejected
// transaction leaves every account and the resolver unchanged.
func (p *Processor) Process(tx model.Transaction) model.Outcome {
	acct, existed := p.accounts[tx.ClientID]
	if !existed {
		acct = ledger.NewAccount(tx.ClientID)
		p.accounts[tx.ClientID] = acct
	}

	var err error
	switch tx.Kind {
	case model.Deposit, model.Withdrawal:
		err = p.resolver.ApplyAdjustment(tx, acct)
	case model.Dispute:
		err = p.resolver.OpenDispute(tx.ID, acct)
	case model.Resolve, model.Chargeback:
		err = p.resolver.CloseDispute(tx, acct)
	default:
		err = ledger.ErrMalformedAdjustmentSource
	}

	if p.pub != nil && (err == nil || !existed) {
		p.pub.Publish(tx.Sequence, acct.Snapshot())
	}
	return model.Outcome{
		TransactionID: tx.ID,
		ClientID:      tx.ClientID,
		Kind:          tx.Kind,
		Sequence:      tx.Sequence,
		Shard:         p.id,
		Err:           err,
	}
}

// account returns the current state of one client's account. Only the
// goroutine driving the processor may call it.
func (p *Processor) account(id model.ClientID) (model.AccountSnapshot, bool) {
	acct, ok := p.accounts[id]
	if !ok {
		return model.AccountSnapshot{}, false
	}
	return acct.Snapshot(), true
}

// Accounts returns every account of the shard sorted by client id.
// Call it only after Run has returned.
func (p *Processor) Accounts() []model.AccountSnapshot {
	out := make([]model.AccountSnapshot, 0, len(p.accounts))
	for _, acct := range p.accounts {
		out = append(out, acct.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}
