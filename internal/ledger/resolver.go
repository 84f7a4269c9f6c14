package ledger

import "github.com/fairyhunter13/payments-engine/internal/model"

// Resolver keeps the applied adjustments and active disputes of one shard and
// coordinates them with account mutations. It is not safe for concurrent use;
// a shard drives it from a single goroutine.
type Resolver struct {
	log      map[model.TransactionID]model.Adjustment
	disputes map[model.TransactionID]model.DisputeClaim
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		log:      make(map[model.TransactionID]model.Adjustment),
		disputes: make(map[model.TransactionID]model.DisputeClaim),
	}
}

// ApplyAdjustment applies a deposit or withdrawal to acct and records it.
// Nothing is recorded when the account rejects it.
func (r *Resolver) ApplyAdjustment(tx model.Transaction, acct *Account) error {
	adj, err := acct.ApplyAdjustment(tx)
	if err != nil {
		return err
	}
	r.log[adj.TransactionID] = adj
	return nil
}

// OpenDispute opens a dispute against the adjustment recorded under id.
func (r *Resolver) OpenDispute(id model.TransactionID, acct *Account) error {
	adj, ok := r.log[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if _, open := r.disputes[id]; open {
		return ErrTransactionAlreadyUnderDispute
	}
	claim, err := acct.OpenDispute(adj)
	if err != nil {
		return err
	}
	r.disputes[id] = claim
	return nil
}

// CloseDispute settles the dispute referenced by tx.ID with a resolve or
// chargeback. A closed transaction may be disputed again while the account
// stays unlocked.
func (r *Resolver) CloseDispute(tx model.Transaction, acct *Account) error {
	claim, ok := r.disputes[tx.ID]
	if !ok {
		return ErrTransactionNotUnderDispute
	}
	if err := acct.ResolveDispute(claim, tx); err != nil {
		return err
	}
	delete(r.disputes, tx.ID)
	return nil
}

// adjustment returns the recorded adjustment for id.
func (r *Resolver) adjustment(id model.TransactionID) (model.Adjustment, bool) {
	adj, ok := r.log[id]
	return adj, ok
}

// underDispute reports whether id has an active claim.
func (r *Resolver) underDispute(id model.TransactionID) bool {
	_, ok := r.disputes[id]
	return ok
}

// ActiveDisputes returns the number of open claims.
func (r *Resolver) ActiveDisputes() int { return len(r.disputes) }
