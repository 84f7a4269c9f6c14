// Package ledger implements the per-client account state machine and the
// dispute-tracking resolver that drives it.
package ledger

import (
	"math"

	"github.com/fairyhunter13/payments-engine/internal/model"
)

// Account holds the balances of one client.
//
// Total funds are always Available+Held and are never stored. Once Locked is
// set by a chargeback no further operation mutates the account.
type Account struct {
	ClientID  model.ClientID
	Available float64
	Held      float64
	Locked    bool
}

// NewAccount returns an unlocked account with zero balances.
func NewAccount(id model.ClientID) *Account {
	return &Account{ClientID: id}
}

// Total returns available plus held funds.
func (a *Account) Total() float64 { return a.Available + a.Held }

// Snapshot copies the current balances.
func (a *Account) Snapshot() model.AccountSnapshot {
	return model.AccountSnapshot{
		ClientID:  a.ClientID,
		Available: a.Available,
		Held:      a.Held,
		Locked:    a.Locked,
	}
}

// ApplyAdjustment applies a deposit or withdrawal and returns the adjustment
// record for the caller to keep. A failing call leaves the account untouched.
func (a *Account) ApplyAdjustment(tx model.Transaction) (model.Adjustment, error) {
	if err := a.checkLock(); err != nil {
		return model.Adjustment{}, err
	}
	kind, ok := model.AdjustmentKindOf(tx.Kind)
	if !ok || tx.Amount == nil || !validAmount(*tx.Amount) {
		return model.Adjustment{}, ErrMalformedAdjustmentSource
	}
	amount := *tx.Amount
	switch kind {
	case model.AdjustDeposit:
		a.Available += amount
	case model.AdjustWithdrawal:
		next := a.Available - amount
		if next < 0 {
			return model.Adjustment{}, ErrInsufficientFunds
		}
		a.Available = next
	}
	return model.Adjustment{
		TransactionID: tx.ID,
		ClientID:      tx.ClientID,
		Kind:          kind,
		Amount:        amount,
	}, nil
}

// OpenDispute contests a previously applied adjustment.
//
// A disputed deposit moves its amount from available to held. A disputed
// withdrawal leaves balances alone: the funds already left the account, so
// only a later chargeback reinstates them.
func (a *Account) OpenDispute(adj model.Adjustment) (model.DisputeClaim, error) {
	if err := a.checkLock(); err != nil {
		return model.DisputeClaim{}, err
	}
	if adj.ClientID != a.ClientID {
		return model.DisputeClaim{}, ErrCrossClientReference
	}
	switch adj.Kind {
	case model.AdjustDeposit:
		a.Available -= adj.Amount
		a.Held += adj.Amount
	case model.AdjustWithdrawal:
	default:
		return model.DisputeClaim{}, ErrMalformedAdjustmentSource
	}
	return model.DisputeClaim{
		ClientID: adj.ClientID,
		Kind:     adj.Kind,
		Amount:   adj.Amount,
	}, nil
}

// ResolveDispute closes claim with the resolve or chargeback in tx.
// Any chargeback locks the account.
func (a *Account) ResolveDispute(claim model.DisputeClaim, tx model.Transaction) error {
	if err := a.checkLock(); err != nil {
		return err
	}
	if claim.ClientID != tx.ClientID {
		return ErrCrossClientReference
	}
	resolution, ok := model.ResolutionKindOf(tx.Kind)
	if !ok {
		return ErrMalformedAdjustmentSource
	}
	amount := claim.Amount
	switch {
	case claim.Kind == model.AdjustDeposit && resolution == model.ResolveClaim:
		a.Available += amount
		a.Held -= amount
	case claim.Kind == model.AdjustDeposit && resolution == model.ChargebackClaim:
		if a.Held+a.Available < amount {
			return ErrInsufficientFunds
		}
		a.Held -= amount
		a.Locked = true
	case claim.Kind == model.AdjustWithdrawal && resolution == model.ChargebackClaim:
		a.Available += amount
		a.Locked = true
	case claim.Kind == model.AdjustWithdrawal && resolution == model.ResolveClaim:
		// nothing was held
	default:
		return ErrMalformedAdjustmentSource
	}
	return nil
}

func (a *Account) checkLock() error {
	if a.Locked {
		return ErrAccountLocked
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
