package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/payments-engine/internal/model"
)

func TestResolver_DisputeUnknownTransaction(t *testing.T) {
	r := NewResolver()
	a := &Account{ClientID: 1, Available: 100}

	require.ErrorIs(t, r.OpenDispute(999, a), ErrTransactionNotFound)
	assert.Equal(t, Account{ClientID: 1, Available: 100}, *a)
	assert.Zero(t, r.ActiveDisputes())
}

func TestResolver_DoubleDispute(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 100), a))
	require.NoError(t, r.OpenDispute(1, a))
	require.ErrorIs(t, r.OpenDispute(1, a), ErrTransactionAlreadyUnderDispute)
	assert.Equal(t, 0.0, a.Available)
	assert.Equal(t, 100.0, a.Held)
}

func TestResolver_CloseWithoutDispute(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 100), a))
	require.ErrorIs(t, r.CloseDispute(ref(model.Resolve, 1, 1), a), ErrTransactionNotUnderDispute)
	require.ErrorIs(t, r.CloseDispute(ref(model.Chargeback, 1, 1), a), ErrTransactionNotUnderDispute)
	assert.False(t, a.Locked)
	assert.Equal(t, 100.0, a.Available)
}

func TestResolver_RejectedAdjustmentIsNotLogged(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.ErrorIs(t, r.ApplyAdjustment(withdrawal(1, 1, 10), a), ErrInsufficientFunds)
	_, ok := r.adjustment(1)
	assert.False(t, ok)
	require.ErrorIs(t, r.OpenDispute(1, a), ErrTransactionNotFound)
}

func TestResolver_DepositDisputeResolveRoundTrip(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 100), a))
	before := *a

	require.NoError(t, r.OpenDispute(1, a))
	assert.Equal(t, 0.0, a.Available)
	assert.Equal(t, 100.0, a.Held)
	assert.True(t, r.underDispute(1))

	require.NoError(t, r.CloseDispute(ref(model.Resolve, 1, 1), a))
	assert.Equal(t, before, *a)
	assert.False(t, r.underDispute(1))
	assert.False(t, a.Locked)
}

func TestResolver_WithdrawalChargebackReinstatesFunds(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 100), a))
	require.NoError(t, r.ApplyAdjustment(withdrawal(2, 1, 50), a))
	assert.Equal(t, 50.0, a.Available)

	require.NoError(t, r.OpenDispute(2, a))
	assert.Equal(t, 50.0, a.Available)
	assert.Zero(t, a.Held)
	assert.True(t, r.underDispute(2))

	require.NoError(t, r.CloseDispute(ref(model.Chargeback, 2, 1), a))
	assert.Equal(t, 100.0, a.Available)
	assert.True(t, a.Locked)

	require.ErrorIs(t, r.ApplyAdjustment(deposit(3, 1, 1), a), ErrAccountLocked)
	require.ErrorIs(t, r.OpenDispute(1, a), ErrAccountLocked)
	assert.Equal(t, 100.0, a.Available)
}

func TestResolver_ChargebackWaitsForFunds(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 100), a))
	require.NoError(t, r.ApplyAdjustment(withdrawal(2, 1, 30), a))

	// disputes open regardless of the current balance
	require.NoError(t, r.OpenDispute(1, a))
	assert.Equal(t, -30.0, a.Available)
	assert.Equal(t, 100.0, a.Held)

	require.ErrorIs(t, r.CloseDispute(ref(model.Chargeback, 1, 1), a), ErrInsufficientFunds)
	assert.False(t, a.Locked)
	assert.True(t, r.underDispute(1))

	require.NoError(t, r.ApplyAdjustment(deposit(3, 1, 60), a))
	require.NoError(t, r.CloseDispute(ref(model.Chargeback, 1, 1), a))
	assert.Equal(t, 30.0, a.Available)
	assert.Zero(t, a.Held)
	assert.Equal(t, 30.0, a.Total())
	assert.True(t, a.Locked)
}

func TestResolver_RedisputeAfterResolve(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 10), a))
	require.NoError(t, r.OpenDispute(1, a))
	require.NoError(t, r.CloseDispute(ref(model.Resolve, 1, 1), a))
	require.NoError(t, r.OpenDispute(1, a))
	assert.Equal(t, 10.0, a.Held)
}

func TestResolver_CrossClientDispute(t *testing.T) {
	r := NewResolver()
	owner := NewAccount(1)
	other := NewAccount(3)

	require.NoError(t, r.ApplyAdjustment(deposit(1, 1, 10), owner))
	require.ErrorIs(t, r.OpenDispute(1, other), ErrCrossClientReference)
	assert.False(t, r.underDispute(1))

	require.NoError(t, r.OpenDispute(1, owner))
	require.ErrorIs(t, r.CloseDispute(ref(model.Resolve, 1, 3), other), ErrCrossClientReference)
	assert.True(t, r.underDispute(1))
	assert.Equal(t, 10.0, owner.Held)
}

func TestResolver_TotalTracksSignedAdjustments(t *testing.T) {
	r := NewResolver()
	a := NewAccount(1)
	ops := []model.Transaction{
		deposit(1, 1, 10.25), deposit(2, 1, 3.5), withdrawal(3, 1, 7.125),
		withdrawal(4, 1, 100), deposit(5, 1, 0.0001), withdrawal(6, 1, 6.6251),
	}
	var sum float64
	for _, tx := range ops {
		if err := r.ApplyAdjustment(tx, a); err != nil {
			continue
		}
		if tx.Kind == model.Deposit {
			sum += *tx.Amount
		} else {
			sum -= *tx.Amount
		}
	}
	assert.InDelta(t, sum, a.Total(), 1e-9)
}
