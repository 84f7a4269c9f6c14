// Package model defines domain types used by the engine.
package model

import "fmt"

// ClientID identifies a client account. It is also the shard key.
type ClientID uint16

// TransactionID is unique across the whole input stream.
type TransactionID uint32

// Kind is the transaction type of an incoming record.
type Kind uint8

const (
	Deposit Kind = iota + 1
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

var kindNames = map[Kind]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a lowercase transaction type name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts the lowercase kind names.
func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown transaction type %q", string(b))
	}
	*k = v
	return nil
}

// Transaction is one parsed transaction record.
//
// Amount is set for deposits and withdrawals only; disputes, resolves and
// chargebacks reference an earlier transaction through ID.
type Transaction struct {
	ID       TransactionID `json:"tx"`
	ClientID ClientID      `json:"client"`
	Kind     Kind          `json:"type"`
	Amount   *float64      `json:"amount,omitempty"`
	Sequence uint64        `json:"-"`
}

// AdjustmentKind classifies balance-changing transactions.
type AdjustmentKind uint8

const (
	AdjustDeposit AdjustmentKind = iota + 1
	AdjustWithdrawal
)

func (k AdjustmentKind) String() string {
	switch k {
	case AdjustDeposit:
		return "deposit"
	case AdjustWithdrawal:
		return "withdrawal"
	}
	return "unknown"
}

// AdjustmentKindOf reports the adjustment category of k, if any.
func AdjustmentKindOf(k Kind) (AdjustmentKind, bool) {
	switch k {
	case Deposit:
		return AdjustDeposit, true
	case Withdrawal:
		return AdjustWithdrawal, true
	}
	return 0, false
}

// ResolutionKind classifies dispute-closing transactions.
type ResolutionKind uint8

const (
	ResolveClaim ResolutionKind = iota + 1
	ChargebackClaim
)

// ResolutionKindOf reports the resolution category of k, if any.
func ResolutionKindOf(k Kind) (ResolutionKind, bool) {
	switch k {
	case Resolve:
		return ResolveClaim, true
	case Chargeback:
		return ChargebackClaim, true
	}
	return 0, false
}

// Adjustment is the immutable record of an applied deposit or withdrawal.
type Adjustment struct {
	TransactionID TransactionID
	ClientID      ClientID
	Kind          AdjustmentKind
	Amount        float64
}

// DisputeClaim is an open dispute against an adjustment.
type DisputeClaim struct {
	ClientID ClientID
	Kind     AdjustmentKind
	Amount   float64
}

// Outcome is the processing result of one transaction. Err is nil on success.
type Outcome struct {
	TransactionID TransactionID
	ClientID      ClientID
	Kind          Kind
	Sequence      uint64
	Shard         int
	Err           error
}

// OK reports whether the transaction was applied.
func (o Outcome) OK() bool { return o.Err == nil }

// AccountSnapshot is a point-in-time copy of one account's balances.
type AccountSnapshot struct {
	ClientID  ClientID
	Available float64
	Held      float64
	Locked    bool
}

// Total is available plus held funds.
func (s AccountSnapshot) Total() float64 { return s.Available + s.Held }
