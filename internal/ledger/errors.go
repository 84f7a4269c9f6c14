package ledger

// ErrorKind is the closed set of reasons a transaction can be rejected.
// Values are comparable with errors.Is and carry no message allocation.
type ErrorKind uint8

const (
	ErrAccountLocked ErrorKind = iota + 1
	ErrInsufficientFunds
	ErrCrossClientReference
	ErrTransactionNotFound
	ErrTransactionAlreadyUnderDispute
	ErrTransactionNotUnderDispute
	ErrMalformedAdjustmentSource
)

var errorText = [...]string{
	ErrAccountLocked:                  "account locked",
	ErrInsufficientFunds:              "insufficient funds",
	ErrCrossClientReference:           "transaction references a different client",
	ErrTransactionNotFound:            "transaction not found",
	ErrTransactionAlreadyUnderDispute: "transaction already under dispute",
	ErrTransactionNotUnderDispute:     "transaction not under dispute",
	ErrMalformedAdjustmentSource:      "malformed adjustment source",
}

var errorCode = [...]string{
	ErrAccountLocked:                  "account_locked",
	ErrInsufficientFunds:              "insufficient_funds",
	ErrCrossClientReference:           "cross_client_reference",
	ErrTransactionNotFound:            "transaction_not_found",
	ErrTransactionAlreadyUnderDispute: "transaction_already_under_dispute",
	ErrTransactionNotUnderDispute:     "transaction_not_under_dispute",
	ErrMalformedAdjustmentSource:      "malformed_adjustment_source",
}

func (e ErrorKind) Error() string {
	if int(e) < len(errorText) && errorText[e] != "" {
		return errorText[e]
	}
	return "unknown ledger error"
}

// Code is a stable snake_case identifier used in logs, metrics and API payloads.
func (e ErrorKind) Code() string {
	if int(e) < len(errorCode) && errorCode[e] != "" {
		return errorCode[e]
	}
	return "unknown"
}
