package payment

import (
	"context"
)

// Transaction is the gateway's view of one payment attempt. Status values
// are gateway specific; Paid reduces them to the one bit the order logic
// cares about.
type Transaction struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}

// Paid reports whether the gateway considers this transaction settled.
func (t *Transaction) Paid() bool {
	return t != nil && (t.Status == "succeeded" || t.Status == "paid")
}

// CreateParams carries what the order core needs to open a transaction.
// Metadata always includes the order identifier so gateway callbacks can
// be routed back to the right order.
type CreateParams struct {
	Amount      float64
	Description string
	Metadata    map[string]string
}

// Gateway is the minimal client surface the order logic consumes.
// Implementations own their timeout policy; lookup errors must come back
// as errors, not panics, so callers can degrade to an unknown status.
type Gateway interface {
	CreatePayment(ctx context.Context, params CreateParams) (*Transaction, error)
	GetPayment(ctx context.Context, id string) (*Transaction, error)
}

// State classifies a payment lookup.
type State int

const (
	// StateUnknown means no transaction exists yet, or the gateway could
	// not be reached. Cause carries the lookup error when there is one.
	StateUnknown State = iota
	StateUnpaid
	StatePaid
)

func (s State) String() string {
	switch s {
	case StatePaid:
		return "paid"
	case StateUnpaid:
		return "unpaid"
	default:
		return "unknown"
	}
}

// Result is the outcome of a payment status lookup. A failed gateway call
// is an explicit Unknown result with its cause attached, never a
// propagated error: order pages must stay renderable through gateway
// outages.
type Result struct {
	State       State
	Transaction *Transaction
	Cause       error
}

func (r Result) Paid() bool {
	return r.State == StatePaid
}
