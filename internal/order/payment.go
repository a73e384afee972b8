package order

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/models"
	"ms-registration/internal/payment"
)

// CreatePayment opens a gateway transaction for the order total and
// stores the returned transaction id. Re-creation is forbidden once an
// id exists; the redis lock covers the check-then-act window against
// concurrent checkout requests. Gateway failures here propagate: a
// checkout attempt that cannot open a transaction has failed.
func (s *OrderService) CreatePayment(ctx context.Context, identifier string) (*payment.Transaction, error) {
	o, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, err
	}

	locked, err := s.Lock.LockPayment(o.Identifier)
	if err != nil {
		return nil, fmt.Errorf("payment lock error: %w", err)
	}
	if !locked {
		return nil, ErrPaymentInProgress
	}
	defer func() {
		if err := s.Lock.UnlockPayment(o.Identifier); err != nil {
			s.logger.Error("PAYMENT", fmt.Sprintf("Failed to release payment lock for %s: %v", o.Identifier, err))
		}
	}()

	if o.PaymentID != "" {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Order %s already has payment %s", o.Identifier, o.PaymentID))
		return nil, ErrPaymentExists
	}

	valid, err := s.AllValid(ctx, o)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, ErrOrderInvalid
	}

	tx, err := s.Gateway.CreatePayment(ctx, payment.CreateParams{
		Amount:      o.SumTotal(s.Table),
		Description: s.Description,
		Metadata:    map[string]string{"identifier": o.Identifier},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment for order %s: %w", o.Identifier, err)
	}

	o.PaymentID = tx.ID
	if err := s.DB.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to store payment id for order %s: %w", o.Identifier, err)
	}

	s.logger.LogPayment("CREATE", o.Identifier, fmt.Sprintf("payment %s created for %.2f", tx.ID, tx.Amount))
	return tx, nil
}

// PaymentStatus looks the order's transaction up at the gateway. No
// stored id means unknown; so does a failed lookup, with the cause kept
// on the result instead of propagated, so order pages render through
// gateway outages.
func (s *OrderService) PaymentStatus(ctx context.Context, o *models.Order) payment.Result {
	if o.PaymentID == "" {
		return payment.Result{State: payment.StateUnknown}
	}

	tx, err := s.Gateway.GetPayment(ctx, o.PaymentID)
	if err != nil {
		s.logger.Warn("PAYMENT", fmt.Sprintf("Status lookup failed for order %s: %v", o.Identifier, err))
		return payment.Result{State: payment.StateUnknown, Cause: err}
	}

	if tx.Paid() {
		return payment.Result{State: payment.StatePaid, Transaction: tx}
	}
	return payment.Result{State: payment.StateUnpaid, Transaction: tx}
}

// Paid is true when the order was marked paid manually, paid by card, or
// the gateway reports its transaction settled. Resolved lazily on every
// call unless a stored flag short-circuits.
func (s *OrderService) Paid(ctx context.Context, o *models.Order) bool {
	if o.ManuallyPaid || o.PaidByCard {
		return true
	}
	return s.PaymentStatus(ctx, o).Paid()
}

// Confirm reconciles an order against the gateway: once its payment
// reports paid (or it was marked paid manually), the order gets its
// confirmation timestamp, attendee tickets are issued, and the
// lifecycle events go out. Already-confirmed orders pass through
// unchanged.
func (s *OrderService) Confirm(ctx context.Context, identifier string) (*models.Order, error) {
	o, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if o.Confirmed() {
		return o, nil
	}

	result := s.PaymentStatus(ctx, o)
	if !result.Paid() && !o.ManuallyPaid {
		return nil, ErrOrderNotPaid
	}
	if result.Paid() {
		o.PaidByCard = true
	}

	now := time.Now()
	o.ConfirmedAt = &now
	if err := s.DB.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to confirm order %s: %w", o.Identifier, err)
	}
	s.logger.LogOrder("CONFIRM", o.Identifier, "order confirmed")

	if s.Tickets != nil {
		if _, err := s.Tickets.IssueForOrder(ctx, o); err != nil {
			s.logger.Error("TICKETS", fmt.Sprintf("Failed to issue tickets for order %s: %v", o.Identifier, err))
		}
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderConfirmed(*o); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Publish error (order confirmed): %v", err))
		}
		if err := s.Kafka.PublishOrderPaid(*o); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Publish error (order paid): %v", err))
		}
	}

	return o, nil
}
