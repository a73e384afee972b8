package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"ms-registration/internal/logger"
)

// StripeGateway implements Gateway on Stripe payment intents. Amounts are
// whole currency units and get converted to minor units on the wire.
type StripeGateway struct {
	currency string
	logger   *logger.Logger
}

func NewStripeGateway(secretKey, currency string, log *logger.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{currency: currency, logger: log}
}

func (g *StripeGateway) CreatePayment(ctx context.Context, p CreateParams) (*Transaction, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(p.Amount)),
		Currency:    stripe.String(g.currency),
		Description: stripe.String(p.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range p.Metadata {
		params.AddMetadata(key, value)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		g.logger.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("stripe create payment: %w", err)
	}

	g.logger.Info("PAYMENT", fmt.Sprintf("Created payment intent %s (%.2f %s)", intent.ID, p.Amount, g.currency))
	return fromIntent(intent), nil
}

func (g *StripeGateway) GetPayment(ctx context.Context, id string) (*Transaction, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(id, params)
	if err != nil {
		g.logger.Warn("PAYMENT", fmt.Sprintf("Failed to retrieve payment intent %s: %v", id, err))
		return nil, fmt.Errorf("stripe get payment %s: %w", id, err)
	}
	return fromIntent(intent), nil
}

func fromIntent(intent *stripe.PaymentIntent) *Transaction {
	return &Transaction{
		ID:     intent.ID,
		Status: string(intent.Status),
		Amount: float64(intent.Amount) / 100,
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
