package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// Processor initiates a customer payment at settlement and returns the
// client-side secret the dashboard uses to finish the card flow.
type Processor interface {
	CreateIntent(ctx context.Context, amount float64, currency, customerID string) (string, error)
}

// StripeProcessor is the production card-payment implementation.
type StripeProcessor struct {
	Logger *zap.Logger
}

func NewStripeProcessor(logger *zap.Logger) *StripeProcessor {
	return &StripeProcessor{Logger: logger}
}

// CreateIntent creates a PaymentIntent for the booking's final payable.
// Amounts are stored in major units; Stripe wants the minor unit.
func (p *StripeProcessor) CreateIntent(ctx context.Context, amount float64, currency, customerID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("payment amount must be positive, got %.2f", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount * 100)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("customer_id", customerID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}

	if p.Logger != nil {
		p.Logger.Info("payment intent created",
			zap.String("intent_id", intent.ID),
			zap.String("customer_id", customerID))
	}
	return intent.ClientSecret, nil
}
