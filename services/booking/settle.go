package booking

import (
	"context"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"

	"handyhub/models"
	"handyhub/services/commission"
	"handyhub/services/identity"
)

// Settle completes a booking: attribution is backfilled, commission is fixed
// under the lifetime cap, and the status moves to completed. The booking is
// written once, at the end; any earlier failure leaves it untouched.
func (s *DefaultBookingService) Settle(ctx context.Context, actor Actor, bookingID string, input SettleInput) (*SettleResult, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("only customers can settle bookings")
	}
	s.sweep(bson.M{"id": bookingID, "customer_id": actor.ID})

	b, err := s.getOwned(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.HasAssignedWorker() {
		return nil, NewConflictError("booking has no assigned worker")
	}
	if !statusIn(b.Status, models.StatusPending, models.StatusConfirmed, models.StatusUpcoming, models.StatusInProgress) {
		return nil, NewConflictError("booking can no longer be settled")
	}
	if s.now().Sub(b.CreatedAt) <= s.CancelWindow {
		return nil, NewConflictError("booking is still inside the cancellation window")
	}

	if _, err := s.syncAttribution(b); err != nil {
		return nil, NewUnavailableError(err.Error())
	}

	// Normalize the money fields so settlement is deterministic however the
	// booking was written historically.
	total := s.Engine.TotalAmount(b)
	b.OriginalAmount = total
	b.DiscountAmount = s.Engine.DiscountAmount(b, total)
	b.Amount = math.Max(0, total-b.DiscountAmount)

	cap := commission.CapStatus{Limit: s.Engine.JobCap}
	if s.Resolver.HasCommissionableBroker(b) {
		rate, capStatus, err := s.Engine.SettleRate(identity.WorkerScopeOf(b), identity.BrokerScopeOf(b))
		if err != nil {
			return nil, NewUnavailableError(err.Error())
		}
		cap = capStatus
		if rate <= 0 {
			// Lifetime cap used up: the broker stays linked but earns nothing,
			// and the worker keeps the full net amount.
			b.BrokerCommissionRate = 0
			b.BrokerCommissionAmount = 0
		} else {
			b.BrokerCommissionRate = rate
			b.BrokerCommissionAmount = s.Engine.CommissionAmount(b, true)
		}
	} else {
		b.BrokerCommissionRate = 0
		b.BrokerCommissionAmount = 0
	}

	// Payout comes from the values just fixed above, not from a re-derivation:
	// a capped settlement stores rate 0, and re-deriving would mistake that for
	// an absent rate and fall back to the default.
	payout := math.Max(0, b.Amount-b.BrokerCommissionAmount)

	var clientSecret string
	if input.Method == "card" && s.Payments != nil {
		currency := input.Currency
		if currency == "" {
			currency = "usd"
		}
		clientSecret, err = s.Payments.CreateIntent(ctx, b.Amount, currency, actor.ID)
		if err != nil {
			return nil, NewUnavailableError(fmt.Sprintf("payment initiation failed: %v", err))
		}
	}

	b.Status = models.StatusCompleted
	if err := s.Repo.Update(b); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to settle booking: %v", err))
	}

	s.publish(ctx, ActionPay, models.AudienceAll, b)
	s.pushQuiet(ctx, b.WorkerID,
		"Booking settled",
		fmt.Sprintf("The %s booking for %s was settled. Your payout: %.0f.", b.Service, b.Date, payout),
		map[string]string{"booking_id": b.ID, "action": ActionPay})

	return &SettleResult{
		Booking:             b,
		WorkerPayout:        payout,
		Cap:                 cap,
		PaymentClientSecret: clientSecret,
	}, nil
}
