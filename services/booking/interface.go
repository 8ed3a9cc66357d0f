package booking

import (
	"context"

	"handyhub/models"
	"handyhub/services/commission"
)

// Actor is the acting identity yielded by the session provider.
type Actor struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CreateInput is the customer's booking request.
type CreateInput struct {
	Service         string  `json:"service"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Amount          float64 `json:"amount"`
	ApplyDiscount   bool    `json:"apply_discount"`
	DiscountPercent float64 `json:"discount_percent"`
	Location        string  `json:"location"`
	Description     string  `json:"description"`
}

// SettleInput selects how the customer pays at settlement.
type SettleInput struct {
	Method   string `json:"method"` // "card" or "cash"
	Currency string `json:"currency"`
}

// SettleResult is the settlement outcome returned to the customer.
type SettleResult struct {
	Booking             *models.Booking      `json:"booking"`
	WorkerPayout        float64              `json:"worker_payout"`
	Cap                 commission.CapStatus `json:"cap"`
	PaymentClientSecret string               `json:"payment_client_secret,omitempty"`
}

// WorkerDashboard bundles the two worker views: open jobs matching the
// worker's services, and jobs already assigned to the worker.
type WorkerDashboard struct {
	Available []models.Booking `json:"available"`
	Assigned  []models.Booking `json:"assigned"`
}

// BookingService is the booking lifecycle surface. Every operation enforces
// the caller's role and ownership scope; bookings outside that scope behave
// as absent.
type BookingService interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Booking, error)
	Accept(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error)
	Reject(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error)
	CancelByCustomer(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error)
	CancelByWorker(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error)
	MarkNotProvided(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error)
	Settle(ctx context.Context, actor Actor, bookingID string, input SettleInput) (*SettleResult, error)
	Review(ctx context.Context, actor Actor, bookingID string, rating int, feedback string) (*models.Booking, error)
	SoftDelete(ctx context.Context, actor Actor, bookingID string) error

	ListForCustomer(ctx context.Context, actor Actor) ([]models.Booking, error)
	ListForWorker(ctx context.Context, actor Actor) (*WorkerDashboard, error)
	ListForBroker(ctx context.Context, actor Actor) ([]models.Booking, error)

	// CapProgress reports a broker's usedJobs/limit against one worker.
	CapProgress(ctx context.Context, actor Actor, workerID string) (commission.CapStatus, error)
}
