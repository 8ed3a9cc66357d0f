package bookingRepo

import (
	"time"

	"handyhub/models"

	"go.mongodb.org/mongo-driver/bson"
)

// BookingRepository defines persistence operations for bookings. Documents are
// never hard-deleted; customer-side deletion only flips hidden_for_customer.
// Missing documents return (nil, nil).
type BookingRepository interface {
	Create(b *models.Booking) error
	GetByID(id string) (*models.Booking, error)
	Update(b *models.Booking) error
	UpdateFields(id string, fields bson.M) error

	// AcceptIfAssignable atomically assigns a worker to a booking that is
	// still pending and unassigned. Returns false when the guard no longer
	// matches (already accepted, cancelled or expired by a racing write).
	AcceptIfAssignable(id string, assign bson.M) (bool, error)

	// AddRejection appends a worker id to the rejection list of a pending
	// booking; duplicates are not added.
	AddRejection(id, workerID string) error

	// ExpirePending bulk-fails pending bookings created at or before cutoff,
	// restricted by the caller's scope filter. Returns the number modified.
	ExpirePending(scope bson.M, cutoff time.Time) (int64, error)

	ListByCustomer(customerID string, includeHidden bool) ([]models.Booking, error)
	ListByWorker(workerID string) ([]models.Booking, error)
	ListPendingByServices(services []string) ([]models.Booking, error)
	ListByBroker(scope models.BrokerScope) ([]models.Booking, error)

	// CountQualifyingCommissions counts completed bookings within the worker
	// and broker identity scopes whose persisted commission rate or amount is
	// positive. Derived per request; never stored as a counter.
	CountQualifyingCommissions(worker models.WorkerScope, broker models.BrokerScope) (int, error)

	// FindCompletedWithBroker returns all completed bookings carrying either
	// a broker id or a well-formed broker code, for offline reconciliation.
	FindCompletedWithBroker() ([]models.Booking, error)
}
