// File: database/repository/booking/bookingMongoQueries.go
package bookingRepo

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"handyhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// exactInsensitive builds an anchored, case-insensitive match tolerating
// surrounding whitespace in the stored field.
func exactInsensitive(value string) bson.M {
	pattern := fmt.Sprintf(`^\s*%s\s*$`, regexp.QuoteMeta(strings.TrimSpace(value)))
	return bson.M{"$regex": pattern, "$options": "i"}
}

// GetByID retrieves a booking by its unique ID. Returns (nil, nil) when absent.
func (r *MongoBookingRepo) GetByID(id string) (*models.Booking, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var b models.Booking
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch booking with id %s: %w", id, err)
	}
	return &b, nil
}

// ExpirePending bulk-fails stale pending bookings within the caller's scope.
// Re-running over already-failed rows is a no-op, so concurrent sweeps are safe.
func (r *MongoBookingRepo) ExpirePending(scope bson.M, cutoff time.Time) (int64, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.StatusPending,
		"created_at": bson.M{"$lte": cutoff},
	}
	for k, v := range scope {
		filter[k] = v
	}
	update := bson.M{"$set": bson.M{
		"status":     models.StatusFailed,
		"updated_at": time.Now(),
	}}

	result, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale pending bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *MongoBookingRepo) findMany(filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	for cursor.Next(ctx) {
		var b models.Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// ListByCustomer returns a customer's bookings, newest first. Soft-deleted
// records are omitted unless includeHidden is set.
func (r *MongoBookingRepo) ListByCustomer(customerID string, includeHidden bool) ([]models.Booking, error) {
	filter := bson.M{"customer_id": customerID}
	if !includeHidden {
		filter["hidden_for_customer"] = bson.M{"$ne": true}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findMany(filter, opts)
}

// ListByWorker returns bookings assigned to a worker, newest first.
func (r *MongoBookingRepo) ListByWorker(workerID string) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findMany(bson.M{"worker_id": workerID}, opts)
}

// ListPendingByServices returns unassigned pending bookings for any of the
// given services (the worker's "available jobs" view).
func (r *MongoBookingRepo) ListPendingByServices(services []string) ([]models.Booking, error) {
	if len(services) == 0 {
		return nil, nil
	}
	var serviceMatch []bson.M
	for _, s := range services {
		serviceMatch = append(serviceMatch, bson.M{"service": exactInsensitive(s)})
	}
	filter := bson.M{
		"status": models.StatusPending,
		"$or":    serviceMatch,
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findMany(filter, opts)
}

// ListByBroker returns bookings attributed to a broker by id or code.
func (r *MongoBookingRepo) ListByBroker(scope models.BrokerScope) ([]models.Booking, error) {
	or := brokerScopeFilter(scope)
	if or == nil {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findMany(bson.M{"$or": or}, opts)
}

// workerScopeFilter expands a worker identity scope into its $or clauses.
func workerScopeFilter(scope models.WorkerScope) []bson.M {
	var or []bson.M
	if scope.ID != "" {
		or = append(or, bson.M{"worker_id": scope.ID})
	}
	if scope.Email != "" {
		or = append(or, bson.M{"worker_email": exactInsensitive(scope.Email)})
	}
	if scope.Name != "" {
		or = append(or, bson.M{"worker_name": exactInsensitive(scope.Name)})
	}
	return or
}

// brokerScopeFilter expands a broker identity scope into its $or clauses.
func brokerScopeFilter(scope models.BrokerScope) []bson.M {
	var or []bson.M
	if scope.ID != "" {
		or = append(or, bson.M{"broker_id": scope.ID})
	}
	if scope.Code != "" {
		or = append(or, bson.M{"broker_code": scope.Code})
	}
	return or
}

// CountQualifyingCommissions counts the completed, commission-bearing bookings
// linking a worker identity scope to a broker identity scope. This is the
// lifetime cap's source of truth; it is recomputed on every settlement so
// retroactive corrections are picked up automatically.
func (r *MongoBookingRepo) CountQualifyingCommissions(worker models.WorkerScope, broker models.BrokerScope) (int, error) {
	workerOr := workerScopeFilter(worker)
	brokerOr := brokerScopeFilter(broker)
	if len(workerOr) == 0 || len(brokerOr) == 0 {
		return 0, nil
	}

	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{
		"status": models.StatusCompleted,
		"$and": []bson.M{
			{"$or": workerOr},
			{"$or": brokerOr},
			{"$or": []bson.M{
				{"broker_commission_amount": bson.M{"$gt": 0}},
				{"broker_commission_rate": bson.M{"$gt": 0}},
			}},
		},
	}
	count, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count qualifying commissions: %w", err)
	}
	return int(count), nil
}

// FindCompletedWithBroker returns all completed bookings carrying a broker id
// or a well-formed broker code, for the offline reconciliation pass.
func (r *MongoBookingRepo) FindCompletedWithBroker() ([]models.Booking, error) {
	filter := bson.M{
		"status": models.StatusCompleted,
		"$or": []bson.M{
			{"broker_id": bson.M{"$nin": bson.A{nil, ""}}},
			{"broker_code": bson.M{"$regex": BrokerCodePattern}},
		},
	}
	return r.findMany(filter, nil)
}
