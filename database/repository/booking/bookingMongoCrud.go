// File: database/repository/booking/bookingMongoCrud.go
package bookingRepo

import (
	"fmt"
	"time"

	"handyhub/models"

	"go.mongodb.org/mongo-driver/bson"
)

// Create inserts a new booking document.
func (r *MongoBookingRepo) Create(b *models.Booking) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// Update replaces the stored booking document with the given one.
func (r *MongoBookingRepo) Update(b *models.Booking) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	b.UpdatedAt = time.Now()
	filter := bson.M{"id": b.ID}
	update := bson.M{"$set": b}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking with id %s: %w", b.ID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("booking with id %s not found", b.ID)
	}
	return nil
}

// UpdateFields applies a partial $set update to a booking document.
func (r *MongoBookingRepo) UpdateFields(id string, fields bson.M) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	fields["updated_at"] = time.Now()
	update := bson.M{"$set": fields}

	filter := bson.M{"id": id}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking with id %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("booking with id %s not found", id)
	}
	return nil
}

// AcceptIfAssignable performs the conditional accept write. The filter is the
// concurrency guard: it only matches while the booking is pending with no
// worker assigned, so two racing accepts cannot both land.
func (r *MongoBookingRepo) AcceptIfAssignable(id string, assign bson.M) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	assign["updated_at"] = time.Now()
	filter := bson.M{
		"id":     id,
		"status": models.StatusPending,
		"$or": []bson.M{
			{"worker_id": bson.M{"$exists": false}},
			{"worker_id": ""},
		},
	}
	update := bson.M{
		"$set":   assign,
		"$unset": bson.M{"rejected_by_worker_ids": ""},
	}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to accept booking with id %s: %w", id, err)
	}
	return result.ModifiedCount > 0, nil
}

// AddRejection records a worker's rejection on a still-pending booking.
// $addToSet keeps the list duplicate-free on retried requests.
func (r *MongoBookingRepo) AddRejection(id, workerID string) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"id": id, "status": models.StatusPending}
	update := bson.M{
		"$addToSet": bson.M{"rejected_by_worker_ids": workerID},
		"$set":      bson.M{"updated_at": time.Now()},
	}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to record rejection on booking %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("booking with id %s not found or no longer pending", id)
	}
	return nil
}
