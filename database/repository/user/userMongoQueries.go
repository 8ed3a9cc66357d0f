// File: database/repository/user/userMongoQueries.go
package userRepo

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

// exactInsensitive builds an anchored, case-insensitive match for a value,
// tolerating surrounding whitespace in the stored field.
func exactInsensitive(value string) bson.M {
	pattern := fmt.Sprintf(`^\s*%s\s*$`, regexp.QuoteMeta(strings.TrimSpace(value)))
	return bson.M{"$regex": pattern, "$options": "i"}
}

// GetByID retrieves a user by its unique ID. Returns (nil, nil) when absent.
func (r *MongoUserRepo) GetByID(id string) (*models.User, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user with id %s: %w", id, err)
	}
	return &user, nil
}

// GetByEmailAndRole retrieves the account of one role under an email address.
func (r *MongoUserRepo) GetByEmailAndRole(email, role string) (*models.User, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"email": exactInsensitive(email), "role": role}
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch %s account for %s: %w", role, email, err)
	}
	return &user, nil
}

// FindWorkerByEmail retrieves the worker account matching an email.
func (r *MongoUserRepo) FindWorkerByEmail(email string) (*models.User, error) {
	return r.GetByEmailAndRole(email, models.RoleWorker)
}

// FindLatestWorkerByName retrieves the most recently updated worker whose
// display name matches. A name is the weakest identity key, so ties are
// broken by recency rather than merged.
func (r *MongoUserRepo) FindLatestWorkerByName(name string) (*models.User, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"role": models.RoleWorker, "name": exactInsensitive(name)}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var user models.User
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch worker named %q: %w", name, err)
	}
	return &user, nil
}

// FindBrokerByCode retrieves the broker owning a referral code (exact match).
func (r *MongoUserRepo) FindBrokerByCode(code string) (*models.User, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	filter := bson.M{"role": models.RoleBroker, "broker.broker_code": code}
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch broker with code %s: %w", code, err)
	}
	return &user, nil
}

// BrokerCodeExists reports whether any broker already owns the code.
func (r *MongoUserRepo) BrokerCodeExists(code string) (bool, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"broker.broker_code": code})
	if err != nil {
		return false, fmt.Errorf("failed to check broker code %s: %w", code, err)
	}
	return count > 0, nil
}

// FindAvailableWorkersByService returns available workers offering a service.
func (r *MongoUserRepo) FindAvailableWorkersByService(service string) ([]models.User, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{
		"role":                     models.RoleWorker,
		"worker.is_available":      true,
		"worker.services_provided": exactInsensitive(service),
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find workers for service %q: %w", service, err)
	}
	defer cursor.Close(ctx)

	var workers []models.User
	for cursor.Next(ctx) {
		var u models.User
		if err := cursor.Decode(&u); err != nil {
			return nil, fmt.Errorf("failed to decode worker: %w", err)
		}
		workers = append(workers, u)
	}
	return workers, nil
}
