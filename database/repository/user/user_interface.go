package userRepo

import (
	"handyhub/models"

	"go.mongodb.org/mongo-driver/bson"
)

// UserRepository defines persistence operations for role-specific accounts.
// Lookup semantics: emails and names are matched trimmed and case-insensitively,
// ids and broker codes exactly. Missing documents return (nil, nil).
type UserRepository interface {
	Create(user *models.User) error
	Update(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmailAndRole(email, role string) (*models.User, error)

	// Worker lookups used by the identity resolver, in resolution priority order.
	FindWorkerByEmail(email string) (*models.User, error)
	// FindLatestWorkerByName returns the most recently updated worker whose
	// name matches; nil if none match.
	FindLatestWorkerByName(name string) (*models.User, error)

	// Broker lookups.
	FindBrokerByCode(code string) (*models.User, error)
	BrokerCodeExists(code string) (bool, error)
	// SetBrokerCode persists a freshly minted code on a broker record.
	SetBrokerCode(id, code string) error

	// FindAvailableWorkersByService returns available workers offering the service.
	FindAvailableWorkersByService(service string) ([]models.User, error)

	UpdateSetDocument(id string, updateDoc bson.M) error
}
