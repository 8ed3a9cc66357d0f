package identity

import "handyhub/models"

// MatchRule tags which resolution rule produced a worker match, so callers
// and tests can assert resolution order rather than guess it.
type MatchRule string

const (
	MatchByID    MatchRule = "id"
	MatchByEmail MatchRule = "email"
	MatchByName  MatchRule = "name"
	MatchNone    MatchRule = ""
)

// Directory is the user-store port the resolver reads through.
type Directory interface {
	GetByID(id string) (*models.User, error)
	FindWorkerByEmail(email string) (*models.User, error)
	FindLatestWorkerByName(name string) (*models.User, error)
	FindBrokerByCode(code string) (*models.User, error)
	SetBrokerCode(id, code string) error
}

// FamilySync keeps role-specific accounts sharing one email consistent.
// It is an external collaborator; the resolver only ever calls it, never
// implements it.
type FamilySync interface {
	SyncFamily(email string) error
}

// NoopFamilySync is the default when no family-sync collaborator is wired.
type NoopFamilySync struct{}

func (NoopFamilySync) SyncFamily(string) error { return nil }

// Resolver maps a booking's denormalized worker/broker fields to
// authoritative actor records.
type Resolver interface {
	// AssignedWorker resolves the booking's worker snapshot to a worker
	// record: by id, then email, then display name; first hit wins. The
	// returned MatchRule reports which rule fired.
	AssignedWorker(b *models.Booking) (*models.User, MatchRule, error)

	// LinkedBroker resolves a worker's broker link: stored broker id first
	// (re-validated), broker code as fallback. Nil if neither resolves.
	LinkedBroker(worker *models.User) (*models.User, error)

	// HasCommissionableBroker reports whether the booking's broker
	// attribution is eligible to earn commission.
	HasCommissionableBroker(b *models.Booking) bool
}
