package models

import (
	"strings"
	"time"
)

// Role-specific account kinds.
const (
	RoleCustomer = "customer"
	RoleWorker   = "worker"
	RoleBroker   = "broker"
)

// WorkerProfile holds the worker-specific sub-profile. The broker link
// (BrokerID/BrokerCode) is set once at signup or acceptance and is immutable
// afterward.
type WorkerProfile struct {
	ServicesProvided []string `bson:"services_provided,omitempty" json:"services_provided,omitempty"`
	IsAvailable      bool     `bson:"is_available" json:"is_available"`
	BrokerID         string   `bson:"broker_id,omitempty" json:"broker_id,omitempty"`
	BrokerCode       string   `bson:"broker_code,omitempty" json:"broker_code,omitempty"`
}

// BrokerProfile holds the broker-specific sub-profile.
type BrokerProfile struct {
	// Unique random 6-character alphanumeric referral code.
	BrokerCode string `bson:"broker_code" json:"broker_code"`
}

// User is a role-specific identity. Accounts of different roles sharing one
// email form a "family" kept consistent by a cross-role sync collaborator.
type User struct {
	ID           string         `bson:"id" json:"id"`
	Role         string         `bson:"role" json:"role"`
	Name         string         `bson:"name" json:"name"`
	Email        string         `bson:"email" json:"email"`
	Phone        string         `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string         `bson:"password_hash" json:"-"`
	Bio          string         `bson:"bio,omitempty" json:"bio,omitempty"`
	Location     string         `bson:"location,omitempty" json:"location,omitempty"`
	FCMToken     string         `bson:"fcm_token,omitempty" json:"-"`
	Worker       *WorkerProfile `bson:"worker,omitempty" json:"worker,omitempty"`
	Broker       *BrokerProfile `bson:"broker,omitempty" json:"broker,omitempty"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at" json:"updated_at"`
}

// IsWorker reports whether the account carries a worker profile.
func (u *User) IsWorker() bool { return u.Role == RoleWorker && u.Worker != nil }

// IsBroker reports whether the account carries a broker profile.
func (u *User) IsBroker() bool { return u.Role == RoleBroker && u.Broker != nil }

// OffersService reports whether the worker profile lists the given service.
// Comparison is trimmed and case-insensitive.
func (u *User) OffersService(service string) bool {
	if u.Worker == nil {
		return false
	}
	for _, s := range u.Worker.ServicesProvided {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(service)) {
			return true
		}
	}
	return false
}
