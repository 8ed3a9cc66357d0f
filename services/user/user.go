package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	userRepo "handyhub/database/repository/user"
	"handyhub/models"
	"handyhub/services/identity"
	"handyhub/utils"
)

const authTokenTTL = 72 * time.Hour

// RegisterInput carries a role-specific signup request.
type RegisterInput struct {
	Role       string   `json:"role"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password"`
	Services   []string `json:"services"`    // workers only
	BrokerCode string   `json:"broker_code"` // workers only, optional referral
}

// UserService manages role-specific accounts. Session issuance and profile
// CRUD beyond signup/login live with the identity collaborator; this only
// covers what the booking surface needs.
type UserService interface {
	Register(input RegisterInput) (*models.User, string, error)
	Authenticate(email, role, password string) (*models.User, string, error)
	GetUserByID(id string) (*models.User, error)
}

// DefaultUserService is the production implementation.
type DefaultUserService struct {
	Repo   userRepo.UserRepository
	Family identity.FamilySync
}

// Register creates a role-specific account and returns it with a fresh token.
// Broker signups mint a unique referral code; worker signups may attach a
// broker link, which is immutable afterward.
func (s *DefaultUserService) Register(input RegisterInput) (*models.User, string, error) {
	role := strings.TrimSpace(strings.ToLower(input.Role))
	if role != models.RoleCustomer && role != models.RoleWorker && role != models.RoleBroker {
		return nil, "", fmt.Errorf("invalid role %q", input.Role)
	}
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || strings.TrimSpace(input.Name) == "" || input.Password == "" {
		return nil, "", fmt.Errorf("name, email and password are required")
	}

	existing, err := s.Repo.GetByEmailAndRole(email, role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, "", fmt.Errorf("a %s account already exists for %s", role, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.New().String(),
		Role:         role,
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: string(hash),
	}

	switch role {
	case models.RoleBroker:
		code, err := s.mintBrokerCode()
		if err != nil {
			return nil, "", err
		}
		u.Broker = &models.BrokerProfile{BrokerCode: code}
	case models.RoleWorker:
		profile := &models.WorkerProfile{
			ServicesProvided: input.Services,
			IsAvailable:      true,
		}
		if code := strings.TrimSpace(input.BrokerCode); code != "" {
			if !identity.IsValidBrokerCode(code) {
				return nil, "", fmt.Errorf("broker code %q is malformed", code)
			}
			broker, err := s.Repo.FindBrokerByCode(code)
			if err != nil {
				return nil, "", fmt.Errorf("failed to validate broker code: %w", err)
			}
			if broker == nil {
				return nil, "", fmt.Errorf("broker code %q does not exist", code)
			}
			profile.BrokerID = broker.ID
			profile.BrokerCode = broker.Broker.BrokerCode
		}
		u.Worker = profile
	}

	if err := s.Repo.Create(u); err != nil {
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	if s.Family != nil {
		if err := s.Family.SyncFamily(email); err != nil {
			utils.GetLogger().Sugar().Warnf("family sync failed for %s: %v", email, err)
		}
	}

	token, err := utils.GenerateToken(u.ID, u.Role, u.Email, authTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return u, token, nil
}

// mintBrokerCode generates codes until one is free. Collisions are vanishingly
// rare at this keyspace, so a short retry loop suffices.
func (s *DefaultUserService) mintBrokerCode() (string, error) {
	for attempts := 0; attempts < 5; attempts++ {
		code := identity.NewBrokerCode()
		taken, err := s.Repo.BrokerCodeExists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check broker code uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not mint a unique broker code")
}

// Authenticate verifies credentials for one role account and issues a token.
func (s *DefaultUserService) Authenticate(email, role, password string) (*models.User, string, error) {
	u, err := s.Repo.GetByEmailAndRole(strings.TrimSpace(strings.ToLower(email)), role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load account: %w", err)
	}
	if u == nil {
		return nil, "", fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("invalid credentials")
	}

	token, err := utils.GenerateToken(u.ID, u.Role, u.Email, authTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return u, token, nil
}

// GetUserByID fetches one account.
func (s *DefaultUserService) GetUserByID(id string) (*models.User, error) {
	u, err := s.Repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}
