package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"handyhub/models"
)

// brokerCodeRe matches a well-formed 6-character alphanumeric broker code.
var brokerCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

const brokerCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultResolver implements Resolver over a user directory.
type DefaultResolver struct {
	Directory         Directory
	DefaultBrokerName string
	Family            FamilySync
}

// NewDefaultResolver wires a resolver with a no-op family sync.
func NewDefaultResolver(dir Directory, defaultBrokerName string) *DefaultResolver {
	return &DefaultResolver{
		Directory:         dir,
		DefaultBrokerName: defaultBrokerName,
		Family:            NoopFamilySync{},
	}
}

// workerRule is one step of the ordered worker-resolution policy.
type workerRule struct {
	rule   MatchRule
	lookup func(b *models.Booking) (*models.User, error)
}

func (r *DefaultResolver) workerRules() []workerRule {
	return []workerRule{
		{MatchByID, func(b *models.Booking) (*models.User, error) {
			if b.WorkerID == "" {
				return nil, nil
			}
			return r.Directory.GetByID(b.WorkerID)
		}},
		{MatchByEmail, func(b *models.Booking) (*models.User, error) {
			if strings.TrimSpace(b.WorkerEmail) == "" {
				return nil, nil
			}
			return r.Directory.FindWorkerByEmail(b.WorkerEmail)
		}},
		{MatchByName, func(b *models.Booking) (*models.User, error) {
			if strings.TrimSpace(b.WorkerName) == "" {
				return nil, nil
			}
			return r.Directory.FindLatestWorkerByName(b.WorkerName)
		}},
	}
}

// AssignedWorker resolves the booking's worker snapshot. Rules run in fixed
// priority order; a rule whose key is empty or whose lookup misses falls
// through to the next. A hit that is not a worker account counts as a miss.
func (r *DefaultResolver) AssignedWorker(b *models.Booking) (*models.User, MatchRule, error) {
	for _, rule := range r.workerRules() {
		u, err := rule.lookup(b)
		if err != nil {
			return nil, MatchNone, fmt.Errorf("worker lookup by %s failed: %w", rule.rule, err)
		}
		if u != nil && u.IsWorker() {
			return u, rule.rule, nil
		}
	}
	return nil, MatchNone, nil
}

// LinkedBroker resolves a worker's broker link. The stored broker id wins and
// is re-validated against the directory; when the broker record has no code
// yet, one is minted and persisted. The broker code is the fallback.
func (r *DefaultResolver) LinkedBroker(worker *models.User) (*models.User, error) {
	if worker == nil || worker.Worker == nil {
		return nil, nil
	}
	link := worker.Worker

	if link.BrokerID != "" {
		u, err := r.Directory.GetByID(link.BrokerID)
		if err != nil {
			return nil, fmt.Errorf("broker lookup by id failed: %w", err)
		}
		if u != nil && u.IsBroker() {
			if u.Broker.BrokerCode == "" {
				code := NewBrokerCode()
				if err := r.Directory.SetBrokerCode(u.ID, code); err != nil {
					return nil, fmt.Errorf("failed to refresh broker code: %w", err)
				}
				u.Broker.BrokerCode = code
			}
			return u, nil
		}
	}

	if link.BrokerCode != "" {
		u, err := r.Directory.FindBrokerByCode(link.BrokerCode)
		if err != nil {
			return nil, fmt.Errorf("broker lookup by code failed: %w", err)
		}
		if u != nil && u.IsBroker() {
			return u, nil
		}
	}
	return nil, nil
}

// HasCommissionableBroker reports whether the booking's broker attribution is
// eligible to earn commission: a broker id, a well-formed code, or a display
// name that is not the platform's default broker name.
func (r *DefaultResolver) HasCommissionableBroker(b *models.Booking) bool {
	if b.BrokerID != "" {
		return true
	}
	if IsValidBrokerCode(b.BrokerCode) {
		return true
	}
	name := normalizeName(b.BrokerName)
	return name != "" && name != normalizeName(r.DefaultBrokerName)
}

// IsValidBrokerCode reports whether the code matches the 6-character
// alphanumeric pattern.
func IsValidBrokerCode(code string) bool {
	return brokerCodeRe.MatchString(strings.TrimSpace(code))
}

// NewBrokerCode mints a random 6-character code. The charset drops the
// ambiguous 0/O/1/I glyphs; codes are read out over the phone.
func NewBrokerCode() string {
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(brokerCodeCharset))))
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(fmt.Sprintf("broker code generation: %v", err))
		}
		sb.WriteByte(brokerCodeCharset[n.Int64()])
	}
	return sb.String()
}

// normalizeName lowercases and strips all whitespace for name comparison.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}

// WorkerScopeOf derives the identity scope keys from a booking's worker
// snapshot, for scoped commission counts.
func WorkerScopeOf(b *models.Booking) models.WorkerScope {
	return models.WorkerScope{
		ID:    b.WorkerID,
		Email: strings.TrimSpace(b.WorkerEmail),
		Name:  strings.TrimSpace(b.WorkerName),
	}
}

// BrokerScopeOf derives the identity scope keys from a booking's broker
// attribution. A malformed code is excluded from the scope.
func BrokerScopeOf(b *models.Booking) models.BrokerScope {
	scope := models.BrokerScope{ID: b.BrokerID}
	if IsValidBrokerCode(b.BrokerCode) {
		scope.Code = strings.TrimSpace(b.BrokerCode)
	}
	return scope
}
