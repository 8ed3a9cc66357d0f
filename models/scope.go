package models

// WorkerScope is the set of equivalent lookup keys for one worker identity.
// Any non-empty key matches; bookings are denormalized, so a historical record
// may carry only a name or only an email.
type WorkerScope struct {
	ID    string
	Email string
	Name  string
}

// IsEmpty reports whether no key is set.
func (s WorkerScope) IsEmpty() bool { return s.ID == "" && s.Email == "" && s.Name == "" }

// BrokerScope is the set of equivalent lookup keys for one broker identity.
type BrokerScope struct {
	ID   string
	Code string
}

// IsEmpty reports whether no key is set.
func (s BrokerScope) IsEmpty() bool { return s.ID == "" && s.Code == "" }
