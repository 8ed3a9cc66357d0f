package booking

import (
	"fmt"

	"handyhub/models"
	"handyhub/services/identity"
)

// syncAttribution lazily backfills missing broker attribution onto the
// booking (in memory; the caller persists). A worker's broker link can be
// created or changed after the booking was first accepted, so settlement
// re-derives it rather than trusting the acceptance-time snapshot. No-op when
// the booking already carries a broker id or a well-formed code.
func (s *DefaultBookingService) syncAttribution(b *models.Booking) (bool, error) {
	if b.BrokerID != "" || identity.IsValidBrokerCode(b.BrokerCode) {
		return false, nil
	}

	worker, _, err := s.Resolver.AssignedWorker(b)
	if err != nil {
		return false, fmt.Errorf("attribution: worker resolution failed: %w", err)
	}
	if worker == nil {
		return false, nil
	}

	broker, err := s.Resolver.LinkedBroker(worker)
	if err != nil {
		return false, fmt.Errorf("attribution: broker resolution failed: %w", err)
	}
	if broker == nil {
		return false, nil
	}

	b.BrokerID = broker.ID
	b.BrokerCode = broker.Broker.BrokerCode
	b.BrokerName = broker.Name
	return true, nil
}
