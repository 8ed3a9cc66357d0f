package commission

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"handyhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ReconcileStore is the booking-store port the reconciliation pass runs over.
type ReconcileStore interface {
	FindCompletedWithBroker() ([]models.Booking, error)
	UpdateFields(id string, fields bson.M) error
}

// Reconciler re-applies the lifetime commission cap over historical data.
// It is an offline, single-process batch: groups are walked sequentially and
// every write is idempotent, so a partial run can be resumed by re-running.
type Reconciler struct {
	Store  ReconcileStore
	Engine *Engine
	Logger *zap.Logger
}

// pairKey identifies one (broker, worker) commission relationship.
type pairKey struct {
	broker string
	worker string
}

// brokerKey prefers the broker id over the code.
func brokerKey(b *models.Booking) string {
	if b.BrokerID != "" {
		return "id:" + b.BrokerID
	}
	if code := strings.TrimSpace(b.BrokerCode); code != "" {
		return "code:" + code
	}
	return ""
}

// workerKey prefers id, then email, then name, mirroring the identity
// resolver's priority. Email and name are normalized the same way lookups are.
func workerKey(b *models.Booking) string {
	if b.WorkerID != "" {
		return "id:" + b.WorkerID
	}
	if email := strings.TrimSpace(strings.ToLower(b.WorkerEmail)); email != "" {
		return "email:" + email
	}
	if name := strings.Join(strings.Fields(strings.ToLower(b.WorkerName)), " "); name != "" {
		return "name:" + name
	}
	return ""
}

// sortTime is the primary ordering timestamp: updatedAt when set, else createdAt.
func sortTime(b *models.Booking) time.Time {
	if !b.UpdatedAt.IsZero() {
		return b.UpdatedAt
	}
	return b.CreatedAt
}

// Run executes the reconciliation pass and reports what it did. A single
// booking's write failure is non-fatal: the booking stays unchanged and the
// pass moves on.
func (r *Reconciler) Run() (models.ReconcileSummary, error) {
	summary := models.ReconcileSummary{}

	bookings, err := r.Store.FindCompletedWithBroker()
	if err != nil {
		return summary, fmt.Errorf("failed to load completed broker bookings: %w", err)
	}
	summary.TotalCompletedBookings = len(bookings)

	groups := make(map[pairKey][]*models.Booking)
	for i := range bookings {
		b := &bookings[i]
		key := pairKey{broker: brokerKey(b), worker: workerKey(b)}
		if key.broker == "" || key.worker == "" {
			// No attributable pair; nothing to cap.
			continue
		}
		groups[key] = append(groups[key], b)
	}
	summary.ProcessedGroups = len(groups)

	for key, group := range groups {
		// Total order within the group: oldest settles first, ties broken by
		// createdAt then id so reruns walk the same sequence.
		sort.Slice(group, func(i, j int) bool {
			ti, tj := sortTime(group[i]), sortTime(group[j])
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		for i, b := range group {
			var wantRate, wantAmount float64
			if i < r.Engine.JobCap {
				wantRate = r.Engine.DefaultRate
				wantAmount = round(r.Engine.NetAmount(b) * wantRate / 100)
			}

			if b.BrokerCommissionRate == wantRate && b.BrokerCommissionAmount == wantAmount {
				continue
			}

			err := r.Store.UpdateFields(b.ID, bson.M{
				"broker_commission_rate":   wantRate,
				"broker_commission_amount": wantAmount,
			})
			if err != nil {
				if r.Logger != nil {
					r.Logger.Warn("reconcile: booking write failed, skipping",
						zap.String("booking_id", b.ID),
						zap.String("broker", key.broker),
						zap.Error(err))
				}
				continue
			}

			summary.UpdatedBookings++
			switch {
			case wantAmount == 0 && b.BrokerCommissionAmount > 0:
				summary.CommissionRemovedCount++
			case wantAmount > 0 && b.BrokerCommissionAmount <= 0:
				summary.CommissionRestoredCount++
			}
		}
	}

	summary.OK = true
	return summary, nil
}
