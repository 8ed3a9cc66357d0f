package commission

import (
	"fmt"
	"math"

	"handyhub/models"
	"handyhub/services/identity"
)

// QualifyingCounter is the "count qualifying records" port backing the
// lifetime cap. The production implementation is a scoped Mongo count; tests
// inject a fixed number.
type QualifyingCounter interface {
	CountQualifyingCommissions(worker models.WorkerScope, broker models.BrokerScope) (int, error)
}

// CapStatus is the derived usedJobs/limit progress of one (worker, broker)
// pair. It is computed per request, never stored.
type CapStatus struct {
	UsedJobs int `json:"used_jobs"`
	Limit    int `json:"limit"`
}

// Reached reports whether no further commission-bearing jobs are allowed.
func (s CapStatus) Reached() bool { return s.UsedJobs >= s.Limit }

// Engine computes discounts, commission and worker payout for a booking.
// All money math rounds half away from zero. Commission applies to the
// post-discount net amount.
type Engine struct {
	Counter     QualifyingCounter
	Resolver    identity.Resolver
	DefaultRate float64
	JobCap      int
}

func round(v float64) float64 { return math.Round(v) }

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// TotalAmount derives the booking's pre-discount total. Priority order:
// originalAmount, then amount+discountAmount, then amount; the first finite
// positive value wins.
func (e *Engine) TotalAmount(b *models.Booking) float64 {
	if finitePositive(b.OriginalAmount) {
		return b.OriginalAmount
	}
	if finitePositive(b.Amount + b.DiscountAmount) {
		return b.Amount + b.DiscountAmount
	}
	if finitePositive(b.Amount) {
		return b.Amount
	}
	return 0
}

// DiscountAmount derives the discount: the explicit stored amount when
// positive, else the percent of the total, else 0.
func (e *Engine) DiscountAmount(b *models.Booking, total float64) float64 {
	if finitePositive(b.DiscountAmount) {
		return b.DiscountAmount
	}
	if finitePositive(b.DiscountPercent) {
		return round(total * b.DiscountPercent / 100)
	}
	return 0
}

// NetAmount is the post-discount payable: max(0, total - discount).
func (e *Engine) NetAmount(b *models.Booking) float64 {
	total := e.TotalAmount(b)
	return math.Max(0, total-e.DiscountAmount(b, total))
}

// EffectiveRate returns the booking's configured commission rate, falling
// back to the platform default when missing or out of range.
func (e *Engine) EffectiveRate(b *models.Booking) float64 {
	rate := b.BrokerCommissionRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 || rate > 100 {
		return e.DefaultRate
	}
	return rate
}

// CommissionAmount computes the broker's cut of the booking. When force is
// false, bookings with no commissionable broker yield 0. A persisted positive
// commission amount is reused verbatim, which keeps correction scripts and
// retried requests from double-applying the rate. Once a booking is completed
// its stored amount is authoritative even at 0: a capped settlement writes
// rate 0 / amount 0 deliberately, and re-deriving would mistake that for an
// absent rate.
func (e *Engine) CommissionAmount(b *models.Booking, force bool) float64 {
	if !force && !e.Resolver.HasCommissionableBroker(b) {
		return 0
	}
	net := e.NetAmount(b)
	if net <= 0 {
		return 0
	}
	if finitePositive(b.BrokerCommissionAmount) {
		return b.BrokerCommissionAmount
	}
	if b.Status == models.StatusCompleted {
		return 0
	}
	return round(net * e.EffectiveRate(b) / 100)
}

// WorkerPayout is the worker's net take: max(0, net - commission).
func (e *Engine) WorkerPayout(b *models.Booking) float64 {
	return math.Max(0, e.NetAmount(b)-e.CommissionAmount(b, false))
}

// CapStatus derives the lifetime usedJobs/limit progress for a worker-broker
// pair by counting qualifying historical bookings.
func (e *Engine) CapStatus(worker models.WorkerScope, broker models.BrokerScope) (CapStatus, error) {
	status := CapStatus{Limit: e.JobCap}
	if worker.IsEmpty() || broker.IsEmpty() {
		return status, nil
	}
	used, err := e.Counter.CountQualifyingCommissions(worker, broker)
	if err != nil {
		return status, fmt.Errorf("failed to derive commission cap usage: %w", err)
	}
	status.UsedJobs = used
	return status, nil
}

// SettleRate picks the commission rate for a settlement: 0 once the lifetime
// cap is used up, the platform default otherwise.
func (e *Engine) SettleRate(worker models.WorkerScope, broker models.BrokerScope) (float64, CapStatus, error) {
	status, err := e.CapStatus(worker, broker)
	if err != nil {
		return 0, status, err
	}
	if status.Reached() {
		return 0, status, nil
	}
	return e.DefaultRate, status, nil
}
