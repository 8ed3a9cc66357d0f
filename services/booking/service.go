package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	bookingRepo "handyhub/database/repository/booking"
	userRepo "handyhub/database/repository/user"
	"handyhub/models"
	"handyhub/services/commission"
	"handyhub/services/identity"
	"handyhub/services/notification"
	"handyhub/services/payment"
	"handyhub/services/realtime"
	"handyhub/utils"
)

// Lifecycle event actions.
const (
	ActionCreate          = "create"
	ActionAccept          = "accept"
	ActionReject          = "reject"
	ActionCancel          = "cancel"
	ActionMarkNotProvided = "mark-not-provided"
	ActionPay             = "pay"
	ActionReview          = "review"
)

// defaultDiscountPercent is applied when a customer opts into the discount
// without naming a percentage.
const defaultDiscountPercent = 5

// ReminderScheduler queues a reminder push to fire ahead of the booking slot.
type ReminderScheduler interface {
	Schedule(payload models.ReminderPayload, fireAt time.Time) error
}

// DefaultBookingService is the production booking state machine.
type DefaultBookingService struct {
	Repo      bookingRepo.BookingRepository
	Users     userRepo.UserRepository
	Resolver  identity.Resolver
	Engine    *commission.Engine
	Notifier  realtime.Notifier
	Push      notification.Pusher
	Payments  payment.Processor
	Reminders ReminderScheduler

	// CancelWindow bounds both customer cancellation and pending-booking
	// expiry. Settlement requires the window to have elapsed.
	CancelWindow time.Duration

	// Now is a clock hook for tests; nil means time.Now.
	Now func() time.Time
}

func (s *DefaultBookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// sweep lazily fails stale pending bookings within the caller's scope before
// the caller reads or mutates it. Sweep failures are logged, never fatal: the
// next scoped access will retry.
func (s *DefaultBookingService) sweep(scope bson.M) {
	cutoff := s.now().Add(-s.CancelWindow)
	if _, err := s.Repo.ExpirePending(scope, cutoff); err != nil {
		utils.GetLogger().Warn("booking: expiry sweep failed", zap.Error(err))
	}
}

// publish hands the updated booking to the realtime notifier. Best-effort.
func (s *DefaultBookingService) publish(ctx context.Context, action, audience string, b *models.Booking) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(ctx, audience, models.BookingEvent{
		Action:     action,
		BookingID:  b.ID,
		Status:     b.Status,
		Service:    b.Service,
		CustomerID: b.CustomerID,
		WorkerID:   b.WorkerID,
		BrokerID:   b.BrokerID,
		BrokerCode: b.BrokerCode,
		UpdatedAt:  b.UpdatedAt,
	})
}

// pushQuiet sends an FCM push and swallows any failure.
func (s *DefaultBookingService) pushQuiet(ctx context.Context, userID, title, body string, data map[string]string) {
	if s.Push == nil || userID == "" {
		return
	}
	if err := s.Push.SendToUser(ctx, userID, title, body, data); err != nil {
		utils.GetLogger().Warn("booking: push notification failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// scheduleReminder queues a pre-slot reminder for an accepted booking. Skipped
// when no scheduler is wired or the slot cannot be parsed; a queue failure is
// logged and ignored.
func (s *DefaultBookingService) scheduleReminder(b *models.Booking) {
	if s.Reminders == nil {
		return
	}
	slot, err := time.Parse("2006-01-02 15:04", b.Date+" "+b.Time)
	if err != nil {
		return
	}
	fireAt := slot.Add(-time.Hour)
	if !fireAt.After(s.now()) {
		return
	}
	payload := models.ReminderPayload{
		BookingID:  b.ID,
		Service:    b.Service,
		Date:       b.Date,
		Time:       b.Time,
		CustomerID: b.CustomerID,
		WorkerID:   b.WorkerID,
	}
	if err := s.Reminders.Schedule(payload, fireAt); err != nil {
		utils.GetLogger().Warn("booking: reminder scheduling failed",
			zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func statusIn(status string, allowed ...string) bool {
	for _, a := range allowed {
		if status == a {
			return true
		}
	}
	return false
}

// availabilityCacheTTL bounds how stale the "someone offers this service"
// answer may be. Availability flips are rare compared to booking creation.
const availabilityCacheTTL = 30 * time.Second

// serviceIsOffered reports whether at least one available worker offers the
// service. Positive answers are cached briefly; a cold or absent cache falls
// through to the directory.
func (s *DefaultBookingService) serviceIsOffered(ctx context.Context, service string) (bool, error) {
	key := "svc-offered:" + strings.ToLower(service)
	if utils.CacheClient != nil {
		if hit, err := utils.CacheClient.Get(ctx, key).Result(); err == nil && hit == "1" {
			return true, nil
		}
	}

	workers, err := s.Users.FindAvailableWorkersByService(service)
	if err != nil {
		return false, err
	}
	if len(workers) == 0 {
		return false, nil
	}
	if utils.CacheClient != nil {
		utils.CacheClient.Set(ctx, key, "1", availabilityCacheTTL)
	}
	return true, nil
}

// getOwned fetches a booking within a customer's ownership scope. Bookings
// belonging to someone else behave as absent.
func (s *DefaultBookingService) getOwned(actor Actor, bookingID string) (*models.Booking, error) {
	b, err := s.Repo.GetByID(bookingID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load booking: %v", err))
	}
	if b == nil || b.CustomerID != actor.ID {
		return nil, NewNotFoundError("booking not found")
	}
	return b, nil
}

// Create opens a new booking in pending status with no worker or broker.
func (s *DefaultBookingService) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("only customers can create bookings")
	}
	service := strings.TrimSpace(input.Service)
	if service == "" || strings.TrimSpace(input.Date) == "" || strings.TrimSpace(input.Time) == "" {
		return nil, NewValidationError("service, date and time are required")
	}

	offered, err := s.serviceIsOffered(ctx, service)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to check worker availability: %v", err))
	}
	if !offered {
		return nil, NewValidationError("no available worker offers this service")
	}

	b := &models.Booking{
		ID:           uuid.New().String(),
		Service:      service,
		Date:         strings.TrimSpace(input.Date),
		Time:         strings.TrimSpace(input.Time),
		Location:     strings.TrimSpace(input.Location),
		Description:  strings.TrimSpace(input.Description),
		CustomerID:   actor.ID,
		CustomerName: actor.Name,
		Status:       models.StatusPending,
	}

	if input.Amount > 0 {
		b.OriginalAmount = input.Amount
		if input.ApplyDiscount {
			b.DiscountPercent = input.DiscountPercent
			if b.DiscountPercent <= 0 {
				b.DiscountPercent = defaultDiscountPercent
			}
		}
		total := s.Engine.TotalAmount(b)
		b.DiscountAmount = s.Engine.DiscountAmount(b, total)
		b.Amount = s.Engine.NetAmount(b)
	}

	if err := s.Repo.Create(b); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to create booking: %v", err))
	}

	s.publish(ctx, ActionCreate, models.AudienceAll, b)
	return b, nil
}

// Accept assigns the acting worker to a pending booking. The write is a
// conditional update, so of two racing workers exactly one wins; the loser
// gets a conflict.
func (s *DefaultBookingService) Accept(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleWorker {
		return nil, NewForbiddenError("only workers can accept bookings")
	}
	s.sweep(bson.M{"id": bookingID})

	b, err := s.Repo.GetByID(bookingID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load booking: %v", err))
	}
	if b == nil {
		return nil, NewNotFoundError("booking not found")
	}
	if b.Status != models.StatusPending {
		return nil, NewConflictError("booking is no longer pending")
	}
	if b.HasAssignedWorker() {
		return nil, NewConflictError("booking was already accepted by another worker")
	}

	worker, err := s.Users.GetByID(actor.ID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load worker: %v", err))
	}
	if worker == nil || !worker.IsWorker() {
		return nil, NewForbiddenError("worker account not found")
	}
	if !worker.OffersService(b.Service) {
		return nil, NewForbiddenError("worker does not offer this service")
	}

	broker, err := s.Resolver.LinkedBroker(worker)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to resolve linked broker: %v", err))
	}

	assign := bson.M{
		"worker_id":       worker.ID,
		"worker_name":     worker.Name,
		"worker_email":    worker.Email,
		"worker_phone":    worker.Phone,
		"worker_services": worker.Worker.ServicesProvided,
		"status":          models.StatusConfirmed,
		// Commission bookkeeping restarts at acceptance; the final amount is
		// only fixed at settlement, under the cap.
		"broker_commission_rate":   s.Engine.DefaultRate,
		"broker_commission_amount": float64(0),
	}
	if broker != nil {
		assign["broker_id"] = broker.ID
		assign["broker_code"] = broker.Broker.BrokerCode
		assign["broker_name"] = broker.Name
	}

	ok, err := s.Repo.AcceptIfAssignable(bookingID, assign)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to accept booking: %v", err))
	}
	if !ok {
		return nil, NewConflictError("booking was already accepted or expired")
	}

	updated, err := s.Repo.GetByID(bookingID)
	if err != nil || updated == nil {
		return nil, NewUnavailableError("failed to reload booking after acceptance")
	}

	s.publish(ctx, ActionAccept, models.AudienceAll, updated)
	s.scheduleReminder(updated)
	s.pushQuiet(ctx, updated.CustomerID,
		"Booking confirmed",
		fmt.Sprintf("%s accepted your %s booking for %s.", worker.Name, updated.Service, updated.Date),
		map[string]string{"booking_id": updated.ID, "action": ActionAccept})
	return updated, nil
}

// Reject records a worker's refusal on a pending booking. Idempotent: a
// repeated reject from the same worker changes nothing.
func (s *DefaultBookingService) Reject(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleWorker {
		return nil, NewForbiddenError("only workers can reject bookings")
	}
	s.sweep(bson.M{"id": bookingID})

	b, err := s.Repo.GetByID(bookingID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load booking: %v", err))
	}
	if b == nil {
		return nil, NewNotFoundError("booking not found")
	}
	if b.Status != models.StatusPending {
		return nil, NewConflictError("booking is no longer pending")
	}
	if b.WorkerID == actor.ID {
		return nil, NewConflictError("assigned worker cannot reject; cancel instead")
	}

	if err := s.Repo.AddRejection(bookingID, actor.ID); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to record rejection: %v", err))
	}

	updated, err := s.Repo.GetByID(bookingID)
	if err != nil || updated == nil {
		return nil, NewUnavailableError("failed to reload booking after rejection")
	}
	s.publish(ctx, ActionReject, models.AudienceCustomer, updated)
	return updated, nil
}

// CancelByCustomer cancels the customer's own booking inside the window.
func (s *DefaultBookingService) CancelByCustomer(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("only customers can cancel their bookings")
	}
	s.sweep(bson.M{"id": bookingID, "customer_id": actor.ID})

	b, err := s.getOwned(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !statusIn(b.Status, models.StatusPending, models.StatusConfirmed, models.StatusUpcoming) {
		return nil, NewConflictError("booking can no longer be cancelled")
	}
	if s.now().Sub(b.CreatedAt) > s.CancelWindow {
		return nil, NewConflictError("cancellation window has elapsed")
	}

	if err := s.Repo.UpdateFields(bookingID, bson.M{"status": models.StatusCancelled}); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to cancel booking: %v", err))
	}
	b.Status = models.StatusCancelled
	b.UpdatedAt = s.now()

	s.publish(ctx, ActionCancel, models.AudienceAll, b)
	s.pushQuiet(ctx, b.WorkerID,
		"Booking cancelled",
		fmt.Sprintf("The %s booking for %s was cancelled by the customer.", b.Service, b.Date),
		map[string]string{"booking_id": b.ID, "action": ActionCancel})
	return b, nil
}

// CancelByWorker lets the assigned worker withdraw from a booking.
func (s *DefaultBookingService) CancelByWorker(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleWorker {
		return nil, NewForbiddenError("only workers can cancel assignments")
	}
	s.sweep(bson.M{"id": bookingID})

	b, err := s.Repo.GetByID(bookingID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load booking: %v", err))
	}
	if b == nil {
		return nil, NewNotFoundError("booking not found")
	}
	if !b.HasAssignedWorker() || b.WorkerID != actor.ID {
		return nil, NewForbiddenError("booking is not assigned to this worker")
	}
	if statusIn(b.Status, models.StatusCompleted, models.StatusCancelled, models.StatusFailed, models.StatusNotProvided) {
		return nil, NewConflictError("booking can no longer be cancelled")
	}

	if err := s.Repo.UpdateFields(bookingID, bson.M{"status": models.StatusCancelled}); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to cancel booking: %v", err))
	}
	b.Status = models.StatusCancelled
	b.UpdatedAt = s.now()

	s.publish(ctx, ActionCancel, models.AudienceAll, b)
	s.pushQuiet(ctx, b.CustomerID,
		"Booking cancelled",
		fmt.Sprintf("Your %s booking for %s was cancelled by the worker.", b.Service, b.Date),
		map[string]string{"booking_id": b.ID, "action": ActionCancel})
	return b, nil
}

// MarkNotProvided records that the assigned worker never delivered.
func (s *DefaultBookingService) MarkNotProvided(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("only customers can mark a booking as not provided")
	}
	s.sweep(bson.M{"id": bookingID, "customer_id": actor.ID})

	b, err := s.getOwned(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.HasAssignedWorker() {
		return nil, NewConflictError("booking has no assigned worker")
	}
	if !statusIn(b.Status, models.StatusPending, models.StatusConfirmed, models.StatusUpcoming, models.StatusInProgress) {
		return nil, NewConflictError("booking can no longer be marked as not provided")
	}

	if err := s.Repo.UpdateFields(bookingID, bson.M{"status": models.StatusNotProvided}); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to update booking: %v", err))
	}
	b.Status = models.StatusNotProvided
	b.UpdatedAt = s.now()

	s.publish(ctx, ActionMarkNotProvided, models.AudienceAll, b)
	return b, nil
}

// Review sets or overwrites the rating and feedback without changing status.
func (s *DefaultBookingService) Review(ctx context.Context, actor Actor, bookingID string, rating int, feedback string) (*models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("only customers can review bookings")
	}
	if rating < 1 || rating > 5 {
		return nil, NewValidationError("rating must be between 1 and 5")
	}
	if len(feedback) > 500 {
		return nil, NewValidationError("feedback must be at most 500 characters")
	}

	b, err := s.getOwned(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if !statusIn(b.Status, models.StatusConfirmed, models.StatusInProgress, models.StatusCompleted, models.StatusNotProvided) {
		return nil, NewConflictError("booking cannot be reviewed in its current status")
	}

	if err := s.Repo.UpdateFields(bookingID, bson.M{"rating": rating, "feedback": feedback}); err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to save review: %v", err))
	}
	b.Rating = rating
	b.Feedback = feedback
	b.UpdatedAt = s.now()

	s.publish(ctx, ActionReview, models.AudienceWorker, b)
	return b, nil
}

// SoftDelete hides a booking from the customer's own views. The document is
// never hard-deleted.
func (s *DefaultBookingService) SoftDelete(ctx context.Context, actor Actor, bookingID string) error {
	if actor.Role != models.RoleCustomer {
		return NewForbiddenError("only customers can delete their bookings")
	}
	b, err := s.getOwned(actor, bookingID)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateFields(b.ID, bson.M{"hidden_for_customer": true}); err != nil {
		return NewUnavailableError(fmt.Sprintf("failed to hide booking: %v", err))
	}
	return nil
}

// ListForCustomer returns the customer's visible bookings, sweeping the
// customer's scope first.
func (s *DefaultBookingService) ListForCustomer(ctx context.Context, actor Actor) ([]models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, NewForbiddenError("customer role required")
	}
	s.sweep(bson.M{"customer_id": actor.ID})

	bookings, err := s.Repo.ListByCustomer(actor.ID, false)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to list bookings: %v", err))
	}
	return bookings, nil
}

// ListForWorker returns the worker's open-jobs and assigned-jobs views.
func (s *DefaultBookingService) ListForWorker(ctx context.Context, actor Actor) (*WorkerDashboard, error) {
	if actor.Role != models.RoleWorker {
		return nil, NewForbiddenError("worker role required")
	}
	worker, err := s.Users.GetByID(actor.ID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load worker: %v", err))
	}
	if worker == nil || !worker.IsWorker() {
		return nil, NewForbiddenError("worker account not found")
	}

	services := worker.Worker.ServicesProvided
	if len(services) > 0 {
		s.sweep(bson.M{"service": bson.M{"$in": services}})
	}

	available, err := s.Repo.ListPendingByServices(services)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to list open jobs: %v", err))
	}
	assigned, err := s.Repo.ListByWorker(actor.ID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to list assigned jobs: %v", err))
	}
	return &WorkerDashboard{Available: available, Assigned: assigned}, nil
}

// ListForBroker returns bookings attributed to the acting broker.
func (s *DefaultBookingService) ListForBroker(ctx context.Context, actor Actor) ([]models.Booking, error) {
	if actor.Role != models.RoleBroker {
		return nil, NewForbiddenError("broker role required")
	}
	broker, err := s.Users.GetByID(actor.ID)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to load broker: %v", err))
	}
	if broker == nil || !broker.IsBroker() {
		return nil, NewForbiddenError("broker account not found")
	}

	scope := models.BrokerScope{ID: broker.ID, Code: broker.Broker.BrokerCode}
	s.sweep(bson.M{"broker_id": broker.ID})

	bookings, err := s.Repo.ListByBroker(scope)
	if err != nil {
		return nil, NewUnavailableError(fmt.Sprintf("failed to list broker bookings: %v", err))
	}
	return bookings, nil
}

// CapProgress reports the acting broker's lifetime commission usage against
// one worker, derived from historical bookings on every call.
func (s *DefaultBookingService) CapProgress(ctx context.Context, actor Actor, workerID string) (commission.CapStatus, error) {
	if actor.Role != models.RoleBroker {
		return commission.CapStatus{}, NewForbiddenError("broker role required")
	}
	broker, err := s.Users.GetByID(actor.ID)
	if err != nil {
		return commission.CapStatus{}, NewUnavailableError(fmt.Sprintf("failed to load broker: %v", err))
	}
	if broker == nil || !broker.IsBroker() {
		return commission.CapStatus{}, NewForbiddenError("broker account not found")
	}
	worker, err := s.Users.GetByID(workerID)
	if err != nil {
		return commission.CapStatus{}, NewUnavailableError(fmt.Sprintf("failed to load worker: %v", err))
	}
	if worker == nil || !worker.IsWorker() {
		return commission.CapStatus{}, NewNotFoundError("worker not found")
	}

	workerScope := models.WorkerScope{ID: worker.ID, Email: worker.Email, Name: worker.Name}
	brokerScope := models.BrokerScope{ID: broker.ID, Code: broker.Broker.BrokerCode}
	status, err := s.Engine.CapStatus(workerScope, brokerScope)
	if err != nil {
		return status, NewUnavailableError(err.Error())
	}
	return status, nil
}
