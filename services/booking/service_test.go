package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"handyhub/models"
	"handyhub/services/commission"
	"handyhub/services/identity"
)

// --- in-memory booking store ---

type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking

	// beforeAccept runs between the service's pre-checks and the conditional
	// assignment write, to simulate a racing worker.
	beforeAccept func()
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]*models.Booking)}
}

func (r *memBookingRepo) put(b models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = &b
}

func (r *memBookingRepo) get(id string) models.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.bookings[id]
}

func (r *memBookingRepo) Create(b *models.Booking) error {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	r.put(*b)
	return nil
}

func (r *memBookingRepo) GetByID(id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBookingRepo) Update(b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return fmt.Errorf("booking %s not found", b.ID)
	}
	cp := *b
	cp.UpdatedAt = time.Now()
	r.bookings[b.ID] = &cp
	return nil
}

func applyFields(b *models.Booking, fields bson.M) {
	for k, v := range fields {
		switch k {
		case "status":
			b.Status = v.(string)
		case "rating":
			b.Rating = v.(int)
		case "feedback":
			b.Feedback = v.(string)
		case "hidden_for_customer":
			b.HiddenForCustomer = v.(bool)
		case "worker_id":
			b.WorkerID = v.(string)
		case "worker_name":
			b.WorkerName = v.(string)
		case "worker_email":
			b.WorkerEmail = v.(string)
		case "worker_phone":
			b.WorkerPhone = v.(string)
		case "worker_services":
			b.WorkerServices = v.([]string)
		case "broker_id":
			b.BrokerID = v.(string)
		case "broker_code":
			b.BrokerCode = v.(string)
		case "broker_name":
			b.BrokerName = v.(string)
		case "broker_commission_rate":
			b.BrokerCommissionRate = v.(float64)
		case "broker_commission_amount":
			b.BrokerCommissionAmount = v.(float64)
		}
	}
}

func (r *memBookingRepo) UpdateFields(id string, fields bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s not found", id)
	}
	applyFields(b, fields)
	b.UpdatedAt = time.Now()
	return nil
}

func (r *memBookingRepo) AcceptIfAssignable(id string, assign bson.M) (bool, error) {
	if r.beforeAccept != nil {
		r.beforeAccept()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != models.StatusPending || b.WorkerID != "" {
		return false, nil
	}
	applyFields(b, assign)
	b.RejectedByWorkerIDs = nil
	b.UpdatedAt = time.Now()
	return true, nil
}

func (r *memBookingRepo) AddRejection(id, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != models.StatusPending {
		return fmt.Errorf("booking %s is not pending", id)
	}
	for _, w := range b.RejectedByWorkerIDs {
		if w == workerID {
			return nil
		}
	}
	b.RejectedByWorkerIDs = append(b.RejectedByWorkerIDs, workerID)
	b.UpdatedAt = time.Now()
	return nil
}

func matchScope(b *models.Booking, scope bson.M) bool {
	for k, v := range scope {
		switch k {
		case "id":
			if b.ID != v.(string) {
				return false
			}
		case "customer_id":
			if b.CustomerID != v.(string) {
				return false
			}
		case "broker_id":
			if b.BrokerID != v.(string) {
				return false
			}
		case "service":
			in := v.(bson.M)["$in"].([]string)
			found := false
			for _, s := range in {
				if strings.EqualFold(s, b.Service) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (r *memBookingRepo) ExpirePending(scope bson.M, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bookings {
		if b.Status != models.StatusPending || b.CreatedAt.After(cutoff) {
			continue
		}
		if !matchScope(b, scope) {
			continue
		}
		b.Status = models.StatusFailed
		b.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (r *memBookingRepo) ListByCustomer(customerID string, includeHidden bool) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.CustomerID != customerID {
			continue
		}
		if b.HiddenForCustomer && !includeHidden {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *memBookingRepo) ListByWorker(workerID string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.WorkerID == workerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListPendingByServices(services []string) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.Status != models.StatusPending || b.WorkerID != "" {
			continue
		}
		for _, s := range services {
			if strings.EqualFold(s, b.Service) {
				out = append(out, *b)
				break
			}
		}
	}
	return out, nil
}

func (r *memBookingRepo) ListByBroker(scope models.BrokerScope) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if (scope.ID != "" && b.BrokerID == scope.ID) ||
			(scope.Code != "" && strings.EqualFold(b.BrokerCode, scope.Code)) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func matchWorkerScope(b *models.Booking, w models.WorkerScope) bool {
	if w.ID != "" && b.WorkerID == w.ID {
		return true
	}
	if w.Email != "" && strings.EqualFold(strings.TrimSpace(b.WorkerEmail), w.Email) {
		return true
	}
	if w.Name != "" && strings.EqualFold(strings.TrimSpace(b.WorkerName), w.Name) {
		return true
	}
	return false
}

func (r *memBookingRepo) CountQualifyingCommissions(worker models.WorkerScope, broker models.BrokerScope) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, b := range r.bookings {
		if b.Status != models.StatusCompleted {
			continue
		}
		if !matchWorkerScope(b, worker) {
			continue
		}
		brokerHit := (broker.ID != "" && b.BrokerID == broker.ID) ||
			(broker.Code != "" && strings.EqualFold(strings.TrimSpace(b.BrokerCode), broker.Code))
		if !brokerHit {
			continue
		}
		if b.BrokerCommissionAmount > 0 || b.BrokerCommissionRate > 0 {
			count++
		}
	}
	return count, nil
}

func (r *memBookingRepo) FindCompletedWithBroker() ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.Status == models.StatusCompleted && (b.BrokerID != "" || identity.IsValidBrokerCode(b.BrokerCode)) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// --- in-memory user store ---

type memUserRepo struct {
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) Create(u *models.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) Update(u *models.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmailAndRole(email, role string) (*models.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) && u.Role == role {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindWorkerByEmail(email string) (*models.User, error) {
	return r.GetByEmailAndRole(email, models.RoleWorker)
}

func (r *memUserRepo) FindLatestWorkerByName(name string) (*models.User, error) {
	var latest *models.User
	for _, u := range r.users {
		if u.Role != models.RoleWorker {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(u.Name), strings.TrimSpace(name)) {
			continue
		}
		if latest == nil || u.UpdatedAt.After(latest.UpdatedAt) {
			latest = u
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memUserRepo) FindBrokerByCode(code string) (*models.User, error) {
	for _, u := range r.users {
		if u.IsBroker() && u.Broker.BrokerCode == strings.TrimSpace(code) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) BrokerCodeExists(code string) (bool, error) {
	u, err := r.FindBrokerByCode(code)
	return u != nil, err
}

func (r *memUserRepo) SetBrokerCode(id, code string) error {
	u, ok := r.users[id]
	if !ok || u.Broker == nil {
		return fmt.Errorf("broker %s not found", id)
	}
	u.Broker.BrokerCode = code
	return nil
}

func (r *memUserRepo) FindAvailableWorkersByService(service string) ([]models.User, error) {
	var out []models.User
	for _, u := range r.users {
		if u.IsWorker() && u.Worker.IsAvailable && u.OffersService(service) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memUserRepo) UpdateSetDocument(id string, updateDoc bson.M) error { return nil }

// --- side-channel fakes ---

type recordedEvent struct {
	action   string
	audience string
	event    models.BookingEvent
}

type recordNotifier struct {
	events []recordedEvent
}

func (n *recordNotifier) Publish(ctx context.Context, audience string, e models.BookingEvent) {
	n.events = append(n.events, recordedEvent{action: e.Action, audience: audience, event: e})
}

func (n *recordNotifier) last() *recordedEvent {
	if len(n.events) == 0 {
		return nil
	}
	return &n.events[len(n.events)-1]
}

type recordPusher struct {
	sent []string // user ids
}

func (p *recordPusher) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	p.sent = append(p.sent, userID)
	return nil
}

type recordScheduler struct {
	payloads []models.ReminderPayload
	fireAts  []time.Time
}

func (s *recordScheduler) Schedule(p models.ReminderPayload, fireAt time.Time) error {
	s.payloads = append(s.payloads, p)
	s.fireAts = append(s.fireAts, fireAt)
	return nil
}

type stubPayments struct {
	secret string
	err    error
	calls  int
}

func (p *stubPayments) CreateIntent(ctx context.Context, amount float64, currency, customerID string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.secret, nil
}

// --- harness ---

type env struct {
	repo     *memBookingRepo
	users    *memUserRepo
	svc      *DefaultBookingService
	notifier *recordNotifier
	push     *recordPusher
	payments *stubPayments
	clock    time.Time
}

func newEnv() *env {
	e := &env{
		repo:     newMemBookingRepo(),
		users:    newMemUserRepo(),
		notifier: &recordNotifier{},
		push:     &recordPusher{},
		payments: &stubPayments{secret: "pi_secret_test"},
		clock:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	resolver := identity.NewDefaultResolver(e.users, "HandyHub")
	e.svc = &DefaultBookingService{
		Repo:     e.repo,
		Users:    e.users,
		Resolver: resolver,
		Engine: &commission.Engine{
			Counter:     e.repo,
			Resolver:    resolver,
			DefaultRate: 5,
			JobCap:      10,
		},
		Notifier:     e.notifier,
		Push:         e.push,
		Payments:     e.payments,
		CancelWindow: 10 * time.Minute,
	}
	e.svc.Now = func() time.Time { return e.clock }
	return e
}

func (e *env) advance(d time.Duration) { e.clock = e.clock.Add(d) }

func (e *env) addCustomer(id, name string) Actor {
	e.users.Create(&models.User{ID: id, Role: models.RoleCustomer, Name: name, Email: id + "@x.test"})
	return Actor{ID: id, Role: models.RoleCustomer, Name: name}
}

func (e *env) addWorker(id, name string, services []string) Actor {
	e.users.Create(&models.User{
		ID:    id,
		Role:  models.RoleWorker,
		Name:  name,
		Email: id + "@x.test",
		Phone: "0700000000",
		Worker: &models.WorkerProfile{
			ServicesProvided: services,
			IsAvailable:      true,
		},
	})
	return Actor{ID: id, Role: models.RoleWorker, Name: name, Email: id + "@x.test"}
}

func (e *env) addBroker(id, name, code string) Actor {
	e.users.Create(&models.User{
		ID:     id,
		Role:   models.RoleBroker,
		Name:   name,
		Broker: &models.BrokerProfile{BrokerCode: code},
	})
	return Actor{ID: id, Role: models.RoleBroker, Name: name}
}

func (e *env) linkWorkerToBroker(workerID, brokerID string) {
	u := e.users.users[workerID]
	u.Worker.BrokerID = brokerID
}

func (e *env) seedPending(id, customerID, service string, amount float64) {
	e.repo.put(models.Booking{
		ID:             id,
		Service:        service,
		Date:           "2024-06-02",
		Time:           "10:00",
		CustomerID:     customerID,
		Status:         models.StatusPending,
		OriginalAmount: amount,
		Amount:         amount,
		CreatedAt:      e.clock,
		UpdatedAt:      e.clock,
	})
}

func wantKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}

// --- lifecycle tests ---

func TestCreateBooking(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	ctx := context.Background()

	b, err := e.svc.Create(ctx, customer, CreateInput{
		Service: "Cleaning", Date: "2024-06-02", Time: "10:00",
		Amount: 1000, ApplyDiscount: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != models.StatusPending || b.HasAssignedWorker() {
		t.Fatalf("new booking = %+v, want unassigned pending", b)
	}
	if b.OriginalAmount != 1000 || b.DiscountAmount != 50 || b.Amount != 950 {
		t.Fatalf("money = %v/%v/%v, want 1000/50/950", b.OriginalAmount, b.DiscountAmount, b.Amount)
	}
	if ev := e.notifier.last(); ev == nil || ev.action != ActionCreate || ev.audience != models.AudienceAll {
		t.Fatalf("event = %+v, want broadcast create", ev)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	ctx := context.Background()

	_, err := e.svc.Create(ctx, worker, CreateInput{Service: "cleaning", Date: "d", Time: "t"})
	wantKind(t, err, KindForbidden)

	_, err = e.svc.Create(ctx, customer, CreateInput{Service: "cleaning"})
	wantKind(t, err, KindValidation)

	_, err = e.svc.Create(ctx, customer, CreateInput{Service: "plumbing", Date: "d", Time: "t"})
	wantKind(t, err, KindValidation)
}

func TestAcceptAssignsWorkerAndBroker(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.addBroker("brk-1", "Acme", "AB12CD")
	e.linkWorkerToBroker("wrk-1", "brk-1")
	e.seedPending("bk-1", "cust-1", "cleaning", 1000)
	ctx := context.Background()

	b, err := e.svc.Accept(ctx, worker, "bk-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if b.Status != models.StatusConfirmed || b.WorkerID != "wrk-1" || b.WorkerEmail != "wrk-1@x.test" {
		t.Fatalf("booking = %+v, want confirmed with worker snapshot", b)
	}
	if b.BrokerID != "brk-1" || b.BrokerCode != "AB12CD" || b.BrokerName != "Acme" {
		t.Fatalf("broker attribution = %s/%s/%s", b.BrokerID, b.BrokerCode, b.BrokerName)
	}
	if b.BrokerCommissionRate != 5 || b.BrokerCommissionAmount != 0 {
		t.Fatalf("commission bookkeeping = %v/%v, want 5/0 until settlement", b.BrokerCommissionRate, b.BrokerCommissionAmount)
	}
	if len(e.push.sent) != 1 || e.push.sent[0] != "cust-1" {
		t.Fatalf("push went to %v, want the customer", e.push.sent)
	}
}

func TestAcceptGuards(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	plumber := e.addWorker("wrk-2", "Pete", []string{"plumbing"})
	ctx := context.Background()

	_, err := e.svc.Accept(ctx, worker, "missing")
	wantKind(t, err, KindNotFound)

	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	_, err = e.svc.Accept(ctx, plumber, "bk-1")
	wantKind(t, err, KindForbidden)

	if _, err := e.svc.Accept(ctx, worker, "bk-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	_, err = e.svc.Accept(ctx, worker, "bk-1")
	wantKind(t, err, KindConflict)
}

func TestAcceptLosesRace(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.addWorker("wrk-2", "Other", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	// Another worker slips in between the pre-checks and the write.
	e.repo.beforeAccept = func() {
		e.repo.beforeAccept = nil
		e.repo.UpdateFields("bk-1", bson.M{
			"worker_id": "wrk-2",
			"status":    models.StatusConfirmed,
		})
	}

	_, err := e.svc.Accept(ctx, worker, "bk-1")
	wantKind(t, err, KindConflict)
	if got := e.repo.get("bk-1"); got.WorkerID != "wrk-2" {
		t.Fatalf("winner = %s, want wrk-2", got.WorkerID)
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		b, err := e.svc.Reject(ctx, worker, "bk-1")
		if err != nil {
			t.Fatalf("Reject #%d: %v", i+1, err)
		}
		if len(b.RejectedByWorkerIDs) != 1 || b.RejectedByWorkerIDs[0] != "wrk-1" {
			t.Fatalf("rejections = %v, want [wrk-1]", b.RejectedByWorkerIDs)
		}
		if b.Status != models.StatusPending {
			t.Fatalf("status = %s, reject must not change it", b.Status)
		}
	}
}

func TestAssignedWorkerCannotReject(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	// Pending but already carrying the worker id (partial historical write).
	e.repo.UpdateFields("bk-1", bson.M{"worker_id": "wrk-1"})

	_, err := e.svc.Reject(context.Background(), worker, "bk-1")
	wantKind(t, err, KindConflict)
}

func TestAcceptClearsRejections(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	worker2 := e.addWorker("wrk-2", "Other", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	if _, err := e.svc.Reject(ctx, Actor{ID: "wrk-1", Role: models.RoleWorker}, "bk-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	b, err := e.svc.Accept(ctx, worker2, "bk-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(b.RejectedByWorkerIDs) != 0 {
		t.Fatalf("rejections = %v, want cleared on acceptance", b.RejectedByWorkerIDs)
	}
}

func TestCancelByCustomerWindow(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	e.seedPending("bk-2", "cust-1", "cleaning", 500)
	ctx := context.Background()

	e.advance(5 * time.Minute)
	b, err := e.svc.CancelByCustomer(ctx, customer, "bk-1")
	if err != nil {
		t.Fatalf("CancelByCustomer: %v", err)
	}
	if b.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}

	// Past the window the booking has already expired to failed, which also
	// makes it non-cancellable.
	e.advance(10 * time.Minute)
	_, err = e.svc.CancelByCustomer(ctx, customer, "bk-2")
	wantKind(t, err, KindConflict)
	if got := e.repo.get("bk-2"); got.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed after expiry sweep", got.Status)
	}
}

func TestCancelOtherCustomersBooking(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	other := e.addCustomer("cust-2", "Eve")
	e.seedPending("bk-1", "cust-1", "cleaning", 500)

	// Ownership scoping: someone else's booking behaves as absent.
	_, err := e.svc.CancelByCustomer(context.Background(), other, "bk-1")
	wantKind(t, err, KindNotFound)
}

func TestCancelByWorker(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	other := e.addWorker("wrk-2", "Other", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	if _, err := e.svc.Accept(ctx, worker, "bk-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	_, err := e.svc.CancelByWorker(ctx, other, "bk-1")
	wantKind(t, err, KindForbidden)

	b, err := e.svc.CancelByWorker(ctx, worker, "bk-1")
	if err != nil {
		t.Fatalf("CancelByWorker: %v", err)
	}
	if b.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}

	_, err = e.svc.CancelByWorker(ctx, worker, "bk-1")
	wantKind(t, err, KindConflict)
}

func TestMarkNotProvided(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	// Unassigned booking cannot be marked.
	_, err := e.svc.MarkNotProvided(ctx, customer, "bk-1")
	wantKind(t, err, KindConflict)

	if _, err := e.svc.Accept(ctx, worker, "bk-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	b, err := e.svc.MarkNotProvided(ctx, customer, "bk-1")
	if err != nil {
		t.Fatalf("MarkNotProvided: %v", err)
	}
	if b.Status != models.StatusNotProvided {
		t.Fatalf("status = %s, want not-provided", b.Status)
	}

	// Terminal now.
	_, err = e.svc.MarkNotProvided(ctx, customer, "bk-1")
	wantKind(t, err, KindConflict)
}

func TestReview(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	_, err := e.svc.Review(ctx, customer, "bk-1", 0, "")
	wantKind(t, err, KindValidation)
	_, err = e.svc.Review(ctx, customer, "bk-1", 6, "")
	wantKind(t, err, KindValidation)
	_, err = e.svc.Review(ctx, customer, "bk-1", 4, strings.Repeat("x", 501))
	wantKind(t, err, KindValidation)

	// Pending is not reviewable.
	_, err = e.svc.Review(ctx, customer, "bk-1", 4, "fine")
	wantKind(t, err, KindConflict)

	if _, err := e.svc.Accept(ctx, worker, "bk-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	b, err := e.svc.Review(ctx, customer, "bk-1", 4, "solid work")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if b.Rating != 4 || b.Feedback != "solid work" || b.Status != models.StatusConfirmed {
		t.Fatalf("booking = %+v, review must not change status", b)
	}

	// A later review overwrites the earlier one.
	b, err = e.svc.Review(ctx, customer, "bk-1", 2, "showed up late")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if b.Rating != 2 || b.Feedback != "showed up late" {
		t.Fatalf("review overwrite failed: %+v", b)
	}
}

func TestSoftDeleteHidesFromCustomerOnly(t *testing.T) {
	e := newEnv()
	customer := e.addCustomer("cust-1", "Cathy")
	broker := e.addBroker("brk-1", "Acme", "AB12CD")
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	e.repo.UpdateFields("bk-1", bson.M{"broker_id": "brk-1"})
	ctx := context.Background()

	if err := e.svc.SoftDelete(ctx, customer, "bk-1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	mine, err := e.svc.ListForCustomer(ctx, customer)
	if err != nil {
		t.Fatalf("ListForCustomer: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("customer still sees %d bookings", len(mine))
	}

	// The document survives and other views still see it.
	brokerView, err := e.svc.ListForBroker(ctx, broker)
	if err != nil {
		t.Fatalf("ListForBroker: %v", err)
	}
	if len(brokerView) != 1 {
		t.Fatalf("broker sees %d bookings, want 1", len(brokerView))
	}
}

func TestWorkerDashboard(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-open", "cust-1", "cleaning", 500)
	e.seedPending("bk-mine", "cust-1", "cleaning", 500)
	e.seedPending("bk-other", "cust-1", "plumbing", 500)
	ctx := context.Background()

	if _, err := e.svc.Accept(ctx, worker, "bk-mine"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	dash, err := e.svc.ListForWorker(ctx, worker)
	if err != nil {
		t.Fatalf("ListForWorker: %v", err)
	}
	if len(dash.Available) != 1 || dash.Available[0].ID != "bk-open" {
		t.Fatalf("available = %+v, want just bk-open", dash.Available)
	}
	if len(dash.Assigned) != 1 || dash.Assigned[0].ID != "bk-mine" {
		t.Fatalf("assigned = %+v, want just bk-mine", dash.Assigned)
	}
}

func TestExpiredBookingIsImmutable(t *testing.T) {
	e := newEnv()
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)
	ctx := context.Background()

	e.advance(11 * time.Minute)

	// The sweep inside Accept fails the booking first; the accept then loses.
	_, err := e.svc.Accept(ctx, worker, "bk-1")
	wantKind(t, err, KindConflict)
	if got := e.repo.get("bk-1"); got.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}

	_, err = e.svc.Reject(ctx, worker, "bk-1")
	wantKind(t, err, KindConflict)
}

func TestAcceptSchedulesReminder(t *testing.T) {
	e := newEnv()
	sched := &recordScheduler{}
	e.svc.Reminders = sched
	e.addCustomer("cust-1", "Cathy")
	worker := e.addWorker("wrk-1", "Wanda", []string{"cleaning"})
	e.seedPending("bk-1", "cust-1", "cleaning", 500)

	if _, err := e.svc.Accept(context.Background(), worker, "bk-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(sched.payloads) != 1 {
		t.Fatalf("scheduled %d reminders, want 1", len(sched.payloads))
	}
	p := sched.payloads[0]
	if p.BookingID != "bk-1" || p.CustomerID != "cust-1" || p.WorkerID != "wrk-1" {
		t.Fatalf("payload = %+v", p)
	}
	want := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	if !sched.fireAts[0].Equal(want) {
		t.Fatalf("fireAt = %v, want an hour before the slot", sched.fireAts[0])
	}
}

func TestCapProgress(t *testing.T) {
	e := newEnv()
	broker := e.addBroker("brk-1", "Acme", "AB12CD")
	e.addWorker("wrk-1", "Wanda", []string{"cleaning"})

	// Three settled commission-bearing jobs for the pair.
	for i := 0; i < 3; i++ {
		e.repo.put(models.Booking{
			ID:                     fmt.Sprintf("done-%d", i),
			Status:                 models.StatusCompleted,
			WorkerID:               "wrk-1",
			BrokerID:               "brk-1",
			Amount:                 500,
			BrokerCommissionRate:   5,
			BrokerCommissionAmount: 25,
		})
	}
	// A capped settlement does not count.
	e.repo.put(models.Booking{
		ID:       "done-capped",
		Status:   models.StatusCompleted,
		WorkerID: "wrk-1",
		BrokerID: "brk-1",
		Amount:   500,
	})

	status, err := e.svc.CapProgress(context.Background(), broker, "wrk-1")
	if err != nil {
		t.Fatalf("CapProgress: %v", err)
	}
	if status.UsedJobs != 3 || status.Limit != 10 || status.Reached() {
		t.Fatalf("status = %+v, want 3/10", status)
	}

	_, err = e.svc.CapProgress(context.Background(), broker, "missing")
	wantKind(t, err, KindNotFound)
}
