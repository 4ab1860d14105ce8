package registrations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/gatherhub/backend/internal/models"
)

// fakeStore is an in-memory Store. WithTx serializes units of work on a mutex
// and rolls the state back when fn returns an error, so the manager's
// decisions see the same atomicity the row-locked repository provides.
type fakeStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
	regs   map[uuid.UUID]*models.Registration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[uuid.UUID]*models.Event),
		regs:   make(map[uuid.UUID]*models.Registration),
	}
}

func (s *fakeStore) addEvent(status string, capacity *int) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.Event{ID: uuid.New(), Title: "meetup", Status: status, Capacity: capacity}
	s.events[e.ID] = e
	return e
}

func (s *fakeStore) registeredCount(eventID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID].RegisteredCount
}

func (s *fakeStore) rowCount(eventID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.regs {
		if r.EventID == eventID {
			n++
		}
	}
	return n
}

func (s *fakeStore) snapshot() (map[uuid.UUID]models.Event, map[uuid.UUID]models.Registration) {
	events := make(map[uuid.UUID]models.Event, len(s.events))
	for id, e := range s.events {
		events[id] = *e
	}
	regs := make(map[uuid.UUID]models.Registration, len(s.regs))
	for id, r := range s.regs {
		regs[id] = *r
	}
	return events, regs
}

func (s *fakeStore) restore(events map[uuid.UUID]models.Event, regs map[uuid.UUID]models.Registration) {
	s.events = make(map[uuid.UUID]*models.Event, len(events))
	for id, e := range events {
		cp := e
		s.events[id] = &cp
	}
	s.regs = make(map[uuid.UUID]*models.Registration, len(regs))
	for id, r := range regs {
		cp := r
		s.regs[id] = &cp
	}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, regs := s.snapshot()
	if err := fn(ctx, &fakeTx{store: s}); err != nil {
		s.restore(events, regs)
		return err
	}
	return nil
}

func (s *fakeStore) GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findRegistration(eventID, userID), nil
}

func (s *fakeStore) findRegistration(eventID, userID uuid.UUID) *models.Registration {
	for _, r := range s.regs {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp
		}
	}
	return nil
}

// fakeTx operates on the store directly; the WithTx mutex is already held.
type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) EventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	e, ok := t.store.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *fakeTx) RegistrationExists(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	return t.store.findRegistration(eventID, userID) != nil, nil
}

func (t *fakeTx) GetRegistration(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	return t.store.findRegistration(eventID, userID), nil
}

func (t *fakeTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	cp := *reg
	t.store.regs[reg.ID] = &cp
	return nil
}

func (t *fakeTx) UpdateRegistrationStatus(ctx context.Context, id uuid.UUID, status string) error {
	r, ok := t.store.regs[id]
	if !ok {
		return ErrRegistrationNotFound
	}
	r.Status = status
	return nil
}

func (t *fakeTx) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	delete(t.store.regs, id)
	return nil
}

func (t *fakeTx) AdjustRegisteredCount(ctx context.Context, eventID uuid.UUID, delta int) (int, error) {
	e, ok := t.store.events[eventID]
	if !ok {
		return 0, ErrEventNotFound
	}
	e.RegisteredCount += delta
	if e.RegisteredCount < 0 {
		e.RegisteredCount = 0
	}
	return e.RegisteredCount, nil
}

func intPtr(n int) *int { return &n }

func TestCreateRegistersAndIncrementsCounter(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(10))
	m := NewManager(store, nil)
	user := uuid.New()

	reg, err := m.Create(context.Background(), event.ID, user)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reg.Status != models.RegistrationStatusRegistered {
		t.Fatalf("status = %q, want registered", reg.Status)
	}
	if got := store.registeredCount(event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
	if got := store.rowCount(event.ID); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestCreatePreconditions(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)
	user := uuid.New()

	draft := store.addEvent(models.EventStatusDraft, nil)
	closed := store.addEvent(models.EventStatusClosed, nil)
	full := store.addEvent(models.EventStatusPublished, intPtr(0))

	tests := []struct {
		name    string
		eventID uuid.UUID
		want    error
	}{
		{"missing event", uuid.New(), ErrEventNotFound},
		{"draft event", draft.ID, ErrEventNotOpen},
		{"closed event", closed.ID, ErrEventNotOpen},
		{"zero capacity", full.ID, ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Create(context.Background(), tt.eventID, user); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateDuplicateIsRejected(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, nil)
	m := NewManager(store, nil)
	user := uuid.New()

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := m.Create(context.Background(), event.ID, user); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrAlreadyRegistered", err)
	}
	if got := store.registeredCount(event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1 after rejected duplicate", got)
	}
}

func TestCreateConcurrentLastSlot(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(1))
	m := NewManager(store, nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Create(context.Background(), event.ID, uuid.New())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, capacity int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacityExceeded):
			capacity++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || capacity != 1 {
		t.Fatalf("got %d successes and %d capacity rejections, want 1 and 1", ok, capacity)
	}
	if got := store.registeredCount(event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1", got)
	}
	if got := store.rowCount(event.ID); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}
}

func TestCreateConcurrentStress(t *testing.T) {
	const capacity = 10
	const attempts = 25

	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(capacity))
	m := NewManager(store, nil)

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Create(context.Background(), event.ID, uuid.New())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != capacity {
		t.Fatalf("%d registrations succeeded, want %d", ok, capacity)
	}
	if got := store.registeredCount(event.ID); got != capacity {
		t.Fatalf("registered_count = %d, want %d", got, capacity)
	}
	if got := store.rowCount(event.ID); got != capacity {
		t.Fatalf("rows = %d, want %d", got, capacity)
	}
}

func TestConfirmDeposit(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, nil)
	m := NewManager(store, nil)
	user := uuid.New()

	if _, err := m.ConfirmDeposit(context.Background(), event.ID, user); !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("err = %v, want ErrRegistrationNotFound", err)
	}

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	reg, err := m.ConfirmDeposit(context.Background(), event.ID, user)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if reg.Status != models.RegistrationStatusDeposited {
		t.Fatalf("status = %q, want deposited", reg.Status)
	}

	if _, err := m.ConfirmDeposit(context.Background(), event.ID, user); !errors.Is(err, ErrDepositAlreadyConfirmed) {
		t.Fatalf("repeat err = %v, want ErrDepositAlreadyConfirmed", err)
	}
}

func TestRemoveDeletesAndDecrements(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(5))
	m := NewManager(store, nil)
	user := uuid.New()

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Remove(context.Background(), event.ID, user); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := store.registeredCount(event.ID); got != 0 {
		t.Fatalf("registered_count = %d, want 0", got)
	}
	if got := store.rowCount(event.ID); got != 0 {
		t.Fatalf("rows = %d, want 0", got)
	}

	// Registering again after cancellation is allowed.
	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if got := store.registeredCount(event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1 after re-register", got)
	}
}

func TestRemoveAbsentRegistration(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(5))
	other := uuid.New()
	m := NewManager(store, nil)

	if _, err := m.Create(context.Background(), event.ID, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.Remove(context.Background(), event.ID, uuid.New()); !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("err = %v, want ErrRegistrationNotFound", err)
	}
	if err := m.Remove(context.Background(), uuid.New(), other); !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("missing event err = %v, want ErrRegistrationNotFound", err)
	}
	if got := store.registeredCount(event.ID); got != 1 {
		t.Fatalf("registered_count = %d, want 1 untouched", got)
	}
}

func TestRemoveClampsDriftedCounter(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, intPtr(5))
	m := NewManager(store, nil)
	user := uuid.New()

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Simulate drift: the row exists but the counter already reads zero.
	store.mu.Lock()
	store.events[event.ID].RegisteredCount = 0
	store.mu.Unlock()

	if err := m.Remove(context.Background(), event.ID, user); err != nil {
		t.Fatalf("remove with drifted counter: %v", err)
	}
	if got := store.registeredCount(event.ID); got != 0 {
		t.Fatalf("registered_count = %d, want clamped at 0", got)
	}
	if got := store.rowCount(event.ID); got != 0 {
		t.Fatalf("rows = %d, want 0", got)
	}
}

func TestRemoveAllowedFromDepositedStatus(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, nil)
	m := NewManager(store, nil)
	user := uuid.New()

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ConfirmDeposit(context.Background(), event.ID, user); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := m.Remove(context.Background(), event.ID, user); err != nil {
		t.Fatalf("remove deposited: %v", err)
	}
	if got := store.rowCount(event.ID); got != 0 {
		t.Fatalf("rows = %d, want 0", got)
	}
}

func TestGetStatus(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, nil)
	m := NewManager(store, nil)
	user := uuid.New()

	view, err := m.GetStatus(context.Background(), event.ID, user)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.IsRegistered {
		t.Fatal("IsRegistered = true for absent registration")
	}
	if view.RegisteredAt != nil {
		t.Fatal("RegisteredAt set for absent registration")
	}

	if _, err := m.Create(context.Background(), event.ID, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	view, err = m.GetStatus(context.Background(), event.ID, user)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !view.IsRegistered || view.Status != models.RegistrationStatusRegistered {
		t.Fatalf("view = %+v, want registered", view)
	}
	if view.RegisteredAt == nil || view.RegisteredAt.IsZero() {
		t.Fatal("RegisteredAt missing")
	}

	if _, err := m.ConfirmDeposit(context.Background(), event.ID, user); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	view, err = m.GetStatus(context.Background(), event.ID, user)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.Status != models.RegistrationStatusDeposited {
		t.Fatalf("status = %q, want deposited", view.Status)
	}
}

func TestCreateUnlimitedCapacity(t *testing.T) {
	store := newFakeStore()
	event := store.addEvent(models.EventStatusPublished, nil)
	m := NewManager(store, nil)

	for i := 0; i < 50; i++ {
		if _, err := m.Create(context.Background(), event.ID, uuid.New()); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if got := store.registeredCount(event.ID); got != 50 {
		t.Fatalf("registered_count = %d, want 50", got)
	}
}
