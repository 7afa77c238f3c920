package service

import (
	"context"
	"io"
	"testing"
	"time"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/clock"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/general/scheduler"
	"pickup-market/internal/ports"
)

func TestListRefresherOnSchedule(t *testing.T) {
	log := logger.NewWithWriter("test", io.Discard)
	api := newFakeBackend()
	api.seed(7, "driver-a", contact.StatusPending)

	r := NewListRefresher(NewReservationService(log, api, nil, user.RoleSeller), log)
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	sched := scheduler.New(clock.NewFake(t0), log, 0)
	if _, err := sched.Register("contacts_refresh", 5*time.Second, r.Refresh); err != nil {
		t.Fatal(err)
	}

	if _, _, ok := r.Snapshot(); ok {
		t.Fatal("snapshot before first tick")
	}

	sched.Tick(context.Background(), t0.Add(5*time.Second))
	views, _, ok := r.Snapshot()
	if !ok || len(views) != 1 {
		t.Fatalf("after first tick: %d %v", len(views), ok)
	}

	api.seed(7, "driver-b", contact.StatusPending)
	sched.Tick(context.Background(), t0.Add(7*time.Second))
	if views, _, _ := r.Snapshot(); len(views) != 1 {
		t.Fatal("refreshed before the period elapsed")
	}
	sched.Tick(context.Background(), t0.Add(10*time.Second))
	if views, _, _ := r.Snapshot(); len(views) != 2 {
		t.Fatalf("after second tick: %d", len(views))
	}

	r.Invalidate()
	if _, _, ok := r.Snapshot(); ok {
		t.Fatal("snapshot survived invalidate")
	}
}

// slowLister blocks List until release is closed.
type slowLister struct {
	ports.ReservationService
	entered chan struct{}
	release chan struct{}
	views   []ports.ContactView
}

func (l *slowLister) List(context.Context) ([]ports.ContactView, error) {
	close(l.entered)
	<-l.release
	return l.views, nil
}

func TestInvalidateDiscardsRefreshInFlight(t *testing.T) {
	log := logger.NewWithWriter("test", io.Discard)
	lister := &slowLister{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		views:   []ports.ContactView{{Contact: contact.Contact{ID: 7, Status: contact.StatusPending}}},
	}
	r := NewListRefresher(lister, log)

	done := make(chan error, 1)
	go func() { done <- r.Refresh(context.Background()) }()

	<-lister.entered
	// a confirm lands while the list read is on the wire
	r.Invalidate()
	close(lister.release)

	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if views, _, ok := r.Snapshot(); ok {
		t.Fatalf("pre-transition list cached: %+v", views)
	}
}
