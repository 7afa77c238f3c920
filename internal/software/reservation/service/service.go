package service

import (
	"context"
	"sync"
	"time"

	"pickup-market/internal/domain/contact"
	"pickup-market/internal/domain/user"
	"pickup-market/internal/general/logger"
	"pickup-market/internal/ports"
)

// Committer flushes the cart through a single batch call.
type Committer interface {
	Commit(ctx context.Context, creator ports.ContactCreator) ([]contact.Contact, error)
}

type inflightKey struct {
	contactID int64
	op        string
}

type reservationService struct {
	logger *logger.Logger
	api    ports.ContactAPI
	cart   Committer
	role   user.Role
	now    func() time.Time

	mu       sync.Mutex
	inflight map[inflightKey]struct{}
}

// NewReservationService builds the lifecycle service for one viewer role.
// cart is only used by the driver role and may be nil for sellers.
func NewReservationService(
	logger *logger.Logger,
	api ports.ContactAPI,
	cart Committer,
	role user.Role,
) ports.ReservationService {
	return &reservationService{
		logger:   logger,
		api:      api,
		cart:     cart,
		role:     role,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[inflightKey]struct{}),
	}
}

// acquire marks (contactID, op) as running. The returned func releases it.
func (s *reservationService) acquire(contactID int64, op string) (func(), error) {
	key := inflightKey{contactID: contactID, op: op}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, ports.ErrInFlight
	}
	s.inflight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}
