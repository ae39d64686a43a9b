package khata

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khata-app/khata/internal/shared"
)

// Observer receives the outcome of every ledger operation.
type Observer interface {
	ObserveLedger(op string, err error)
}

// Operation names reported to the Observer.
const (
	OpCreate     = "create"
	OpAddItem    = "add_item"
	OpDeleteItem = "delete_item"
	OpAddAmount  = "add_amount"
	OpPay        = "pay"
	OpDelete     = "delete"
)

// Service applies ledger operations on behalf of an authenticated owner.
type Service struct {
	repo     Repository
	locker   shared.Locker
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. A nil locker falls back to an in-process locker.
func NewService(repo Repository, locker shared.Locker, observer Observer, logger *slog.Logger) *Service {
	if locker == nil {
		locker = shared.NewLocalLocker(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		observer: observer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session for the owner.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*Session, error) {
	sess, err := NewSession(ownerID, in, s.now())
	if err != nil {
		s.observe(OpCreate, err)
		return nil, err
	}
	if err := s.repo.Insert(ctx, sess); err != nil {
		s.observe(OpCreate, err)
		return nil, err
	}
	s.observe(OpCreate, nil)
	s.logger.Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("owner_id", ownerID),
		slog.Int("items", len(sess.Items)),
	)
	return sess, nil
}

// Get returns one session owned by the caller.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*Session, error) {
	if !validID(id) {
		return nil, ErrSessionNotFound
	}
	return s.repo.Get(ctx, ownerID, id)
}

// List returns the caller's sessions, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Session, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete removes a session owned by the caller.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		s.observe(OpDelete, ErrSessionNotFound)
		return ErrSessionNotFound
	}
	unlock, err := s.locker.Lock(ctx, shared.SessionLockKey(id))
	if err != nil {
		s.observe(OpDelete, err)
		return err
	}
	defer unlock()
	err = s.repo.Delete(ctx, ownerID, id)
	s.observe(OpDelete, err)
	return err
}

// AddItem appends a line item; grandTotal and remaining both grow by its total.
func (s *Service) AddItem(ctx context.Context, ownerID, id string, in ItemInput) (*Session, error) {
	if err := ValidateItem(in); err != nil {
		s.observe(OpAddItem, err)
		return nil, err
	}
	return s.mutate(ctx, OpAddItem, ownerID, id, func(sess *Session) error {
		_, err := sess.AddItem(in, s.now())
		return err
	})
}

// DeleteItem removes a line item and lowers both totals, floored at zero.
func (s *Service) DeleteItem(ctx context.Context, ownerID, id, itemID string) (*Session, error) {
	return s.mutate(ctx, OpDeleteItem, ownerID, id, func(sess *Session) error {
		_, err := sess.DeleteItem(itemID)
		return err
	})
}

// AddAmount raises remaining by amount.
func (s *Service) AddAmount(ctx context.Context, ownerID, id string, amount decimal.Decimal) (*Session, error) {
	if err := ValidateAmount(amount); err != nil {
		s.observe(OpAddAmount, err)
		return nil, err
	}
	return s.mutate(ctx, OpAddAmount, ownerID, id, func(sess *Session) error {
		return sess.AddAmount(amount)
	})
}

// Pay lowers remaining by amount, floored at zero.
func (s *Service) Pay(ctx context.Context, ownerID, id string, amount decimal.Decimal) (*Session, error) {
	if err := ValidateAmount(amount); err != nil {
		s.observe(OpPay, err)
		return nil, err
	}
	return s.mutate(ctx, OpPay, ownerID, id, func(sess *Session) error {
		return sess.Pay(amount)
	})
}

// mutate runs one read-modify-write cycle inside the session's lock scope.
func (s *Service) mutate(ctx context.Context, op, ownerID, id string, fn func(*Session) error) (*Session, error) {
	if !validID(id) {
		s.observe(op, ErrSessionNotFound)
		return nil, ErrSessionNotFound
	}
	unlock, err := s.locker.Lock(ctx, shared.SessionLockKey(id))
	if err != nil {
		s.observe(op, err)
		return nil, err
	}
	defer unlock()

	sess, err := s.repo.Update(ctx, ownerID, id, func(sess *Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		sess.UpdatedAt = s.now()
		return nil
	})
	s.observe(op, err)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session updated",
		slog.String("op", op),
		slog.String("session_id", id),
		slog.String("grand_total", sess.GrandTotal.String()),
		slog.String("remaining", sess.Remaining.String()),
	)
	return sess, nil
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveLedger(op, err)
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
