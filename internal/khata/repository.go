package khata

import "context"

// Repository persists sessions. Every lookup is scoped by owner: a session owned by
// someone else is reported as ErrSessionNotFound.
type Repository interface {
	Insert(ctx context.Context, sess *Session) error
	Get(ctx context.Context, ownerID, id string) (*Session, error)
	// List returns the owner's sessions, newest first.
	List(ctx context.Context, ownerID string) ([]Session, error)
	// Update loads the session, applies fn and writes the result back as one document.
	// Nothing is written when fn returns an error.
	Update(ctx context.Context, ownerID, id string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, ownerID, id string) error
}
