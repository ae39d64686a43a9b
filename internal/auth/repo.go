package auth

import "context"

// Repository defines persistence operations for auth module.
//
// CreateUser must return shared.ErrEmailTaken when the email already exists, and
// the finders return shared.ErrNotFound for unknown users.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}
