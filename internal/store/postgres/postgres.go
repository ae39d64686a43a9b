// Package postgres stores sessions as rows with a JSONB item list.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/platform/db"
	"github.com/khata-app/khata/internal/shared"
)

//go:embed schema.sql
var schema string

// Store implements khata.Repository and auth.Repository on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

const sessionColumns = `id, owner_id, customer_name, contact_number, items, grand_total::text, remaining::text, created_at, updated_at`

// Insert stores a new session.
func (s *Store) Insert(ctx context.Context, sess *khata.Session) error {
	items, err := json.Marshal(sess.Items)
	if err != nil {
		return fmt.Errorf("store/postgres: encode items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO khata_sessions (id, owner_id, customer_name, contact_number, items, grand_total, remaining, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8,$9)`,
		sess.ID, sess.OwnerID, sess.CustomerName, sess.ContactNumber, items,
		sess.GrandTotal.String(), sess.Remaining.String(), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store/postgres: insert session: %w", err)
	}
	return nil
}

// Get returns one session owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*khata.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE id=$1 AND owner_id=$2`, id, ownerID)
	return scanSession(row)
}

// List returns the owner's sessions, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]khata.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: list sessions: %w", err)
	}
	defer rows.Close()
	sessions := []khata.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: list sessions: %w", err)
	}
	return sessions, nil
}

// Update locks the row, applies fn and writes the result back in one transaction.
func (s *Store) Update(ctx context.Context, ownerID, id string, fn func(*khata.Session) error) (*khata.Session, error) {
	var out *khata.Session
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE id=$1 AND owner_id=$2 FOR UPDATE`, id, ownerID)
		sess, err := scanSession(row)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		items, err := json.Marshal(sess.Items)
		if err != nil {
			return fmt.Errorf("store/postgres: encode items: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE khata_sessions
SET items=$3, grand_total=$4::numeric, remaining=$5::numeric, updated_at=$6
WHERE id=$1 AND owner_id=$2`, id, ownerID, items, sess.GrandTotal.String(), sess.Remaining.String(), sess.UpdatedAt); err != nil {
			return fmt.Errorf("store/postgres: update session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		if db.HasCode(err, db.CodeSerializationFailure, db.CodeDeadlockDetected) {
			return nil, shared.ErrBusy
		}
		return nil, err
	}
	return out, nil
}

// Delete removes a session owned by ownerID.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM khata_sessions WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store/postgres: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return khata.ErrSessionNotFound
	}
	return nil
}

// CreateUser inserts a user, mapping the unique email constraint to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, profile_image_url, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, user.ID, user.Name, user.Email, user.PasswordHash, user.ProfileImageURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if db.HasCode(err, db.CodeUniqueViolation) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("store/postgres: create user: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, `SELECT id, name, email, password_hash, profile_image_url, created_at, updated_at FROM users WHERE email=$1`, email)
}

// FindByID fetches a user by ID.
func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, `SELECT id, name, email, password_hash, profile_image_url, created_at, updated_at FROM users WHERE id=$1`, id)
}

func (s *Store) findUser(ctx context.Context, query, arg string) (*auth.User, error) {
	var u auth.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ProfileImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("store/postgres: find user: %w", err)
	}
	return &u, nil
}

func scanSession(row pgx.Row) (*khata.Session, error) {
	var (
		sess       khata.Session
		items      []byte
		grandTotal string
		remaining  string
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.CustomerName, &sess.ContactNumber, &items, &grandTotal, &remaining, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, khata.ErrSessionNotFound
		}
		return nil, fmt.Errorf("store/postgres: scan session: %w", err)
	}
	if err := json.Unmarshal(items, &sess.Items); err != nil {
		return nil, fmt.Errorf("store/postgres: decode items: %w", err)
	}
	if sess.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return nil, fmt.Errorf("store/postgres: decode grand total: %w", err)
	}
	if sess.Remaining, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("store/postgres: decode remaining: %w", err)
	}
	if sess.Items == nil {
		sess.Items = []khata.LineItem{}
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	return &sess, nil
}

var (
	_ khata.Repository = (*Store)(nil)
	_ auth.Repository  = (*Store)(nil)
)
