// Package sqlite provides an embedded single-file store using the pure Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/shared"
)

// Store implements khata.Repository and auth.Repository on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating when needed) the database at path and runs migrations.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store/sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open: %w", err)
	}
	// One connection serialises writers, so read-modify-write never hits SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store/sqlite: busy timeout: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store/sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const sessionColumns = `id, owner_id, customer_name, contact_number, items, grand_total, remaining, created_at, updated_at`

// Insert stores a new session.
func (s *Store) Insert(ctx context.Context, sess *khata.Session) error {
	items, err := json.Marshal(sess.Items)
	if err != nil {
		return fmt.Errorf("store/sqlite: encode items: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO khata_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, sess.CustomerName, sess.ContactNumber, string(items),
		sess.GrandTotal.String(), sess.Remaining.String(),
		sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store/sqlite: insert session: %w", err)
	}
	return nil
}

// Get returns one session owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*khata.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanSession(row)
}

// List returns the owner's sessions, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]khata.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list sessions: %w", err)
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
		return nil, fmt.Errorf("store/sqlite: list sessions: %w", err)
	}
	return sessions, nil
}

// Update applies fn inside a transaction and writes the result back.
func (s *Store) Update(ctx context.Context, ownerID, id string, fn func(*khata.Session) error) (*khata.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM khata_sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	items, err := json.Marshal(sess.Items)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: encode items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE khata_sessions SET items = ?, grand_total = ?, remaining = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		string(items), sess.GrandTotal.String(), sess.Remaining.String(), sess.UpdatedAt.UnixNano(), id, ownerID,
	); err != nil {
		return nil, fmt.Errorf("store/sqlite: update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store/sqlite: commit: %w", err)
	}
	return sess, nil
}

// Delete removes a session owned by ownerID.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM khata_sessions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("store/sqlite: delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store/sqlite: delete session: %w", err)
	}
	if n == 0 {
		return khata.ErrSessionNotFound
	}
	return nil
}

// CreateUser inserts a user, mapping the unique email constraint to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, profile_image_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.ProfileImageURL, user.CreatedAt.UnixNano(), user.UpdatedAt.UnixNano(),
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("store/sqlite: create user: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, `SELECT id, name, email, password_hash, profile_image_url, created_at, updated_at FROM users WHERE email = ?`, email)
}

// FindByID fetches a user by ID.
func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, `SELECT id, name, email, password_hash, profile_image_url, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (s *Store) findUser(ctx context.Context, query, arg string) (*auth.User, error) {
	var (
		u                  auth.User
		created, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ProfileImageURL, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: find user: %w", err)
	}
	u.CreatedAt = fromUnixNano(created)
	u.UpdatedAt = fromUnixNano(updatedAt)
	return &u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*khata.Session, error) {
	var (
		sess                  khata.Session
		items                 string
		grandTotal, remaining string
		created, updatedAt    int64
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.CustomerName, &sess.ContactNumber, &items, &grandTotal, &remaining, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, khata.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &sess.Items); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode items: %w", err)
	}
	if sess.Items == nil {
		sess.Items = []khata.LineItem{}
	}
	if sess.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode grand total: %w", err)
	}
	if sess.Remaining, err = decimal.NewFromString(remaining); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode remaining: %w", err)
	}
	sess.CreatedAt = fromUnixNano(created)
	sess.UpdatedAt = fromUnixNano(updatedAt)
	return &sess, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

var (
	_ khata.Repository = (*Store)(nil)
	_ auth.Repository  = (*Store)(nil)
)
