// Package mongo stores each session as one document with embedded items.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/shared"
)

const (
	sessionsCollection = "sessions"
	usersCollection    = "users"
)

// Store implements khata.Repository and auth.Repository on MongoDB.
type Store struct {
	sessions *mongo.Collection
	users    *mongo.Collection
}

// New constructs a Store on database db.
func New(db *mongo.Database) *Store {
	return &Store{
		sessions: db.Collection(sessionsCollection),
		users:    db.Collection(usersCollection),
	}
}

// Migrate creates the indexes the queries rely on.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("store/mongo: migrate users indexes: %w", err)
	}
	if _, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("store/mongo: migrate sessions indexes: %w", err)
	}
	return nil
}

type itemDoc struct {
	ID        string          `bson:"_id"`
	Name      string          `bson:"item"`
	Quantity  bson.Decimal128 `bson:"quantity"`
	UnitPrice bson.Decimal128 `bson:"price"`
	Total     bson.Decimal128 `bson:"total"`
	CreatedAt time.Time       `bson:"created_at"`
}

type sessionDoc struct {
	ID            string          `bson:"_id"`
	OwnerID       string          `bson:"owner_id"`
	CustomerName  string          `bson:"customer_name"`
	ContactNumber string          `bson:"contact_number"`
	Items         []itemDoc       `bson:"items"`
	GrandTotal    bson.Decimal128 `bson:"grand_total"`
	Remaining     bson.Decimal128 `bson:"remaining"`
	Version       int64           `bson:"version"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	ProfileImage string    `bson:"profile_image_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// Insert stores a new session.
func (s *Store) Insert(ctx context.Context, sess *khata.Session) error {
	doc, err := toSessionDoc(sess, 1)
	if err != nil {
		return err
	}
	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store/mongo: insert session: %w", err)
	}
	return nil
}

// Get returns one session owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*khata.Session, error) {
	doc, err := s.findSession(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return doc.toSession()
}

// List returns the owner's sessions, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]khata.Session, error) {
	cursor, err := s.sessions.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("store/mongo: list sessions: %w", err)
	}
	var docs []sessionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store/mongo: list sessions decode: %w", err)
	}
	sessions := make([]khata.Session, 0, len(docs))
	for i := range docs {
		sess, err := docs[i].toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

// Update applies fn and replaces the document only if no other writer bumped its version.
func (s *Store) Update(ctx context.Context, ownerID, id string, fn func(*khata.Session) error) (*khata.Session, error) {
	current, err := s.findSession(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	sess, err := current.toSession()
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	next, err := toSessionDoc(sess, current.Version+1)
	if err != nil {
		return nil, err
	}
	res, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": id, "owner_id": ownerID, "version": current.Version}, next)
	if err != nil {
		return nil, fmt.Errorf("store/mongo: update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, shared.ErrBusy
	}
	return sess, nil
}

// Delete removes a session owned by ownerID.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("store/mongo: delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return khata.ErrSessionNotFound
	}
	return nil
}

// CreateUser inserts a user, mapping the unique email index to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		ProfileImage: user.ProfileImageURL,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shared.ErrEmailTaken
		}
		return fmt.Errorf("store/mongo: create user: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindByID fetches a user by ID.
func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*auth.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("store/mongo: find user: %w", err)
	}
	return &auth.User{
		ID:              doc.ID,
		Name:            doc.Name,
		Email:           doc.Email,
		PasswordHash:    doc.PasswordHash,
		ProfileImageURL: doc.ProfileImage,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) findSession(ctx context.Context, ownerID, id string) (*sessionDoc, error) {
	var doc sessionDoc
	if err := s.sessions.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, khata.ErrSessionNotFound
		}
		return nil, fmt.Errorf("store/mongo: get session: %w", err)
	}
	return &doc, nil
}

func toSessionDoc(sess *khata.Session, version int64) (*sessionDoc, error) {
	doc := &sessionDoc{
		ID:            sess.ID,
		OwnerID:       sess.OwnerID,
		CustomerName:  sess.CustomerName,
		ContactNumber: sess.ContactNumber,
		Items:         make([]itemDoc, 0, len(sess.Items)),
		Version:       version,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
	}
	var err error
	if doc.GrandTotal, err = toDecimal128(sess.GrandTotal); err != nil {
		return nil, err
	}
	if doc.Remaining, err = toDecimal128(sess.Remaining); err != nil {
		return nil, err
	}
	for _, item := range sess.Items {
		d := itemDoc{ID: item.ID, Name: item.Name, CreatedAt: item.CreatedAt}
		if d.Quantity, err = toDecimal128(item.Quantity); err != nil {
			return nil, err
		}
		if d.UnitPrice, err = toDecimal128(item.UnitPrice); err != nil {
			return nil, err
		}
		if d.Total, err = toDecimal128(item.Total); err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, d)
	}
	return doc, nil
}

func (d *sessionDoc) toSession() (*khata.Session, error) {
	sess := &khata.Session{
		ID:            d.ID,
		OwnerID:       d.OwnerID,
		CustomerName:  d.CustomerName,
		ContactNumber: d.ContactNumber,
		Items:         make([]khata.LineItem, 0, len(d.Items)),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	var err error
	if sess.GrandTotal, err = fromDecimal128(d.GrandTotal); err != nil {
		return nil, err
	}
	if sess.Remaining, err = fromDecimal128(d.Remaining); err != nil {
		return nil, err
	}
	for _, it := range d.Items {
		item := khata.LineItem{ID: it.ID, Name: it.Name, CreatedAt: it.CreatedAt.UTC()}
		if item.Quantity, err = fromDecimal128(it.Quantity); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = fromDecimal128(it.UnitPrice); err != nil {
			return nil, err
		}
		if item.Total, err = fromDecimal128(it.Total); err != nil {
			return nil, err
		}
		sess.Items = append(sess.Items, item)
	}
	return sess, nil
}

func toDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, fmt.Errorf("store/mongo: encode decimal %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v bson.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("store/mongo: decode decimal %s: %w", v.String(), err)
	}
	return d, nil
}

var (
	_ khata.Repository = (*Store)(nil)
	_ auth.Repository  = (*Store)(nil)
)
