// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/shared"
)

// Backend is a store serving both the ledger and the auth gate.
type Backend interface {
	khata.Repository
	auth.Repository
}

// Run exercises backend through the repository contracts. newBackend must return an empty store.
func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("session round trip", func(t *testing.T) { sessionRoundTrip(t, newBackend(t)) })
	t.Run("owner scoping", func(t *testing.T) { ownerScoping(t, newBackend(t)) })
	t.Run("list order", func(t *testing.T) { listOrder(t, newBackend(t)) })
	t.Run("update", func(t *testing.T) { update(t, newBackend(t)) })
	t.Run("delete", func(t *testing.T) { deleteSession(t, newBackend(t)) })
	t.Run("users", func(t *testing.T) { users(t, newBackend(t)) })
}

func sample(t *testing.T, owner string, at time.Time) *khata.Session {
	t.Helper()
	sess, err := khata.NewSession(owner, khata.CreateInput{
		CustomerName:  "Ali",
		ContactNumber: "0300",
		Items: []khata.ItemInput{
			{Name: "Rice", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("50.25")},
			{Name: "Sugar", Quantity: decimal.RequireFromString("1.5"), UnitPrice: decimal.NewFromInt(30)},
		},
	}, at.UTC().Truncate(time.Millisecond))
	require.NoError(t, err)
	return sess
}

func sessionRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	owner := uuid.NewString()
	sess := sample(t, owner, time.Now())
	require.NoError(t, b.Insert(ctx, sess))

	got, err := b.Get(ctx, owner, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "Ali", got.CustomerName)
	assert.Equal(t, "0300", got.ContactNumber)
	require.Len(t, got.Items, 2)
	assert.Equal(t, sess.Items[0].ID, got.Items[0].ID)
	assert.Equal(t, "Rice", got.Items[0].Name)
	assert.True(t, got.Items[0].Total.Equal(decimal.RequireFromString("100.5")), got.Items[0].Total.String())
	assert.True(t, got.Items[1].Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("145.5")), got.GrandTotal.String())
	assert.True(t, got.Remaining.Equal(got.GrandTotal))
	assert.True(t, got.CreatedAt.Equal(sess.CreatedAt))
}

func ownerScoping(t *testing.T, b Backend) {
	ctx := context.Background()
	owner := uuid.NewString()
	other := uuid.NewString()
	sess := sample(t, owner, time.Now())
	require.NoError(t, b.Insert(ctx, sess))

	_, err := b.Get(ctx, other, sess.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = b.Update(ctx, other, sess.ID, func(s *khata.Session) error {
		s.Remaining = decimal.Zero
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, other, sess.ID), shared.ErrNotFound)

	list, err := b.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := b.Get(ctx, owner, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Remaining.Equal(sess.Remaining))
}

func listOrder(t *testing.T, b Backend) {
	ctx := context.Background()
	owner := uuid.NewString()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := sample(t, owner, base)
	second := sample(t, owner, base.Add(time.Minute))
	third := sample(t, owner, base.Add(2*time.Minute))
	for _, s := range []*khata.Session{second, first, third} {
		require.NoError(t, b.Insert(ctx, s))
	}

	list, err := b.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
}

func update(t *testing.T, b Backend) {
	ctx := context.Background()
	owner := uuid.NewString()
	sess := sample(t, owner, time.Now())
	require.NoError(t, b.Insert(ctx, sess))

	later := sess.UpdatedAt.Add(time.Minute)
	updated, err := b.Update(ctx, owner, sess.ID, func(s *khata.Session) error {
		if _, err := s.AddItem(khata.ItemInput{Name: "Tea", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}, later); err != nil {
			return err
		}
		if err := s.Pay(decimal.NewFromInt(5)); err != nil {
			return err
		}
		s.UpdatedAt = later
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Items, 3)

	got, err := b.Get(ctx, owner, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "Tea", got.Items[2].Name)
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("155.5")), got.GrandTotal.String())
	assert.True(t, got.Remaining.Equal(decimal.RequireFromString("150.5")), got.Remaining.String())
	assert.True(t, got.UpdatedAt.Equal(later))

	boom := errors.New("boom")
	_, err = b.Update(ctx, owner, sess.ID, func(s *khata.Session) error {
		s.Remaining = decimal.Zero
		return boom
	})
	require.ErrorIs(t, err, boom)
	got, err = b.Get(ctx, owner, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Remaining.Equal(decimal.RequireFromString("150.5")))
}

func deleteSession(t *testing.T, b Backend) {
	ctx := context.Background()
	owner := uuid.NewString()
	sess := sample(t, owner, time.Now())
	require.NoError(t, b.Insert(ctx, sess))

	require.NoError(t, b.Delete(ctx, owner, sess.ID))
	_, err := b.Get(ctx, owner, sess.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, owner, sess.ID), shared.ErrNotFound)
}

func users(t *testing.T, b Backend) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	email := uuid.NewString() + "@example.com"
	user := &auth.User{
		ID:           uuid.NewString(),
		Name:         "Sana",
		Email:        email,
		PasswordHash:    "hash",
		ProfileImageURL: "https://cdn.example.com/sana.png",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, b.CreateUser(ctx, user))

	dup := *user
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, b.CreateUser(ctx, &dup), shared.ErrEmailTaken)

	byEmail, err := b.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := b.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)
	assert.Equal(t, "https://cdn.example.com/sana.png", byID.ProfileImageURL)
	assert.True(t, byID.CreatedAt.Equal(now))

	_, err = b.FindByEmail(ctx, "missing-"+email)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = b.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
