package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

func makeCredential(userID int64, originURL, username string) model.Credential {
	return model.Credential{
		UserID:             userID,
		OriginURL:          originURL,
		SignonRealm:        originURL,
		Username:           username,
		Password:           []byte("v10-opaque-blob"),
		Browser:            model.BrowserChrome,
		Breach:             model.BreachStatusUnknown,
		CreatedAt:          time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC),
		LastUsedAt:         time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC),
		PasswordModifiedAt: time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC),
	}
}

func TestCredentialRepo_InsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	in := makeCredential(1, "https://example.com/login", "alice")
	id, err := repo.Insert(ctx, in)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := repo.Find(ctx, 1, "https://example.com/login", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, in.Password, got.Password)
	assert.Equal(t, model.BrowserChrome, got.Browser)
	assert.Equal(t, model.BreachStatusUnknown, got.Breach)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, in.LastUsedAt.Equal(got.LastUsedAt))
	assert.True(t, got.BreachCheckedAt.IsZero())
}

func TestCredentialRepo_FindMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	got, err := repo.Find(context.Background(), 1, "https://nowhere.test", "bob")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCredentialRepo_Insert_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	c := makeCredential(1, "https://example.com/login", "alice")
	_, err := repo.Insert(ctx, c)
	require.NoError(t, err)

	_, err = repo.Insert(ctx, c)
	assert.ErrorIs(t, err, driven.ErrDuplicateCredential)
}

func TestCredentialRepo_Insert_SameTripleDifferentUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, makeCredential(2, "https://example.com/login", "alice"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice2"))
	require.NoError(t, err)
}

func TestCredentialRepo_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	got.Password = []byte("v10-new-blob")
	got.Breach = model.BreachStatusBreached
	got.PasswordModifiedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Update(ctx, *got))

	updated, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("v10-new-blob"), updated.Password)
	assert.Equal(t, model.BreachStatusBreached, updated.Breach)
	assert.True(t, got.PasswordModifiedAt.Equal(updated.PasswordModifiedAt))
}

func TestCredentialRepo_Update_IntoDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice"))
	require.NoError(t, err)
	id, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "bob"))
	require.NoError(t, err)

	bob, err := repo.Get(ctx, id)
	require.NoError(t, err)
	bob.Username = "alice"

	err = repo.Update(ctx, *bob)
	assert.ErrorIs(t, err, driven.ErrDuplicateCredential)
}

func TestCredentialRepo_Update_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	c := makeCredential(1, "https://example.com", "alice")
	c.ID = 999
	err := repo.Update(context.Background(), c)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_UpdateBreachStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice"))
	require.NoError(t, err)

	checkedAt := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, repo.UpdateBreachStatus(ctx, id, model.BreachStatusClean, checkedAt))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.BreachStatusClean, got.Breach)
	assert.True(t, checkedAt.Equal(got.BreachCheckedAt))
	assert.Equal(t, []byte("v10-opaque-blob"), got.Password, "breach update must not touch the password")

	err = repo.UpdateBreachStatus(ctx, 999, model.BreachStatusClean, checkedAt)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, makeCredential(1, "https://example.com/login", "alice"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, id))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Delete(ctx, id)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	for _, c := range []model.Credential{
		makeCredential(1, "https://zeta.test", "z"),
		makeCredential(1, "https://alpha.test", "b"),
		makeCredential(1, "https://alpha.test", "a"),
		makeCredential(2, "https://other-user.test", "x"),
	} {
		_, err := repo.Insert(ctx, c)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "https://alpha.test", all[0].OriginURL)
	assert.Equal(t, "a", all[0].Username)
	assert.Equal(t, "b", all[1].Username)
	assert.Equal(t, "https://zeta.test", all[2].OriginURL)

	none, err := repo.List(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCredentialRepo_ZeroTimesRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	c := makeCredential(1, "https://example.com", "alice")
	c.LastUsedAt = time.Time{}
	id, err := repo.Insert(ctx, c)
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.LastUsedAt.IsZero())
}
