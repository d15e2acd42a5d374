package postgres

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Minimal sqlite mirror of the gateway_users migration.
	_, err = db.Exec(`
		CREATE TABLE gateway_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			login TEXT NOT NULL,
			access_token TEXT,
			acl TEXT,
			acl_updated_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP,
			UNIQUE(provider, login)
		)
	`)
	require.NoError(t, err)
	return db
}

func testSnapshot() acl.AllowedAccounts {
	return acl.AllowedAccounts{
		"42": {
			Login:    "octo-org",
			Provider: "github",
			AllowedRepositories: acl.AllowedRepositories{
				Read:  []int64{1, 2, 3},
				Admin: []int64{1},
			},
		},
	}
}

func TestUserStore_StoredACLRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "gh-token"}))

	// No snapshot saved yet.
	_, found, err := store.StoredACL(ctx, "github", "octocat")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveACL(ctx, "github", "octocat", testSnapshot()))

	snapshot, found, err := store.StoredACL(ctx, "github", "octocat")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int64{1, 2, 3}, snapshot.ForAccount(42).Read)
	assert.Equal(t, []int64{1}, snapshot.ForAccount(42).Admin)
}

func TestUserStore_StoredACLUnknownUser(t *testing.T) {
	store := NewUserStore(setupTestDB(t))

	_, found, err := store.StoredACL(context.Background(), "github", "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserStore_SaveACLRequiresUser(t *testing.T) {
	store := NewUserStore(setupTestDB(t))

	err := store.SaveACL(context.Background(), "github", "nobody", testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user record")
}

func TestUserStore_UpsertKeepsStoredACL(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "old"}))
	require.NoError(t, store.SaveACL(ctx, "github", "octocat", testSnapshot()))

	// Token rotation must not drop the snapshot.
	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "new"}))

	_, found, err := store.StoredACL(ctx, "github", "octocat")
	require.NoError(t, err)
	assert.True(t, found)

	identities, err := store.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "new", identities[0].Token)
}

func TestUserStore_SaveACLTargetsOnlyMatchingUser(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "a"}))
	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "hubber", Token: "b"}))

	require.NoError(t, store.SaveACL(ctx, "github", "octocat", testSnapshot()))

	snapshot, found, err := store.StoredACL(ctx, "github", "octocat")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "octo-org", snapshot["42"].Login)

	// The other user's row must be untouched.
	_, found, err = store.StoredACL(ctx, "github", "hubber")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserStore_ListIdentitiesSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "a"}))
	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "gitlab", Login: "gitfox", Token: "b"}))
	require.NoError(t, store.DeleteIdentity(ctx, "github", "octocat"))

	identities, err := store.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "gitlab", identities[0].Provider)

	_, found, err := store.StoredACL(ctx, "github", "octocat")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserStore_UpsertRevivesDeletedIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "a"}))
	require.NoError(t, store.DeleteIdentity(ctx, "github", "octocat"))
	require.NoError(t, store.UpsertIdentity(ctx, acl.Identity{Provider: "github", Login: "octocat", Token: "b"}))

	identities, err := store.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "b", identities[0].Token)
}
