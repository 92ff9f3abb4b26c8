package sessionsvc_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	"github.com/mkrupp/learnai-dashboard/internal/repo/kv"
	"github.com/mkrupp/learnai-dashboard/internal/svc/sessionsvc"
)

func newStore(t *testing.T, repo kv.Repository) *sessionsvc.Store {
	t.Helper()

	store, err := sessionsvc.NewStore(context.Background(), func(context.Context) (kv.Repository, error) {
		return repo, nil
	})
	require.NoError(t, err)

	return store
}

func newHydratedStore(t *testing.T) (*sessionsvc.Store, *kv.MemoryKVRepository) {
	t.Helper()

	repo := kv.NewMemoryKVRepository()
	store := newStore(t, repo)
	store.Hydrate(context.Background())

	return store, repo
}

func TestStore_EnrollIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, repo := newHydratedStore(t)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))

	require.NoError(t, store.Enroll(ctx, "1"))
	once := store.EnrolledCourseIDs()
	writes := repo.Writes()

	require.NoError(t, store.Enroll(ctx, "1"))
	assert.Equal(t, once, store.EnrolledCourseIDs())
	assert.Equal(t, []string{"1"}, store.EnrolledCourseIDs())
	assert.Equal(t, writes, repo.Writes(), "unchanged set is not rewritten")
}

func TestStore_UnenrollAbsent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newHydratedStore(t)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	require.NoError(t, store.Enroll(ctx, "2"))

	version := store.Version()
	require.NoError(t, store.Unenroll(ctx, "5"))
	assert.Equal(t, []string{"2"}, store.EnrolledCourseIDs())
	assert.Equal(t, version, store.Version())

	require.NoError(t, store.Unenroll(ctx, "2"))
	assert.Empty(t, store.EnrolledCourseIDs())
	assert.False(t, store.IsEnrolled("2"))
}

func TestStore_PerUserIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newHydratedStore(t)

	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	require.NoError(t, store.Enroll(ctx, "3"))
	assert.True(t, store.IsEnrolled("3"))

	require.NoError(t, store.Login(ctx, "b@x.com", "B"))
	assert.False(t, store.IsEnrolled("3"), "b must not see a's enrollments")
	assert.Empty(t, store.EnrolledCourseIDs())

	require.NoError(t, store.Enroll(ctx, "4"))

	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	assert.True(t, store.IsEnrolled("3"))
	assert.False(t, store.IsEnrolled("4"))
}

func TestStore_RoundTripPersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	factories := map[string]kv.RepositoryFactory{
		"memory": func() kv.RepositoryFactory {
			repo := kv.NewMemoryKVRepository()

			return func(context.Context) (kv.Repository, error) { return repo, nil }
		}(),
		"file": kv.FileSystemKVRepositoryFactory(kv.FileSystemKVRepositoryConfig{
			Basedir: filepath.Join(dir, "kv"),
		}),
		"sqlite": kv.SQLiteKVRepositoryFactory(kv.SQLiteKVRepositoryConfig{
			DatabasePath: filepath.Join(dir, "kv.db"),
		}),
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			first, err := sessionsvc.NewStore(ctx, factory)
			require.NoError(t, err)
			first.Hydrate(ctx)

			require.NoError(t, first.Login(ctx, "  Learner@X.com ", " Learner "))
			require.NoError(t, first.Enroll(ctx, "c1"))
			require.NoError(t, first.Enroll(ctx, "c2"))

			if name != "memory" {
				require.NoError(t, first.Close())
			}

			restarted, err := sessionsvc.NewStore(ctx, factory)
			require.NoError(t, err)
			t.Cleanup(func() { _ = restarted.Close() })

			restarted.Hydrate(ctx)

			user, ok := restarted.CurrentUser()
			require.True(t, ok)
			assert.Equal(t, domain.User{Email: "learner@x.com", Username: "Learner"}, user)
			assert.Equal(t, []string{"c1", "c2"}, restarted.EnrolledCourseIDs())
		})
	}
}

func TestStore_HydrateFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		seed            map[string]string
		wantUser        *domain.User
		wantEnrollments []string
		wantPersisted   map[string]string
	}{
		{
			name:            "empty storage",
			seed:            map[string]string{},
			wantEnrollments: []string{},
			wantPersisted:   map[string]string{},
		},
		{
			name: "record",
			seed: map[string]string{
				"learnai-user":                `{"email":"a@x.com","username":"Ada"}`,
				"learnai-enrollments-a@x.com": `["1","2"]`,
			},
			wantUser:        &domain.User{Email: "a@x.com", Username: "Ada"},
			wantEnrollments: []string{"1", "2"},
		},
		{
			name: "record without username",
			seed: map[string]string{
				"learnai-user": `{"email":"ada@x.com"}`,
			},
			wantUser:        &domain.User{Email: "ada@x.com", Username: "ada"},
			wantEnrollments: []string{},
		},
		{
			name: "bare email string",
			seed: map[string]string{
				"learnai-user":                   `"demo@x.com"`,
				"learnai-enrollments-demo@x.com": `["2"]`,
			},
			wantUser:        &domain.User{Email: "demo@x.com", Username: "demo"},
			wantEnrollments: []string{"2"},
			wantPersisted: map[string]string{
				"learnai-user":                   `{"email":"demo@x.com","username":"demo"}`,
				"learnai-enrollments-demo@x.com": `["2"]`,
			},
		},
		{
			name: "unparseable value used as email",
			seed: map[string]string{
				"learnai-user": `old@x.com`,
			},
			wantUser:        &domain.User{Email: "old@x.com", Username: "old"},
			wantEnrollments: []string{},
		},
		{
			name: "malformed enrollments",
			seed: map[string]string{
				"learnai-user":                `{"email":"a@x.com","username":"Ada"}`,
				"learnai-enrollments-a@x.com": `{"not":"a list"}`,
			},
			wantUser:        &domain.User{Email: "a@x.com", Username: "Ada"},
			wantEnrollments: []string{},
		},
		{
			name: "unexpected shape",
			seed: map[string]string{
				"learnai-user":                `42`,
				"learnai-enrollments-a@x.com": `["1"]`,
			},
			wantEnrollments: []string{},
			wantPersisted: map[string]string{
				"learnai-enrollments-a@x.com": `["1"]`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := kv.NewMemoryKVRepository()

			for k, v := range tt.seed {
				require.NoError(t, repo.Set(ctx, k, v))
			}

			store := newStore(t, repo)
			store.Hydrate(ctx)

			snap := store.Snapshot()
			assert.True(t, snap.Hydrated)
			assert.Equal(t, tt.wantUser, snap.User)
			assert.Equal(t, tt.wantEnrollments, snap.EnrolledCourseIDs)

			if tt.wantPersisted != nil {
				assert.Equal(t, tt.wantPersisted, repo.Snapshot())
			}
		})
	}
}

func TestStore_HydrateUnreadable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	repo := kv.NewMemoryKVRepository()
	require.NoError(t, repo.Close())

	store := newStore(t, repo)
	store.Hydrate(ctx)

	assert.True(t, store.Hydrated(), "hydration completes even when storage is unreadable")
	_, ok := store.CurrentUser()
	assert.False(t, ok)
}

func TestStore_HydrateOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, repo := newHydratedStore(t)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))

	require.NoError(t, repo.Set(ctx, sessionsvc.UserKey, `{"email":"other@x.com","username":"O"}`))
	version := store.Version()
	store.Hydrate(ctx)

	user, _ := store.CurrentUser()
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, version, store.Version())
}

func TestStore_LogoutRetainsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, repo := newHydratedStore(t)

	require.NoError(t, store.Login(ctx, "demo@x.com", "Demo"))
	require.NoError(t, store.Enroll(ctx, "2"))

	store.Logout(ctx)
	_, ok := store.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, store.EnrolledCourseIDs())
	assert.False(t, store.IsEnrolled("2"))

	persisted := repo.Snapshot()
	assert.NotContains(t, persisted, sessionsvc.UserKey)
	assert.Equal(t, `["2"]`, persisted[sessionsvc.EnrollmentsKey("demo@x.com")])

	require.NoError(t, store.Login(ctx, "demo@x.com", "Demo"))
	assert.True(t, store.IsEnrolled("2"))
}

func TestStore_NoWritesBeforeHydration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := kv.NewMemoryKVRepository()
	require.NoError(t, repo.Set(ctx, sessionsvc.UserKey, `{"email":"a@x.com","username":"A"}`))
	require.NoError(t, repo.Set(ctx, sessionsvc.EnrollmentsKey("a@x.com"), `["1"]`))

	store := newStore(t, repo)
	writes := repo.Writes()

	assert.False(t, store.IsEnrolled("1"), "not hydrated yet")

	store.Logout(ctx)
	assert.Equal(t, writes, repo.Writes(), "logout before hydration must not clobber storage")
	assert.Equal(t, `{"email":"a@x.com","username":"A"}`, repo.Snapshot()[sessionsvc.UserKey])

	store.Hydrate(ctx)
	assert.True(t, store.IsEnrolled("1"))
}

func TestStore_WriteFailuresTolerated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, repo := newHydratedStore(t)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))

	repo.FailWrites(errors.Join(kv.ErrStorageFull, errors.New("quota exceeded")))

	require.NoError(t, store.Enroll(ctx, "1"))
	require.NoError(t, store.Enroll(ctx, "2"))
	assert.Equal(t, []string{"1", "2"}, store.EnrolledCourseIDs(), "memory stays authoritative")
	assert.Equal(t, `[]`, repo.Snapshot()[sessionsvc.EnrollmentsKey("a@x.com")])

	repo.FailWrites(nil)
	require.NoError(t, store.Unenroll(ctx, "1"))
	assert.Equal(t, `["2"]`, repo.Snapshot()[sessionsvc.EnrollmentsKey("a@x.com")], "next write catches up")
}

func TestStore_NoActiveUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, repo := newHydratedStore(t)
	writes := repo.Writes()

	require.ErrorIs(t, store.Enroll(ctx, "1"), domain.ErrNoActiveUser)
	require.ErrorIs(t, store.Unenroll(ctx, "1"), domain.ErrNoActiveUser)
	assert.Empty(t, store.EnrolledCourseIDs())
	assert.Equal(t, writes, repo.Writes())
}

func TestStore_LoginInvalidEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newHydratedStore(t)
	require.NoError(t, store.Login(ctx, "a@x.com", ""))

	require.ErrorIs(t, store.Login(ctx, "   ", "Nobody"), domain.ErrInvalidEmail)

	user, ok := store.CurrentUser()
	require.True(t, ok, "failed login keeps the previous session")
	assert.Equal(t, domain.User{Email: "a@x.com", Username: "a"}, user)
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, kv.NewMemoryKVRepository())

	var got []sessionsvc.Snapshot

	unsubscribe := store.Subscribe(func(snap sessionsvc.Snapshot) {
		got = append(got, snap)
		// Listeners run outside the lock and may read the store.
		assert.Equal(t, snap.Version, store.Version())
	})

	store.Hydrate(ctx)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	require.NoError(t, store.Enroll(ctx, "1"))
	require.NoError(t, store.Enroll(ctx, "1"))
	require.NoError(t, store.Unenroll(ctx, "1"))
	store.Logout(ctx)

	require.Len(t, got, 5)
	assert.True(t, got[0].Hydrated)
	assert.Nil(t, got[0].User)
	assert.Equal(t, "a@x.com", got[1].User.Email)
	assert.Equal(t, []string{"1"}, got[2].EnrolledCourseIDs)
	assert.Empty(t, got[3].EnrolledCourseIDs)
	assert.Nil(t, got[4].User)

	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Version, got[i-1].Version)
	}

	unsubscribe()
	unsubscribe()

	require.NoError(t, store.Login(ctx, "b@x.com", "B"))
	assert.Len(t, got, 5)
}
