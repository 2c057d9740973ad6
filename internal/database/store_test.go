package database

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/psyprofile/internal/config"
)

func ptr(s string) *string { return &s }

// newTestStore opens a migrated SQLite database in a temp dir with a clock
// that advances one millisecond per call.
func newTestStore(t *testing.T) *sqlxStore {
	t.Helper()
	db, err := NewDB(context.Background(), config.DatabaseConfig{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db) })

	s, ok := NewStore(db, nil).(*sqlxStore)
	require.True(t, ok)

	var tick atomic.Int64
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	return s
}

func TestMessageStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("append assigns id and time", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		msg := &ChatMessage{MessageID: "1", UserID: "u1", DisplayName: "alice", Text: "hi"}
		require.NoError(t, s.Append(ctx, msg))
		assert.NotZero(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	})

	t.Run("append rejects invalid", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		tests := []struct {
			name string
			msg  *ChatMessage
		}{
			{name: "nil", msg: nil},
			{name: "no message id", msg: &ChatMessage{UserID: "u", Text: "x"}},
			{name: "no user", msg: &ChatMessage{MessageID: "1", Text: "x"}},
			{name: "blank text", msg: &ChatMessage{MessageID: "1", UserID: "u", Text: "  "}},
		}
		for _, tt := range tests {
			err := s.Append(ctx, tt.msg)
			assert.ErrorIs(t, err, ErrInvalidInput, tt.name)
		}
	})

	t.Run("recent and by user ordering", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		for i, u := range []string{"a", "b", "a", "c", "a"} {
			require.NoError(t, s.Append(ctx, &ChatMessage{
				MessageID:   string(rune('0' + i)),
				UserID:      u,
				DisplayName: u,
				Text:        "m" + string(rune('0'+i)),
			}))
		}

		recent, err := s.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, []string{"m4", "m3", "m2"}, texts(recent))

		mine, err := s.ByUser(ctx, "a", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"m4", "m2", "m0"}, texts(mine))

		none, err := s.ByUser(ctx, "zzz", 10)
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = s.Recent(ctx, 0)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("same timestamp breaks ties by id", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return fixed }

		for _, text := range []string{"first", "second", "third"} {
			require.NoError(t, s.Append(ctx, &ChatMessage{MessageID: text, UserID: "u", DisplayName: "u", Text: text}))
		}
		recent, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second", "first"}, texts(recent))
	})
}

func texts(msgs []ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestUserStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("find or create is idempotent", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		u, created, err := s.FindOrCreate(ctx, "42", Identity{Username: ptr("alice"), FirstName: "Alice"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "alice", *u.Username)
		assert.Nil(t, u.PsychoAnalysis)

		again, created, err := s.FindOrCreate(ctx, "42", Identity{Username: ptr("other"), FirstName: "Other"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, u.ID, again.ID)
		assert.Equal(t, "alice", *again.Username, "existing record is returned unmodified")

		users, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("concurrent find or create", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		const callers = 8
		var (
			wg      sync.WaitGroup
			created atomic.Int32
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, c, err := s.FindOrCreate(ctx, "7", Identity{FirstName: "Seven"})
				assert.NoError(t, err)
				if c {
					created.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, created.Load())
		users, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("identity and profile updates", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, _, err := s.FindOrCreate(ctx, "1", Identity{FirstName: "Bob"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateIdentity(ctx, "1", Identity{
			Username: ptr("bobby"), FirstName: "Robert", LastName: ptr("Smith"), AvatarURL: ptr("https://x/a.jpg"),
		}))
		require.NoError(t, s.UpdateProfile(ctx, "1", ptr("P1")))
		require.NoError(t, s.UpdateProfile(ctx, "1", ptr("P2")))

		u, err := s.Get(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "bobby", *u.Username)
		assert.Equal(t, "Robert", u.FirstName)
		assert.Equal(t, "Smith", *u.LastName)
		assert.Equal(t, "P2", *u.PsychoAnalysis, "profile is replaced, not appended")
		assert.True(t, u.UpdatedAt.After(u.CreatedAt))
	})

	t.Run("clear profile", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, _, err := s.FindOrCreate(ctx, "1", Identity{FirstName: "Bob"})
		require.NoError(t, err)
		require.NoError(t, s.UpdateProfile(ctx, "1", ptr("P1")))

		require.NoError(t, s.ClearProfile(ctx, "1"))
		require.NoError(t, s.ClearProfile(ctx, "1"), "clearing twice succeeds")

		u, err := s.Get(ctx, "1")
		require.NoError(t, err)
		assert.Nil(t, u.PsychoAnalysis)

		assert.ErrorIs(t, s.ClearProfile(ctx, "missing"), ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateProfile(ctx, "missing", ptr("x")), ErrNotFound)
		assert.ErrorIs(t, s.UpdateIdentity(ctx, "missing", Identity{FirstName: "x"}), ErrNotFound)
	})
}

func TestStaffStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	admin := &StaffUser{Username: "admin", PasswordHash: "hash", Role: RoleAdmin}
	require.NoError(t, s.CreateStaff(ctx, admin))
	assert.NotZero(t, admin.ID)

	err := s.CreateStaff(ctx, &StaffUser{Username: "admin", PasswordHash: "other"})
	assert.ErrorIs(t, err, ErrConflict)

	byName, err := s.GetStaffByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, byName.ID)
	assert.Equal(t, RoleAdmin, byName.Role)

	byID, err := s.GetStaffByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", byID.Username)

	_, err = s.GetStaffByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	plain := &StaffUser{Username: "viewer", PasswordHash: "hash"}
	require.NoError(t, s.CreateStaff(ctx, plain))
	assert.Equal(t, RoleUser, plain.Role)
}

func TestMaintenanceAndPing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.RunSQLMaintenance(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.RunSQLMaintenance(cancelled), context.Canceled)
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()
	assert.Contains(t, sqliteDSN("a.db"), "a.db?_pragma=busy_timeout(5000)")
	assert.Contains(t, sqliteDSN("file:a.db?cache=shared"), "cache=shared&_pragma=")
	assert.Equal(t, "a.db?_pragma=foo(1)", sqliteDSN("a.db?_pragma=foo(1)"))
}
