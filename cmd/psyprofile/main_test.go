package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/psyprofile/internal/config"
	"github.com/edgard/psyprofile/internal/database"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("BOT_DATABASE_DSN", dsn)
	t.Setenv("BOT_LOG_LEVEL", "error")

	out, err := runCmd(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = runCmd(t, "staff", "create", "--username", "root", "--password", "secret1", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin account root")

	_, err = runCmd(t, "staff", "create", "--username", "root", "--password", "secret1")
	require.ErrorContains(t, err, "already exists")

	_, err = runCmd(t, "staff", "create", "--username", "x", "--password", "y", "--role", "owner")
	require.ErrorContains(t, err, "--role")

	_, err = runCmd(t, "clear-profile", "42")
	require.ErrorContains(t, err, "not found")

	_, err = runCmd(t, "clear-profile", "abc")
	require.ErrorContains(t, err, "numeric")

	ctx := context.Background()
	db, err := database.NewDB(ctx, config.DatabaseConfig{Driver: database.DriverSQLite, DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	store := database.NewStore(db, nil)
	_, _, err = store.FindOrCreate(ctx, "42", database.Identity{FirstName: "Ann"})
	require.NoError(t, err)
	profile := "profile"
	require.NoError(t, store.UpdateProfile(ctx, "42", &profile))
	database.CloseDB(db)

	out, err = runCmd(t, "clear-profile", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
}

func TestServeRequiresFullConfig(t *testing.T) {
	t.Setenv("BOT_DATABASE_DSN", filepath.Join(t.TempDir(), "serve.db"))
	t.Setenv("BOT_TELEGRAM_TOKEN", "")
	t.Setenv("BOT_TOKEN", "")

	_, err := runCmd(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
