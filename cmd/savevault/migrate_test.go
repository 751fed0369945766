// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/savevault/internal/config"
	"github.com/holomush/savevault/internal/store"
	"github.com/holomush/savevault/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "minus one means no migration", input: "-1", wantVersion: -1},
		{name: "surrounding whitespace is trimmed", input: "  42 ", wantVersion: 42},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "float returns error", input: "1.5", wantErr: true},
		{name: "trailing characters return error", input: "3abc", wantErr: true},
		{name: "below minus one returns error", input: "-2", wantErr: true},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	t.Run("returns error when unset", func(t *testing.T) {
		url, err := getDatabaseURL(&config.Config{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		assert.Empty(t, url)
	})

	t.Run("returns configured URL", func(t *testing.T) {
		url, err := getDatabaseURL(&config.Config{DatabaseURL: "postgres://localhost:5432/vault"})
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/vault", url)
	})
}

// fakeMigrator records the calls made by the migrate commands.
type fakeMigrator struct {
	calls  []string
	steps  int
	forced int
	status store.Status
	err    error
	closed bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.err
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Status() (store.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, f.err
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func migrateHarness(t *testing.T, m *fakeMigrator) (*harness, *string) {
	t.Helper()
	h := newHarness(t)
	var gotURL string
	h.deps.MigratorFactory = func(databaseURL string, _ *slog.Logger) (Migrator, error) {
		gotURL = databaseURL
		return m, nil
	}
	return h, &gotURL
}

func TestMigrateCommand_NoDatabaseURL(t *testing.T) {
	h, _ := migrateHarness(t, &fakeMigrator{})

	_, err := h.run(t, "", "migrate")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestMigrateCommand_Up(t *testing.T) {
	for _, args := range [][]string{{"migrate"}, {"migrate", "up"}} {
		m := &fakeMigrator{}
		h, gotURL := migrateHarness(t, m)

		out, err := h.run(t, "", append([]string{"--database-url", "postgres://db/vault"}, args...)...)
		require.NoError(t, err)
		assert.Equal(t, "postgres://db/vault", *gotURL)
		assert.Equal(t, []string{"up"}, m.calls)
		assert.True(t, m.closed)
		assert.Contains(t, out, "Migrations completed successfully")
	}
}

func TestMigrateCommand_UsesEnvironmentURL(t *testing.T) {
	m := &fakeMigrator{}
	h, gotURL := migrateHarness(t, m)
	h.deps.Getenv = func(key string) string {
		if key == config.EnvDatabaseURL {
			return "postgres://env/vault"
		}
		return ""
	}

	_, err := h.run(t, "", "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/vault", *gotURL)
}

func TestMigrateCommand_Down(t *testing.T) {
	t.Run("steps", func(t *testing.T) {
		m := &fakeMigrator{}
		h, _ := migrateHarness(t, m)
		out, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "down", "--steps", "2")
		require.NoError(t, err)
		assert.Equal(t, -2, m.steps)
		assert.Contains(t, out, "Rolled back 2 migration(s)")
	})

	t.Run("all", func(t *testing.T) {
		m := &fakeMigrator{}
		h, _ := migrateHarness(t, m)
		_, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "down", "--all")
		require.NoError(t, err)
		assert.Equal(t, []string{"down"}, m.calls)
	})

	t.Run("non-positive steps rejected", func(t *testing.T) {
		m := &fakeMigrator{}
		h, _ := migrateHarness(t, m)
		_, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "down", "--steps", "0")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		assert.Empty(t, m.calls)
	})
}

func TestMigrateCommand_Status(t *testing.T) {
	m := &fakeMigrator{status: store.Status{Current: 1, Latest: 2, Pending: []uint{2}}}
	h, _ := migrateHarness(t, m)

	out, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")
	assert.Contains(t, out, "Latest version:  2")
	assert.Contains(t, out, "Pending:         [2]")
	assert.NotContains(t, out, "up to date")
}

func TestMigrateCommand_Force(t *testing.T) {
	m := &fakeMigrator{}
	h, _ := migrateHarness(t, m)

	out, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "force", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)
	assert.Contains(t, out, "Schema version forced to 1")
}

func TestMigrateCommand_PropagatesErrors(t *testing.T) {
	m := &fakeMigrator{err: oops.Code("MIGRATION_UP_FAILED").Wrap(errors.New("boom"))}
	h, _ := migrateHarness(t, m)

	_, err := h.run(t, "", "--database-url", "postgres://db/vault", "migrate", "up")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	assert.True(t, m.closed)
}
