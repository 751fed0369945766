// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package filestore implements auth.Backend with one JSON file per account.
package filestore

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/auth"
)

const fileExt = ".json"

// Backend stores each account as <dir>/<username>.json.
//
// Profile creation is atomic across processes. Updates are serialized
// within a process and replace the file by rename.
type Backend struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Open creates dir if needed and returns a Backend rooted there.
func Open(dir string, opts ...Option) (*Backend, error) {
	if dir == "" {
		return nil, oops.Code("FILESTORE_OPEN_FAILED").Errorf("saves directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.Code("FILESTORE_OPEN_FAILED").
			With("dir", dir).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}

	b := &Backend{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Dir returns the saves directory.
func (b *Backend) Dir() string {
	return b.dir
}

// validateFileName rejects usernames that cannot be used verbatim as a
// file name inside dir.
func validateFileName(username string) error {
	invalid := func(reason string) error {
		return oops.Code("FILESTORE_INVALID_USERNAME").
			With("reason", reason).
			Wrap(auth.ErrInvalidUsername)
	}

	switch {
	case username == "":
		return invalid("empty")
	case len(username) > auth.MaxUsernameLength:
		return invalid("too long")
	case username == "." || username == "..":
		return invalid("reserved name")
	case strings.HasPrefix(username, "."):
		return invalid("leading dot")
	case strings.ContainsAny(username, `/\`):
		return invalid("path separator")
	}
	for _, r := range username {
		if r == 0 || unicode.IsControl(r) {
			return invalid("control character")
		}
	}
	return nil
}

func (b *Backend) path(username string) (string, error) {
	if err := validateFileName(username); err != nil {
		return "", err
	}
	return filepath.Join(b.dir, username+fileExt), nil
}

func (b *Backend) read(username string) (*Document, error) {
	path, err := b.path(username)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("FILESTORE_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("FILESTORE_READ_FAILED").
			With("username", username).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, oops.With("username", username).Wrap(err)
	}
	if doc.Profile.Username != username {
		if strings.EqualFold(doc.Profile.Username, username) {
			// Case-insensitive filesystem: the name is held by another spelling.
			return nil, oops.Code("FILESTORE_NAME_COLLISION").
				With("username", username).
				With("stored_username", doc.Profile.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return nil, oops.Code("FILESTORE_CORRUPTED").
			With("username", username).
			With("stored_username", doc.Profile.Username).
			Wrapf(auth.ErrCorruptedRecord, "file belongs to a different account")
	}
	return doc, nil
}

// FindProfile implements auth.Backend.
func (b *Backend) FindProfile(ctx context.Context, username string) (*auth.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := b.read(username)
	if err != nil {
		return nil, err
	}
	return doc.profile()
}

// CreateProfile implements auth.Backend.
func (b *Backend) CreateProfile(ctx context.Context, profile *auth.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.create(newDocument(profile), "create profile")
}

// CreateAccount implements auth.Backend. The profile and its first save go
// into the same file, so they appear together or not at all.
func (b *Backend) CreateAccount(ctx context.Context, profile *auth.Profile, save *auth.EncryptedSave) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if save.Username != profile.Username {
		return oops.Code("FILESTORE_INVALID_RECORD").
			With("username", profile.Username).
			With("save_username", save.Username).
			Wrapf(auth.ErrValidation, "save belongs to a different account")
	}
	doc := newDocument(profile)
	doc.setSave(save)
	return b.create(doc, "create account")
}

// create writes doc under a temporary name and hard-links it into place,
// so concurrent creators race on the link and exactly one wins.
func (b *Backend) create(doc *Document, operation string) error {
	username := doc.Profile.Username
	path, err := b.path(username)
	if err != nil {
		return err
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	if err := createExclusive(b.dir, path, data); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return oops.Code("FILESTORE_DUPLICATE").
				With("username", username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("FILESTORE_WRITE_FAILED").
			With("operation", operation).
			With("username", username).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}
	return nil
}

// UpdateProfile implements auth.Backend.
func (b *Backend) UpdateProfile(ctx context.Context, profile *auth.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read(profile.Username)
	if err != nil {
		return err
	}
	doc.Profile.LastPlayed = profile.LastPlayed.UTC()
	doc.Profile.TotalSessions = profile.TotalSessions
	return b.write(doc, "update profile")
}

// GetSave implements auth.Backend.
func (b *Backend) GetSave(ctx context.Context, username string) (*auth.EncryptedSave, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := b.read(username)
	if err != nil {
		return nil, err
	}
	if doc.Save == nil {
		return nil, oops.Code("FILESTORE_NOT_FOUND").
			With("username", username).
			With("record", "save").
			Wrap(auth.ErrNotFound)
	}
	return doc.save()
}

// PutSave implements auth.Backend.
func (b *Backend) PutSave(ctx context.Context, save *auth.EncryptedSave) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read(save.Username)
	if err != nil {
		return err
	}
	doc.setSave(save)
	return b.write(doc, "put save")
}

func (b *Backend) write(doc *Document, operation string) error {
	path, err := b.path(doc.Profile.Username)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := replaceAtomic(b.dir, path, data); err != nil {
		return oops.Code("FILESTORE_WRITE_FAILED").
			With("operation", operation).
			With("username", doc.Profile.Username).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}
	return nil
}

// TopScores implements auth.Backend. Unreadable files are skipped.
func (b *Backend) TopScores(ctx context.Context, limit int) ([]auth.ScoreEntry, error) {
	if limit <= 0 {
		return []auth.ScoreEntry{}, nil
	}

	names, err := b.accountNames()
	if err != nil {
		return nil, err
	}

	rows := make([]auth.ScoreEntry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := b.read(name)
		if err != nil {
			b.logger.WarnContext(ctx, "skipping unreadable save file",
				"username", name,
				"error", err)
			continue
		}
		if doc.Save == nil {
			continue
		}
		save, err := doc.save()
		if err != nil {
			b.logger.WarnContext(ctx, "skipping unreadable save file",
				"username", name,
				"error", err)
			continue
		}
		rows = append(rows, auth.ScoreEntry{
			Username:      name,
			HighScoreHint: save.HighScoreHint,
			UpdatedAt:     save.UpdatedAt,
		})
	}

	slices.SortFunc(rows, func(x, y auth.ScoreEntry) int {
		if c := cmp.Compare(y.HighScoreHint, x.HighScoreHint); c != 0 {
			return c
		}
		if c := y.UpdatedAt.Compare(x.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.Username, y.Username)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// DeleteAccount implements auth.Backend.
func (b *Backend) DeleteAccount(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(username)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return oops.Code("FILESTORE_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
		}
		return oops.Code("FILESTORE_WRITE_FAILED").
			With("operation", "delete account").
			With("username", username).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}
	return nil
}

// CountProfiles implements auth.Backend.
func (b *Backend) CountProfiles(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	names, err := b.accountNames()
	if err != nil {
		return 0, err
	}
	return int64(len(names)), nil
}

// Close implements auth.Backend.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) accountNames() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, oops.Code("FILESTORE_READ_FAILED").
			With("dir", b.dir).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), fileExt)
		if !ok || validateFileName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

var _ auth.Backend = (*Backend)(nil)
