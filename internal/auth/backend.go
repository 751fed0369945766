// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// Backend is durable storage for profiles and their encrypted saves.
// Implementations wrap the package sentinels so callers can match them with errors.Is.
type Backend interface {
	// FindProfile retrieves a profile by exact (case-sensitive) username.
	// Returns ErrNotFound if absent.
	FindProfile(ctx context.Context, username string) (*Profile, error)

	// CreateProfile stores a new profile. Returns ErrDuplicateUsername if the
	// name exists; exactly one of several concurrent creators succeeds.
	CreateProfile(ctx context.Context, profile *Profile) error

	// CreateAccount stores a new profile together with its first save in
	// one atomic step. Duplicate handling matches CreateProfile. On any
	// error neither record is stored.
	CreateAccount(ctx context.Context, profile *Profile, save *EncryptedSave) error

	// UpdateProfile writes the mutable fields (LastPlayed, TotalSessions).
	// Returns ErrNotFound if absent.
	UpdateProfile(ctx context.Context, profile *Profile) error

	// GetSave retrieves the envelope for username. Returns ErrNotFound if absent.
	GetSave(ctx context.Context, username string) (*EncryptedSave, error)

	// PutSave inserts or fully replaces the envelope for save.Username.
	// Returns ErrNotFound if the profile does not exist.
	PutSave(ctx context.Context, save *EncryptedSave) error

	// TopScores returns at most limit entries ordered by HighScoreHint
	// descending, ties broken by the most recent UpdatedAt.
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)

	// DeleteAccount removes a profile and its save. Returns ErrNotFound if absent.
	DeleteAccount(ctx context.Context, username string) error

	// CountProfiles returns the number of stored profiles.
	CountProfiles(ctx context.Context) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
