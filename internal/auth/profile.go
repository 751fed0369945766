// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/vaultcrypto"
)

// MaxUsernameLength bounds usernames in bytes.
const MaxUsernameLength = 64

// Profile is the identity and credential record of one account.
type Profile struct {
	ID            ulid.ULID
	Username      string
	PasswordHash  []byte
	Salt          []byte
	KDF           vaultcrypto.Params
	CreatedAt     time.Time
	LastPlayed    time.Time
	TotalSessions int
}

// NewProfile creates a validated Profile for a freshly hashed credential.
func NewProfile(username string, cred Credential, now time.Time) (*Profile, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(cred.Hash) == 0 {
		return nil, oops.Code("PROFILE_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if len(cred.Salt) == 0 {
		return nil, oops.Code("PROFILE_INVALID_SALT").Errorf("salt cannot be empty")
	}

	now = now.UTC()
	return &Profile{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: bytes.Clone(cred.Hash),
		Salt:         bytes.Clone(cred.Salt),
		KDF:          cred.Params,
		CreatedAt:    now,
		LastPlayed:   now,
	}, nil
}

// Credential returns the verification material stored on the profile.
func (p *Profile) Credential() Credential {
	return Credential{Hash: p.PasswordHash, Salt: p.Salt, Params: p.KDF}
}

// EncryptedSave is the stored envelope holding one account's progress.
type EncryptedSave struct {
	Username   string
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	Salt       []byte
	UpdatedAt  time.Time

	// HighScoreHint is a plaintext copy of the best score for leaderboard
	// queries. It is bound to the envelope as associated data.
	HighScoreHint int64
}

// ScoreEntry is one leaderboard row as the backend returns it.
type ScoreEntry struct {
	Username      string
	HighScoreHint int64
	UpdatedAt     time.Time
}

// ValidateUsername checks the rules every backend shares.
// Username requirements:
// - Not empty or whitespace only, no surrounding whitespace
// - At most MaxUsernameLength bytes of valid UTF-8
// - No control characters
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrValidation, "username cannot be empty")
	}
	if strings.TrimSpace(username) != username {
		return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrValidation, "username cannot start or end with whitespace")
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrapf(ErrValidation, "username must be at most %d bytes", MaxUsernameLength)
	}
	if !utf8.ValidString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrValidation, "username must be valid UTF-8")
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return oops.Code("AUTH_INVALID_USERNAME").Wrapf(ErrValidation, "username cannot contain control characters")
		}
	}
	return nil
}
