// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/savevault/internal/vaultcrypto"
)

// Session is the handle for one authenticated account. It holds the
// password in memory so progress can be re-encrypted; Close wipes it.
// A Session is not safe for concurrent use.
type Session struct {
	ID        ulid.ULID
	Username  string
	StartedAt time.Time

	profile  Profile
	password []byte
}

// newSession takes ownership of password; it is wiped by Close.
func newSession(profile *Profile, password []byte, now time.Time) *Session {
	return &Session{
		ID:        ulid.Make(),
		Username:  profile.Username,
		StartedAt: now,
		profile:   *profile,
		password:  password,
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s == nil || s.password == nil
}

// Close wipes the in-memory password. It is safe to call more than once.
func (s *Session) Close() {
	if s == nil || s.password == nil {
		return
	}
	vaultcrypto.Wipe(s.password)
	s.password = nil
}
