// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/savevault/internal/progress"
	"github.com/holomush/savevault/internal/vaultcrypto"
	"github.com/holomush/savevault/pkg/errutil"
)

func newEnvelopeFixture(t *testing.T) (*Profile, progress.Progress, time.Time) {
	t.Helper()
	h, err := NewArgon2idHasher(vaultcrypto.Params{Time: 1, MemoryKiB: 64, Threads: 1, KeyLen: vaultcrypto.KeyLen})
	require.NoError(t, err)
	cred, err := h.Hash([]byte("pw1"))
	require.NoError(t, err)
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	profile, err := NewProfile("alice", cred, now)
	require.NoError(t, err)

	p := progress.New("alice", now)
	p.RecordGame(42, now)
	return profile, p, now
}

func TestEnvelope_RoundTrip(t *testing.T) {
	profile, p, now := newEnvelopeFixture(t)

	save, err := sealProgress(p, []byte("pw1"), profile, now)
	require.NoError(t, err)
	assert.Equal(t, "alice", save.Username)
	assert.Equal(t, int64(42), save.HighScoreHint)
	assert.Equal(t, profile.Salt, save.Salt)
	assert.Len(t, save.Nonce, vaultcrypto.NonceLen)
	assert.Len(t, save.Tag, vaultcrypto.TagLen)
	assert.NotContains(t, string(save.Ciphertext), "alice")

	got, err := openProgress(save, []byte("pw1"), profile)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.HighScore, got.HighScore)
	assert.Equal(t, p.TotalSessions, got.TotalSessions)
	assert.True(t, p.LastPlayed.Equal(got.LastPlayed))
}

func TestEnvelope_OpenFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *EncryptedSave)
		pw     string
		reason string
	}{
		{
			name:   "wrong password",
			mutate: func(*EncryptedSave) {},
			pw:     "other",
			reason: "authentication tag mismatch",
		},
		{
			name:   "flipped ciphertext bit",
			mutate: func(s *EncryptedSave) { s.Ciphertext[0] ^= 0x01 },
			pw:     "pw1",
			reason: "authentication tag mismatch",
		},
		{
			name:   "edited score hint",
			mutate: func(s *EncryptedSave) { s.HighScoreHint = 9999 },
			pw:     "pw1",
			reason: "authentication tag mismatch",
		},
		{
			name:   "salt differs from profile",
			mutate: func(s *EncryptedSave) { s.Salt = make([]byte, vaultcrypto.SaltLen) },
			pw:     "pw1",
			reason: "salt mismatch",
		},
		{
			name:   "owned by another user",
			mutate: func(s *EncryptedSave) { s.Username = "bob" },
			pw:     "pw1",
			reason: "owner mismatch",
		},
		{
			name:   "truncated nonce",
			mutate: func(s *EncryptedSave) { s.Nonce = s.Nonce[:4] },
			pw:     "pw1",
			reason: "authentication tag mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, p, now := newEnvelopeFixture(t)
			save, err := sealProgress(p, []byte("pw1"), profile, now)
			require.NoError(t, err)
			tt.mutate(save)

			_, err = openProgress(save, []byte(tt.pw), profile)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptedEnvelope)
			errutil.AssertErrorCode(t, err, "VAULT_CORRUPTED_ENVELOPE")
			errutil.AssertErrorContext(t, err, "reason", tt.reason)
		})
	}
}

func TestEnvelopeAAD_BindsOwnerAndHint(t *testing.T) {
	assert.NotEqual(t, envelopeAAD("alice", 1), envelopeAAD("alice", 2))
	assert.NotEqual(t, envelopeAAD("alice", 1), envelopeAAD("alicf", 1))
	assert.Equal(t, envelopeAAD("alice", 1), envelopeAAD("alice", 1))
}
