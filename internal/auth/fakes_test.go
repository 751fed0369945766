// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/holomush/savevault/internal/auth"
)

// scriptedPrompter replays canned answers. An exhausted script abandons.
type scriptedPrompter struct {
	mu        sync.Mutex
	usernames []string
	confirms  []bool
	passwords []string
	purposes  []auth.PasswordPurpose
	notices   []auth.Notice
	handedOut [][]byte
}

func (p *scriptedPrompter) Username(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.usernames) == 0 {
		return "", auth.ErrAbandoned
	}
	u := p.usernames[0]
	p.usernames = p.usernames[1:]
	return u, nil
}

func (p *scriptedPrompter) ConfirmRegistration(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.confirms) == 0 {
		return false, auth.ErrAbandoned
	}
	c := p.confirms[0]
	p.confirms = p.confirms[1:]
	return c, nil
}

func (p *scriptedPrompter) Password(_ context.Context, purpose auth.PasswordPurpose) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purposes = append(p.purposes, purpose)
	if len(p.passwords) == 0 {
		return nil, auth.ErrAbandoned
	}
	pw := []byte(p.passwords[0])
	p.passwords = p.passwords[1:]
	p.handedOut = append(p.handedOut, pw)
	return pw, nil
}

// wipedPasswords counts handed-out password buffers that are now all zero.
func (p *scriptedPrompter) wipedPasswords() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pw := range p.handedOut {
		if len(pw) > 0 && bytes.Count(pw, []byte{0}) == len(pw) {
			n++
		}
	}
	return n
}

func (p *scriptedPrompter) Notify(_ context.Context, n auth.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *scriptedPrompter) noticeKinds() []auth.NoticeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]auth.NoticeKind, 0, len(p.notices))
	for _, n := range p.notices {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// memBackend is an in-memory auth.Backend. The fail* fields inject errors
// into the matching operation.
type memBackend struct {
	mu       sync.Mutex
	profiles map[string]auth.Profile
	saves    map[string]auth.EncryptedSave

	failCreateAccount error
	failPutSave       error
	failUpdateProfile error
}

func newMemBackend() *memBackend {
	return &memBackend{
		profiles: make(map[string]auth.Profile),
		saves:    make(map[string]auth.EncryptedSave),
	}
}

func (b *memBackend) FindProfile(_ context.Context, username string) (*auth.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &p, nil
}

func (b *memBackend) CreateProfile(_ context.Context, p *auth.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.profiles[p.Username]; ok {
		return auth.ErrDuplicateUsername
	}
	b.profiles[p.Username] = *p
	return nil
}

func (b *memBackend) CreateAccount(_ context.Context, p *auth.Profile, s *auth.EncryptedSave) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreateAccount != nil {
		return b.failCreateAccount
	}
	if _, ok := b.profiles[p.Username]; ok {
		return auth.ErrDuplicateUsername
	}
	b.profiles[p.Username] = *p
	b.saves[p.Username] = *s
	return nil
}

func (b *memBackend) UpdateProfile(_ context.Context, p *auth.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failUpdateProfile != nil {
		return b.failUpdateProfile
	}
	cur, ok := b.profiles[p.Username]
	if !ok {
		return auth.ErrNotFound
	}
	cur.LastPlayed = p.LastPlayed
	cur.TotalSessions = p.TotalSessions
	b.profiles[p.Username] = cur
	return nil
}

func (b *memBackend) GetSave(_ context.Context, username string) (*auth.EncryptedSave, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.saves[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	s.Ciphertext = bytes.Clone(s.Ciphertext)
	return &s, nil
}

func (b *memBackend) PutSave(_ context.Context, s *auth.EncryptedSave) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPutSave != nil {
		return b.failPutSave
	}
	if _, ok := b.profiles[s.Username]; !ok {
		return auth.ErrNotFound
	}
	b.saves[s.Username] = *s
	return nil
}

func (b *memBackend) TopScores(_ context.Context, limit int) ([]auth.ScoreEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]auth.ScoreEntry, 0, len(b.saves))
	for _, s := range b.saves {
		rows = append(rows, auth.ScoreEntry{Username: s.Username, HighScoreHint: s.HighScoreHint, UpdatedAt: s.UpdatedAt})
	}
	slices.SortFunc(rows, func(a, b auth.ScoreEntry) int {
		if c := cmp.Compare(b.HighScoreHint, a.HighScoreHint); c != 0 {
			return c
		}
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (b *memBackend) DeleteAccount(_ context.Context, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.profiles[username]; !ok {
		return auth.ErrNotFound
	}
	delete(b.profiles, username)
	delete(b.saves, username)
	return nil
}

func (b *memBackend) CountProfiles(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.profiles)), nil
}

func (b *memBackend) Close() error { return nil }

func (b *memBackend) inject(fn func(*memBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *memBackend) tamper(username string, fn func(*auth.EncryptedSave)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.saves[username]
	s.Ciphertext = bytes.Clone(s.Ciphertext)
	fn(&s)
	b.saves[username] = s
}
