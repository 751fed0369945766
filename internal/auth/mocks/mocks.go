// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/savevault/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockBackend is a mock auth.Backend.
type MockBackend struct {
	mock.Mock
}

var _ auth.Backend = (*MockBackend)(nil)

// NewMockBackend creates a MockBackend whose expectations are asserted on cleanup.
func NewMockBackend(t testingT) *MockBackend {
	m := &MockBackend{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// FindProfile implements auth.Backend.
func (m *MockBackend) FindProfile(ctx context.Context, username string) (*auth.Profile, error) {
	args := m.Called(ctx, username)
	p, _ := args.Get(0).(*auth.Profile)
	return p, args.Error(1)
}

// CreateProfile implements auth.Backend.
func (m *MockBackend) CreateProfile(ctx context.Context, p *auth.Profile) error {
	return m.Called(ctx, p).Error(0)
}

// CreateAccount implements auth.Backend.
func (m *MockBackend) CreateAccount(ctx context.Context, p *auth.Profile, s *auth.EncryptedSave) error {
	return m.Called(ctx, p, s).Error(0)
}

// UpdateProfile implements auth.Backend.
func (m *MockBackend) UpdateProfile(ctx context.Context, p *auth.Profile) error {
	return m.Called(ctx, p).Error(0)
}

// GetSave implements auth.Backend.
func (m *MockBackend) GetSave(ctx context.Context, username string) (*auth.EncryptedSave, error) {
	args := m.Called(ctx, username)
	s, _ := args.Get(0).(*auth.EncryptedSave)
	return s, args.Error(1)
}

// PutSave implements auth.Backend.
func (m *MockBackend) PutSave(ctx context.Context, s *auth.EncryptedSave) error {
	return m.Called(ctx, s).Error(0)
}

// TopScores implements auth.Backend.
func (m *MockBackend) TopScores(ctx context.Context, limit int) ([]auth.ScoreEntry, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]auth.ScoreEntry)
	return rows, args.Error(1)
}

// DeleteAccount implements auth.Backend.
func (m *MockBackend) DeleteAccount(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

// CountProfiles implements auth.Backend.
func (m *MockBackend) CountProfiles(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// Close implements auth.Backend.
func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

// MockCredentialHasher is a mock auth.CredentialHasher.
type MockCredentialHasher struct {
	mock.Mock
}

var _ auth.CredentialHasher = (*MockCredentialHasher)(nil)

// NewMockCredentialHasher creates a MockCredentialHasher.
func NewMockCredentialHasher(t testingT) *MockCredentialHasher {
	m := &MockCredentialHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.CredentialHasher.
func (m *MockCredentialHasher) Hash(password []byte) (auth.Credential, error) {
	args := m.Called(password)
	c, _ := args.Get(0).(auth.Credential)
	return c, args.Error(1)
}

// Verify implements auth.CredentialHasher.
func (m *MockCredentialHasher) Verify(password []byte, c auth.Credential) bool {
	return m.Called(password, c).Bool(0)
}

// MockRecorder is a mock auth.Recorder.
type MockRecorder struct {
	mock.Mock
}

var _ auth.Recorder = (*MockRecorder)(nil)

// NewMockRecorder creates a MockRecorder.
func NewMockRecorder(t testingT) *MockRecorder {
	m := &MockRecorder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// RecordLogin implements auth.Recorder.
func (m *MockRecorder) RecordLogin(outcome string) { m.Called(outcome) }

// RecordRegistration implements auth.Recorder.
func (m *MockRecorder) RecordRegistration(outcome string) { m.Called(outcome) }

// RecordSave implements auth.Recorder.
func (m *MockRecorder) RecordSave(outcome string) { m.Called(outcome) }
