// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/savevault/internal/auth"
)

func TestSession_NilIsClosed(t *testing.T) {
	var s *auth.Session
	assert.True(t, s.Closed())
	assert.NotPanics(t, s.Close)
}

func TestSession_ZeroValueIsClosed(t *testing.T) {
	s := &auth.Session{Username: "alice"}
	assert.True(t, s.Closed())
}
