// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Backend outcomes.
var (
	// ErrNotFound is returned when a requested profile or save does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned by CreateProfile and CreateAccount
	// when the name is taken.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidUsername is returned when a username cannot be stored as given.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrCorruptedRecord is returned when a stored record cannot be parsed.
	ErrCorruptedRecord = errors.New("stored record is corrupted")

	// ErrBackendUnavailable is returned when the store cannot be reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)

// Authentication outcomes.
var (
	// ErrValidation covers empty input, mismatched confirmation and records
	// a backend refuses to store.
	ErrValidation = errors.New("validation failed")

	// ErrAuthenticationFailed is a wrong password.
	ErrAuthenticationFailed = errors.New("invalid username or password")

	// ErrCorruptedEnvelope means the password matched but the save did not open.
	ErrCorruptedEnvelope = errors.New("save data is corrupted")

	// ErrLockedOut ends a login after MaxAttempts wrong passwords.
	ErrLockedOut = errors.New("too many failed login attempts")

	// ErrAbandoned is returned when the user backs out of authentication.
	// Prompters return it (possibly wrapped) to cancel.
	ErrAbandoned = errors.New("authentication abandoned")

	// ErrSessionClosed is returned when saving through a closed session.
	ErrSessionClosed = errors.New("session is closed")
)
