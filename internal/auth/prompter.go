// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "context"

// PasswordPurpose tells the prompter which password is being asked for.
type PasswordPurpose int

// Password prompts.
const (
	PasswordLogin PasswordPurpose = iota
	PasswordNew
	PasswordConfirm
)

// NoticeKind classifies feedback sent to the prompter.
type NoticeKind int

// Notice kinds.
const (
	NoticeInvalidInput NoticeKind = iota
	NoticeNameTaken
	NoticeWrongPassword
	NoticeAccountCreated
	NoticeLoggedIn
)

// Notice is user-facing feedback emitted during Authenticate.
type Notice struct {
	Kind     NoticeKind
	Username string

	// AttemptsRemaining is set for NoticeWrongPassword.
	AttemptsRemaining int

	// Err carries the validation failure for NoticeInvalidInput.
	Err error
}

// Prompter is the interactive side of Authenticate. Any method may return
// ErrAbandoned to stop; other errors abort authentication and are returned.
type Prompter interface {
	// Username asks which account to use.
	Username(ctx context.Context) (string, error)

	// ConfirmRegistration asks whether to create the missing account.
	ConfirmRegistration(ctx context.Context, username string) (bool, error)

	// Password asks for a password. Ownership of the returned buffer passes
	// to the caller, which wipes it when done.
	Password(ctx context.Context, purpose PasswordPurpose) ([]byte, error)

	// Notify shows feedback.
	Notify(ctx context.Context, n Notice)
}
