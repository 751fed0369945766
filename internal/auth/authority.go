// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/savevault/internal/progress"
	"github.com/holomush/savevault/internal/vaultcrypto"
	"github.com/holomush/savevault/pkg/errutil"
)

const tracerName = "github.com/holomush/savevault/internal/auth"

// State is a step of the Authenticate state machine.
type State int

// Authentication states.
const (
	StateAwaitingUsername State = iota
	StateAccountExists
	StateAccountMissing
	StateRegistering
	StateLoggingIn
	StateAuthenticated
	StateLockedOut
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateAwaitingUsername:
		return "awaiting_username"
	case StateAccountExists:
		return "account_exists"
	case StateAccountMissing:
		return "account_missing"
	case StateRegistering:
		return "registering"
	case StateLoggingIn:
		return "logging_in"
	case StateAuthenticated:
		return "authenticated"
	case StateLockedOut:
		return "locked_out"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// LeaderboardEntry is one public leaderboard row.
type LeaderboardEntry struct {
	Name       string
	Score      int64
	LastPlayed time.Time
}

// Authority runs registration and login against a Backend and persists
// progress for authenticated sessions.
type Authority struct {
	backend  Backend
	hasher   CredentialHasher
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	tracer   trace.Tracer
}

// Option configures an Authority.
type Option func(*Authority)

// WithLogger sets the logger. A nil logger is rejected by NewAuthority.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Authority) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthority creates an Authority.
func NewAuthority(backend Backend, hasher CredentialHasher, opts ...Option) (*Authority, error) {
	if backend == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("backend is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential hasher is required")
	}

	a := &Authority{
		backend:  backend,
		hasher:   hasher,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	return a, nil
}

// Authenticate resolves a username to an account, registering it or
// logging in as needed, and returns the session with the decrypted progress.
// It returns ErrAbandoned when the user declines or cancels and ErrLockedOut
// after MaxAttempts wrong passwords.
func (a *Authority) Authenticate(ctx context.Context, p Prompter) (sess *Session, prog progress.Progress, err error) {
	if p == nil {
		return nil, progress.Progress{}, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("prompter is required")
	}

	ctx, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	var (
		state    = StateAwaitingUsername
		username string
		profile  *Profile
	)

	for {
		a.logger.DebugContext(ctx, "authentication state", "state", state.String(), "username", username)

		switch state {
		case StateAwaitingUsername:
			name, promptErr := p.Username(ctx)
			if promptErr != nil {
				return nil, progress.Progress{}, a.promptFailed(ctx, promptErr)
			}
			name = strings.TrimSpace(name)
			if vErr := ValidateUsername(name); vErr != nil {
				p.Notify(ctx, Notice{Kind: NoticeInvalidInput, Err: vErr})
				continue
			}

			username = name
			found, findErr := a.backend.FindProfile(ctx, username)
			switch {
			case findErr == nil:
				profile = found
				state = StateAccountExists
			case errors.Is(findErr, ErrNotFound):
				state = StateAccountMissing
			case errors.Is(findErr, ErrInvalidUsername):
				p.Notify(ctx, Notice{Kind: NoticeInvalidInput, Username: username, Err: findErr})
			case errors.Is(findErr, ErrDuplicateUsername):
				// The store holds the name under a different spelling.
				p.Notify(ctx, Notice{Kind: NoticeNameTaken, Username: username})
			default:
				return nil, progress.Progress{}, oops.Code("AUTH_LOOKUP_FAILED").
					With("operation", "find profile").
					With("username", username).
					Wrap(findErr)
			}

		case StateAccountMissing:
			create, promptErr := p.ConfirmRegistration(ctx, username)
			if promptErr != nil {
				return nil, progress.Progress{}, a.promptFailed(ctx, promptErr)
			}
			if create {
				state = StateRegistering
			} else {
				state = StateAbandoned
			}

		case StateRegistering:
			sess, prog, err = a.register(ctx, p, username)
			if err == nil {
				return sess, prog, nil
			}
			if errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicateUsername) {
				state = StateAwaitingUsername
				continue
			}
			return nil, progress.Progress{}, err

		case StateAccountExists:
			state = StateLoggingIn

		case StateLoggingIn:
			return a.login(ctx, p, profile)

		case StateAbandoned:
			a.recorder.RecordRegistration(OutcomeAbandoned)
			a.logger.InfoContext(ctx, "registration declined", "username", username)
			return nil, progress.Progress{}, oops.Code("AUTH_ABANDONED").
				With("username", username).
				Wrap(ErrAbandoned)

		default:
			return nil, progress.Progress{}, oops.Code("AUTH_INVALID_STATE").
				With("state", state.String()).
				Errorf("unexpected authentication state")
		}
	}
}

func (a *Authority) register(ctx context.Context, p Prompter, username string) (*Session, progress.Progress, error) {
	password, err := p.Password(ctx, PasswordNew)
	if err != nil {
		return nil, progress.Progress{}, a.promptFailed(ctx, err)
	}
	handedOff := false
	defer func() {
		if !handedOff {
			vaultcrypto.Wipe(password)
		}
	}()

	if len(bytes.TrimSpace(password)) == 0 {
		vErr := oops.Code("AUTH_INVALID_PASSWORD").Wrapf(ErrValidation, "password cannot be empty")
		p.Notify(ctx, Notice{Kind: NoticeInvalidInput, Username: username, Err: vErr})
		return nil, progress.Progress{}, vErr
	}

	confirm, err := p.Password(ctx, PasswordConfirm)
	if err != nil {
		return nil, progress.Progress{}, a.promptFailed(ctx, err)
	}
	match := subtle.ConstantTimeCompare(password, confirm) == 1
	vaultcrypto.Wipe(confirm)
	if !match {
		vErr := oops.Code("AUTH_PASSWORD_MISMATCH").Wrapf(ErrValidation, "passwords do not match")
		p.Notify(ctx, Notice{Kind: NoticeInvalidInput, Username: username, Err: vErr})
		return nil, progress.Progress{}, vErr
	}

	cred, err := a.hasher.Hash(password)
	if err != nil {
		return nil, progress.Progress{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			With("username", username).
			Wrap(err)
	}

	now := a.now()
	profile, err := NewProfile(username, cred, now)
	if err != nil {
		return nil, progress.Progress{}, err
	}

	initial := progress.New(username, now)
	save, err := sealProgress(initial, password, profile, now)
	if err != nil {
		return nil, progress.Progress{}, err
	}

	if err := a.backend.CreateAccount(ctx, profile, save); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			a.recorder.RecordRegistration(OutcomeNameTaken)
			a.logger.InfoContext(ctx, "registration lost race for username", "username", username)
			p.Notify(ctx, Notice{Kind: NoticeNameTaken, Username: username})
			return nil, progress.Progress{}, err
		}
		a.recorder.RecordRegistration(OutcomeFailure)
		return nil, progress.Progress{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			With("username", username).
			Wrap(err)
	}

	a.recorder.RecordRegistration(OutcomeSuccess)
	a.logger.InfoContext(ctx, "account created", "username", username, "profile_id", profile.ID.String())
	p.Notify(ctx, Notice{Kind: NoticeAccountCreated, Username: username})

	handedOff = true
	return newSession(profile, password, now), initial, nil
}

// login runs the bounded password loop. Wrong passwords touch no backend.
func (a *Authority) login(ctx context.Context, p Prompter, profile *Profile) (*Session, progress.Progress, error) {
	budget := NewAttemptBudget(MaxAttempts)
	cred := profile.Credential()

	for !budget.Exhausted() {
		password, err := p.Password(ctx, PasswordLogin)
		if err != nil {
			return nil, progress.Progress{}, a.promptFailed(ctx, err)
		}

		if a.hasher.Verify(password, cred) {
			return a.completeLogin(ctx, p, profile, password)
		}
		vaultcrypto.Wipe(password)

		budget.RecordFailure()
		a.recorder.RecordLogin(OutcomeFailure)
		a.logger.InfoContext(ctx, "login attempt failed",
			"username", profile.Username,
			"attempts_remaining", budget.Remaining())
		if !budget.Exhausted() {
			p.Notify(ctx, Notice{
				Kind:              NoticeWrongPassword,
				Username:          profile.Username,
				AttemptsRemaining: budget.Remaining(),
				Err:               ErrAuthenticationFailed,
			})
		}
	}

	a.recorder.RecordLogin(OutcomeLockedOut)
	a.logger.WarnContext(ctx, "login attempts exhausted", "username", profile.Username, "attempts", MaxAttempts)
	return nil, progress.Progress{}, oops.Code("AUTH_LOCKED_OUT").
		With("username", profile.Username).
		With("attempts", MaxAttempts).
		Wrap(ErrLockedOut)
}

// completeLogin takes ownership of password: it moves into the session on
// success and is wiped otherwise.
func (a *Authority) completeLogin(ctx context.Context, p Prompter, profile *Profile, password []byte) (*Session, progress.Progress, error) {
	handedOff := false
	defer func() {
		if !handedOff {
			vaultcrypto.Wipe(password)
		}
	}()

	save, err := a.backend.GetSave(ctx, profile.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = oops.Code("VAULT_CORRUPTED_ENVELOPE").
				With("username", profile.Username).
				With("reason", "save missing").
				Wrap(errors.Join(ErrCorruptedEnvelope, err))
			a.reportCorrupted(ctx, err)
			return nil, progress.Progress{}, err
		}
		return nil, progress.Progress{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get save").
			With("username", profile.Username).
			Wrap(err)
	}

	prog, err := openProgress(save, password, profile)
	if err != nil {
		a.reportCorrupted(ctx, err)
		return nil, progress.Progress{}, err
	}

	now := a.now()
	profile.LastPlayed = now.UTC()
	if err := a.backend.UpdateProfile(ctx, profile); err != nil {
		a.recorder.RecordLogin(OutcomeFailure)
		return nil, progress.Progress{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "update last played").
			With("username", profile.Username).
			Wrap(err)
	}

	a.recorder.RecordLogin(OutcomeSuccess)
	a.logger.InfoContext(ctx, "login succeeded", "username", profile.Username)
	p.Notify(ctx, Notice{Kind: NoticeLoggedIn, Username: profile.Username})

	handedOff = true
	return newSession(profile, password, now), prog, nil
}

// SaveProgress encrypts prog for the session's account and replaces its save.
// The key always comes from the session password and the profile's salt.
// An invalid payload is rejected before anything is written. If the profile
// update fails after the envelope is written, the new progress is already
// durable and only the profile's LastPlayed and TotalSessions lag behind.
func (a *Authority) SaveProgress(ctx context.Context, sess *Session, prog progress.Progress) (err error) {
	ctx, span := a.tracer.Start(ctx, "auth.SaveProgress")
	defer func() { endSpan(span, err) }()

	if sess.Closed() {
		return oops.Code("AUTH_SESSION_CLOSED").Wrap(ErrSessionClosed)
	}
	if err := prog.Validate(); err != nil {
		a.recorder.RecordSave(OutcomeFailure)
		return oops.Code("VAULT_SAVE_INVALID").
			With("username", sess.Username).
			Wrap(errors.Join(ErrValidation, err))
	}

	prog.Name = sess.Username
	now := a.now()
	profile := sess.profile

	save, err := sealProgress(prog, sess.password, &profile, now)
	if err != nil {
		a.recorder.RecordSave(OutcomeFailure)
		return err
	}

	if err := a.backend.PutSave(ctx, save); err != nil {
		a.recorder.RecordSave(OutcomeFailure)
		return oops.Code("VAULT_SAVE_FAILED").
			With("operation", "put save").
			With("username", sess.Username).
			Wrap(err)
	}

	profile.LastPlayed = now.UTC()
	profile.TotalSessions = prog.TotalSessions
	if err := a.backend.UpdateProfile(ctx, &profile); err != nil {
		a.recorder.RecordSave(OutcomeFailure)
		return oops.Code("VAULT_SAVE_FAILED").
			With("operation", "update profile").
			With("username", sess.Username).
			Wrap(err)
	}
	sess.profile = profile

	a.recorder.RecordSave(OutcomeSuccess)
	a.logger.DebugContext(ctx, "progress saved", "username", sess.Username, "high_score", prog.HighScore)
	return nil
}

// Leaderboard returns the top limit scores.
func (a *Authority) Leaderboard(ctx context.Context, limit int) (_ []LeaderboardEntry, err error) {
	ctx, span := a.tracer.Start(ctx, "auth.Leaderboard")
	defer func() { endSpan(span, err) }()

	rows, err := a.backend.TopScores(ctx, limit)
	if err != nil {
		return nil, oops.Code("VAULT_LEADERBOARD_FAILED").With("limit", limit).Wrap(err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, LeaderboardEntry{
			Name:       r.Username,
			Score:      r.HighScoreHint,
			LastPlayed: r.UpdatedAt,
		})
	}
	return entries, nil
}

func (a *Authority) promptFailed(ctx context.Context, err error) error {
	if errors.Is(err, ErrAbandoned) {
		a.logger.InfoContext(ctx, "authentication abandoned")
		return oops.Code("AUTH_ABANDONED").Wrap(err)
	}
	return oops.Code("AUTH_PROMPT_FAILED").Wrap(err)
}

func (a *Authority) reportCorrupted(ctx context.Context, err error) {
	a.recorder.RecordLogin(OutcomeCorrupted)
	errutil.LogError(a.logger, "save envelope could not be opened with a verified password", err)
	trace.SpanFromContext(ctx).AddEvent("corrupted_envelope")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
