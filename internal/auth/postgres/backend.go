// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth.Backend on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/store"
	"github.com/holomush/savevault/internal/vaultcrypto"
)

// Pool is the subset of pgxpool.Pool used by Backend.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Backend implements auth.Backend using the profiles and saves tables.
type Backend struct {
	pool Pool
}

// New wraps an existing pool.
func New(pool Pool) *Backend {
	return &Backend{pool: pool}
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	connectTimeout time.Duration
	autoMigrate    bool
	logger         *slog.Logger
}

// WithConnectTimeout bounds each new connection attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *openOptions) { o.connectTimeout = d }
}

// WithAutoMigrate applies pending schema migrations after the ping succeeds.
func WithAutoMigrate(enabled bool) Option {
	return func(o *openOptions) { o.autoMigrate = enabled }
}

// WithLogger sets the logger used while migrating.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects to dsn and pings the server before returning. Callers
// bound the connect attempt with ctx.
func Open(ctx context.Context, dsn string, opts ...Option) (*Backend, error) {
	o := openOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("VAULT_DB_CONFIG_INVALID").Wrap(err)
	}
	if o.connectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = o.connectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("VAULT_DB_UNAVAILABLE").
			With("operation", "create pool").
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("VAULT_DB_UNAVAILABLE").
			With("operation", "ping").
			With("host", cfg.ConnConfig.Host).
			Wrap(errors.Join(auth.ErrBackendUnavailable, err))
	}

	if o.autoMigrate {
		if err := migrateUp(dsn, o.logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return New(pool), nil
}

func migrateUp(dsn string, logger *slog.Logger) error {
	m, err := store.NewMigrator(dsn, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("remote schema up to date")
	return nil
}

// usernameLengthConstraint is the only check constraint that concerns the name.
const usernameLengthConstraint = "profiles_username_length"

// classify maps driver errors onto the auth backend sentinels.
func classify(err error, code string, username string) error {
	builder := oops.Code(code).With("username", username)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		builder = builder.With("sqlstate", pgErr.Code)
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return builder.Wrap(errors.Join(auth.ErrDuplicateUsername, err))
		case pgerrcode.ForeignKeyViolation:
			return builder.Wrap(errors.Join(auth.ErrNotFound, err))
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == usernameLengthConstraint {
				return builder.Wrap(errors.Join(auth.ErrInvalidUsername, err))
			}
			return builder.With("constraint", pgErr.ConstraintName).Wrap(errors.Join(auth.ErrValidation, err))
		case pgerrcode.UndefinedTable:
			return builder.Hint("run `savevault migrate up` against this database").Wrap(err)
		}
		return builder.Wrap(err)
	}
	return builder.Wrap(errors.Join(auth.ErrBackendUnavailable, err))
}

const selectProfile = `
	SELECT id, username, password_hash, salt, kdf_params,
	       created_at, last_played, total_sessions
	FROM profiles
	WHERE username = $1`

// FindProfile implements auth.Backend.
func (b *Backend) FindProfile(ctx context.Context, username string) (*auth.Profile, error) {
	var (
		p       auth.Profile
		idStr   string
		kdfJSON []byte
	)
	err := b.pool.QueryRow(ctx, selectProfile, username).Scan(
		&idStr,
		&p.Username,
		&p.PasswordHash,
		&p.Salt,
		&kdfJSON,
		&p.CreatedAt,
		&p.LastPlayed,
		&p.TotalSessions,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err, "PROFILE_GET_FAILED", username)
	}

	p.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PROFILE_CORRUPTED").
			With("username", username).
			With("field", "id").
			Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}
	if err := json.Unmarshal(kdfJSON, &p.KDF); err != nil {
		return nil, oops.Code("PROFILE_CORRUPTED").
			With("username", username).
			With("field", "kdf_params").
			Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}
	return &p, nil
}

const insertProfile = `
	INSERT INTO profiles (
		id, username, password_hash, salt, kdf_params,
		created_at, last_played, total_sessions
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func profileArgs(p *auth.Profile) ([]any, error) {
	kdfJSON, err := marshalParams(p.KDF)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID.String(),
		p.Username,
		p.PasswordHash,
		p.Salt,
		kdfJSON,
		p.CreatedAt,
		p.LastPlayed,
		p.TotalSessions,
	}, nil
}

// CreateProfile implements auth.Backend. The unique constraint on
// username decides concurrent creators.
func (b *Backend) CreateProfile(ctx context.Context, p *auth.Profile) error {
	args, err := profileArgs(p)
	if err != nil {
		return err
	}
	if _, err := b.pool.Exec(ctx, insertProfile, args...); err != nil {
		return classify(err, "PROFILE_CREATE_FAILED", p.Username)
	}
	return nil
}

// CreateAccount implements auth.Backend. Both rows are inserted in one
// transaction, so a failed save insert leaves no profile behind.
func (b *Backend) CreateAccount(ctx context.Context, p *auth.Profile, s *auth.EncryptedSave) (err error) {
	if s.Username != p.Username {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("username", p.Username).
			With("save_username", s.Username).
			Wrapf(auth.ErrValidation, "save belongs to a different account")
	}
	args, err := profileArgs(p)
	if err != nil {
		return err
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return classify(err, "ACCOUNT_CREATE_FAILED", p.Username)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // the insert error is what the caller needs
		}
	}()

	if _, err = tx.Exec(ctx, insertProfile, args...); err != nil {
		return classify(err, "ACCOUNT_CREATE_FAILED", p.Username)
	}
	if _, err = tx.Exec(ctx, insertSave, saveArgs(s)...); err != nil {
		return oops.With("operation", "insert save").Wrap(classify(err, "ACCOUNT_CREATE_FAILED", p.Username))
	}
	if err = tx.Commit(ctx); err != nil {
		return oops.With("operation", "commit").Wrap(classify(err, "ACCOUNT_CREATE_FAILED", p.Username))
	}
	return nil
}

// UpdateProfile implements auth.Backend.
func (b *Backend) UpdateProfile(ctx context.Context, p *auth.Profile) error {
	tag, err := b.pool.Exec(ctx, `
		UPDATE profiles
		SET last_played = $2, total_sessions = $3
		WHERE username = $1
	`, p.Username, p.LastPlayed, p.TotalSessions)
	if err != nil {
		return classify(err, "PROFILE_UPDATE_FAILED", p.Username)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").With("username", p.Username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// GetSave implements auth.Backend.
func (b *Backend) GetSave(ctx context.Context, username string) (*auth.EncryptedSave, error) {
	s := auth.EncryptedSave{Username: username}
	err := b.pool.QueryRow(ctx, `
		SELECT ciphertext, nonce, tag, salt, updated_at, high_score_hint
		FROM saves
		WHERE username = $1
	`, username).Scan(&s.Ciphertext, &s.Nonce, &s.Tag, &s.Salt, &s.UpdatedAt, &s.HighScoreHint)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SAVE_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err, "SAVE_GET_FAILED", username)
	}
	return &s, nil
}

const insertSave = `
	INSERT INTO saves (username, ciphertext, nonce, tag, salt, updated_at, high_score_hint)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func saveArgs(s *auth.EncryptedSave) []any {
	return []any{
		s.Username,
		s.Ciphertext,
		s.Nonce,
		s.Tag,
		s.Salt,
		s.UpdatedAt,
		s.HighScoreHint,
	}
}

// PutSave implements auth.Backend. The whole envelope is replaced in one
// statement; a save for an unknown account violates the foreign key.
func (b *Backend) PutSave(ctx context.Context, s *auth.EncryptedSave) error {
	_, err := b.pool.Exec(ctx, insertSave+`
		ON CONFLICT (username) DO UPDATE SET
			ciphertext      = EXCLUDED.ciphertext,
			nonce           = EXCLUDED.nonce,
			tag             = EXCLUDED.tag,
			salt            = EXCLUDED.salt,
			updated_at      = EXCLUDED.updated_at,
			high_score_hint = EXCLUDED.high_score_hint
	`, saveArgs(s)...)
	if err != nil {
		return classify(err, "SAVE_PUT_FAILED", s.Username)
	}
	return nil
}

// TopScores implements auth.Backend.
func (b *Backend) TopScores(ctx context.Context, limit int) ([]auth.ScoreEntry, error) {
	if limit <= 0 {
		return []auth.ScoreEntry{}, nil
	}

	rows, err := b.pool.Query(ctx, `
		SELECT username, high_score_hint, updated_at
		FROM saves
		ORDER BY high_score_hint DESC, updated_at DESC, username
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify(err, "SCORES_QUERY_FAILED", "")
	}
	defer rows.Close()

	entries := make([]auth.ScoreEntry, 0, limit)
	for rows.Next() {
		var e auth.ScoreEntry
		if err := rows.Scan(&e.Username, &e.HighScoreHint, &e.UpdatedAt); err != nil {
			return nil, oops.Code("SCORES_SCAN_FAILED").Wrap(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "SCORES_QUERY_FAILED", "")
	}
	return entries, nil
}

// DeleteAccount implements auth.Backend. The save row cascades.
func (b *Backend) DeleteAccount(ctx context.Context, username string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM profiles WHERE username = $1`, username)
	if err != nil {
		return classify(err, "PROFILE_DELETE_FAILED", username)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// CountProfiles implements auth.Backend.
func (b *Backend) CountProfiles(ctx context.Context) (int64, error) {
	var n int64
	if err := b.pool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, classify(err, "PROFILE_COUNT_FAILED", "")
	}
	return n, nil
}

// Close releases the pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func marshalParams(p vaultcrypto.Params) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", oops.Code("PROFILE_CREATE_FAILED").With("operation", "marshal kdf params").Wrap(err)
	}
	return string(data), nil
}

var _ auth.Backend = (*Backend)(nil)
