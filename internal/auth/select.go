// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultConnectTimeout bounds the reachability check of the remote store.
const DefaultConnectTimeout = 3 * time.Second

// BackendKind names the backend chosen by SelectBackend.
type BackendKind string

// Backend kinds.
const (
	BackendRemote BackendKind = "remote"
	BackendLocal  BackendKind = "local"
)

// SelectMode controls fallback behavior.
type SelectMode string

// Selection modes.
const (
	// ModeAuto uses the remote store when reachable and the local backend otherwise.
	ModeAuto SelectMode = "auto"
	// ModeRemote requires the remote store.
	ModeRemote SelectMode = "remote"
	// ModeLocal skips the remote store.
	ModeLocal SelectMode = "local"
)

// ParseSelectMode validates a mode string.
func ParseSelectMode(s string) (SelectMode, error) {
	switch m := SelectMode(s); m {
	case ModeAuto, ModeRemote, ModeLocal:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", oops.Code("BACKEND_INVALID_MODE").
			With("mode", s).
			Wrapf(ErrValidation, "backend mode must be auto, remote, or local")
	}
}

// Opener opens a backend. Remote openers are expected to verify
// reachability before returning.
type Opener func(ctx context.Context) (Backend, error)

// SelectOptions configures SelectBackend.
type SelectOptions struct {
	Mode SelectMode
	// Remote is nil when no remote store is configured.
	Remote         Opener
	Local          Opener
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// SelectBackend chooses the backend for the lifetime of the process. The
// remote store is tried once; if it is unreachable in ModeAuto the local
// backend is used and the remote store is not retried.
func SelectBackend(ctx context.Context, opts SelectOptions) (Backend, BackendKind, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	if mode != ModeLocal {
		if opts.Remote == nil {
			if mode == ModeRemote {
				return nil, "", oops.Code("BACKEND_REMOTE_UNCONFIGURED").
					Wrapf(ErrBackendUnavailable, "remote backend required but not configured")
			}
			logger.DebugContext(ctx, "no remote store configured")
		} else {
			connectCtx, cancel := context.WithTimeout(ctx, timeout)
			backend, err := opts.Remote(connectCtx)
			cancel()
			if err == nil {
				logger.InfoContext(ctx, "using remote backend")
				return backend, BackendRemote, nil
			}
			if mode == ModeRemote {
				return nil, "", oops.Code("BACKEND_REMOTE_UNAVAILABLE").
					With("connect_timeout", timeout.String()).
					Wrap(err)
			}
			logger.WarnContext(ctx, "remote store unreachable, falling back to local saves",
				"connect_timeout", timeout.String(),
				"error", err)
		}
	}

	if opts.Local == nil {
		return nil, "", oops.Code("BACKEND_LOCAL_UNCONFIGURED").
			Wrapf(ErrBackendUnavailable, "local backend not configured")
	}
	backend, err := opts.Local(ctx)
	if err != nil {
		return nil, "", oops.Code("BACKEND_LOCAL_UNAVAILABLE").Wrap(err)
	}
	logger.InfoContext(ctx, "using local backend")
	return backend, BackendLocal, nil
}
