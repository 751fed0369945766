// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides account registration, login, and encrypted save
// persistence for savevault.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewProfile - creates a Profile with a validated username and credential
//   - NewArgon2idHasher - creates a CredentialHasher with validated KDF parameters
//
// Direct struct initialization bypasses validation and may create invalid state.
// Backend implementations receive pre-validated types from these constructors.
//
// # Authority
//
// Authority drives the login state machine through a Prompter and persists
// progress through a Backend. Save payloads are sealed with a key derived
// from the account password and the profile's salt; the password itself is
// never stored.
//
// # Backends
//
// SelectBackend tries the remote store once and falls back to a local
// backend for the rest of the process when the remote store is unreachable.
package auth
