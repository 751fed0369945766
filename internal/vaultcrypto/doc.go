// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package vaultcrypto holds the stateless primitives the save vault is built on:
// password-based key derivation with purpose labels and AES-256-GCM sealing.
//
// Keys for different purposes are derived from the same (password, salt) pair
// but never collide, because the purpose label is mixed into the KDF input.
// Decryption fails closed: every failure is reported as ErrAuthFailed.
package vaultcrypto
