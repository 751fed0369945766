// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/subtle"

	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/vaultcrypto"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Credential is the stored verification material for one account.
type Credential struct {
	Hash   []byte
	Salt   []byte
	Params vaultcrypto.Params
}

// CredentialHasher derives and checks password verification hashes.
type CredentialHasher interface {
	// Hash generates a fresh salt and derives the verification hash.
	// The caller keeps ownership of password.
	Hash(password []byte) (Credential, error)

	// Verify reports whether password matches c. The comparison is constant time.
	Verify(password []byte, c Credential) bool
}

// Argon2idHasher implements CredentialHasher with argon2id.
type Argon2idHasher struct {
	params vaultcrypto.Params
}

// NewArgon2idHasher creates a hasher that uses params for new credentials.
func NewArgon2idHasher(params vaultcrypto.Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash derives a verification hash under a new random salt.
func (h *Argon2idHasher) Hash(password []byte) (Credential, error) {
	if len(password) == 0 {
		return Credential{}, ErrEmptyPassword
	}

	salt, err := vaultcrypto.NewSalt()
	if err != nil {
		return Credential{}, err
	}

	hash, err := vaultcrypto.DeriveKey(password, salt, vaultcrypto.PurposeVerify, h.params)
	if err != nil {
		return Credential{}, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	return Credential{Hash: hash, Salt: salt, Params: h.params}, nil
}

// Verify re-derives with the stored salt and parameters.
func (h *Argon2idHasher) Verify(password []byte, c Credential) bool {
	if len(c.Hash) == 0 {
		return false
	}

	computed, err := vaultcrypto.DeriveKey(password, c.Salt, vaultcrypto.PurposeVerify, c.Params)
	if err != nil {
		return false
	}
	defer vaultcrypto.Wipe(computed)

	return subtle.ConstantTimeCompare(computed, c.Hash) == 1
}

var _ CredentialHasher = (*Argon2idHasher)(nil)
