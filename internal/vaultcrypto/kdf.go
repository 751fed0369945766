// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package vaultcrypto

import (
	"crypto/rand"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultTime      = 1         // iterations
	DefaultMemoryKiB = 64 * 1024 // 64 MB
	DefaultThreads   = 4         // parallelism
	KeyLen           = 32        // AES-256
	SaltLen          = 16        // salt length in bytes
)

// Purpose selects an independent key from the same password and salt.
type Purpose string

// Derivation purposes.
const (
	PurposeVerify  Purpose = "savevault/verify/v1"
	PurposeEncrypt Purpose = "savevault/encrypt/v1"
)

// Params are the argon2id cost parameters used for one derivation.
type Params struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memoryKiB"`
	Threads   uint8  `json:"threads"`
	KeyLen    uint32 `json:"keyLen"`
}

// DefaultParams returns the parameters used for new accounts unless configured otherwise.
func DefaultParams() Params {
	return Params{
		Time:      DefaultTime,
		MemoryKiB: DefaultMemoryKiB,
		Threads:   DefaultThreads,
		KeyLen:    KeyLen,
	}
}

// Validate rejects parameters argon2 cannot run with or that produce keys of the wrong size.
func (p Params) Validate() error {
	if p.Time == 0 {
		return oops.Code("CRYPTO_INVALID_PARAMS").Errorf("kdf time must be positive")
	}
	if p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB == 0 {
		return oops.Code("CRYPTO_INVALID_PARAMS").
			With("memory_kib", p.MemoryKiB).
			With("threads", p.Threads).
			Errorf("kdf memory must be at least 8 KiB per thread")
	}
	if p.Threads == 0 {
		return oops.Code("CRYPTO_INVALID_PARAMS").Errorf("kdf threads must be positive")
	}
	if p.KeyLen != KeyLen {
		return oops.Code("CRYPTO_INVALID_PARAMS").
			With("key_len", p.KeyLen).
			Errorf("kdf key length must be %d bytes", KeyLen)
	}
	return nil
}

// NewSalt returns SaltLen bytes from crypto/rand.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, oops.Code("CRYPTO_SALT_FAILED").Wrap(err)
	}
	return salt, nil
}

// DeriveKey stretches password and salt into a key for the given purpose.
// The result is deterministic for identical inputs. The purpose label is
// prepended to the password with a NUL separator before hashing.
func DeriveKey(password, salt []byte, purpose Purpose, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, oops.Code("CRYPTO_INVALID_SALT").Errorf("salt cannot be empty")
	}
	if purpose == "" {
		return nil, oops.Code("CRYPTO_INVALID_PURPOSE").Errorf("purpose label cannot be empty")
	}

	input := make([]byte, 0, len(purpose)+1+len(password))
	input = append(input, purpose...)
	input = append(input, 0)
	input = append(input, password...)
	defer Wipe(input)

	return argon2.IDKey(input, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen), nil
}

// Wipe zeroes b in place. Nil is allowed.
func Wipe(b []byte) {
	clear(b)
}
