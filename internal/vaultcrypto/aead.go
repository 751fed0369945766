// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"github.com/samber/oops"
)

// Envelope geometry for AES-256-GCM.
const (
	NonceLen = 12
	TagLen   = 16
)

// ErrAuthFailed is the only error Decrypt returns. It does not say which
// input was wrong.
var ErrAuthFailed = errors.New("message authentication failed")

// Sealed is the output of one Encrypt call.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, oops.Code("CRYPTO_INVALID_KEY").
			With("key_len", len(key)).
			Errorf("key must be %d bytes", KeyLen)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oops.Code("CRYPTO_INVALID_KEY").Wrap(err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, TagLen)
	if err != nil {
		return nil, oops.Code("CRYPTO_INVALID_KEY").Wrap(err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with a fresh random nonce. aad is
// authenticated but not encrypted and may be nil.
func Encrypt(plaintext, key, aad []byte) (Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, oops.Code("CRYPTO_NONCE_FAILED").Wrap(err)
	}

	out := gcm.Seal(nil, nonce, plaintext, aad)
	split := len(out) - TagLen
	return Sealed{
		Ciphertext: out[:split:split],
		Nonce:      nonce,
		Tag:        out[split:],
	}, nil
}

// Decrypt opens s with key and aad. Any mismatch, including malformed
// lengths, yields ErrAuthFailed and a nil plaintext.
func Decrypt(s Sealed, key, aad []byte) ([]byte, error) {
	if len(s.Nonce) != NonceLen || len(s.Tag) != TagLen {
		return nil, ErrAuthFailed
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrAuthFailed
	}

	buf := make([]byte, 0, len(s.Ciphertext)+TagLen)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)

	plaintext, err := gcm.Open(nil, s.Nonce, buf, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
