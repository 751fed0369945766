// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/progress"
	"github.com/holomush/savevault/internal/vaultcrypto"
)

const envelopeAADPrefix = "savevault/save/v1"

// envelopeAAD binds the owner and the plaintext leaderboard hint to the envelope.
func envelopeAAD(username string, hint int64) []byte {
	aad := make([]byte, 0, len(envelopeAADPrefix)+len(username)+24)
	aad = append(aad, envelopeAADPrefix...)
	aad = append(aad, 0)
	aad = append(aad, username...)
	aad = append(aad, 0)
	aad = strconv.AppendInt(aad, hint, 10)
	return aad
}

// sealProgress encrypts p for profile with a key derived from password and
// the profile's own salt.
func sealProgress(p progress.Progress, password []byte, profile *Profile, now time.Time) (*EncryptedSave, error) {
	plaintext, err := progress.Encode(p)
	if err != nil {
		return nil, err
	}
	defer vaultcrypto.Wipe(plaintext)

	key, err := vaultcrypto.DeriveKey(password, profile.Salt, vaultcrypto.PurposeEncrypt, profile.KDF)
	if err != nil {
		return nil, oops.Code("VAULT_SEAL_FAILED").With("operation", "derive key").Wrap(err)
	}
	defer vaultcrypto.Wipe(key)

	sealed, err := vaultcrypto.Encrypt(plaintext, key, envelopeAAD(profile.Username, p.HighScore))
	if err != nil {
		return nil, oops.Code("VAULT_SEAL_FAILED").With("operation", "encrypt").Wrap(err)
	}

	return &EncryptedSave{
		Username:      profile.Username,
		Ciphertext:    sealed.Ciphertext,
		Nonce:         sealed.Nonce,
		Tag:           sealed.Tag,
		Salt:          bytes.Clone(profile.Salt),
		UpdatedAt:     now.UTC(),
		HighScoreHint: p.HighScore,
	}, nil
}

// openProgress decrypts save for profile. Every failure after the password
// has been verified is reported as ErrCorruptedEnvelope; the "reason"
// context is for operators.
func openProgress(save *EncryptedSave, password []byte, profile *Profile) (progress.Progress, error) {
	corrupted := oops.Code("VAULT_CORRUPTED_ENVELOPE").With("username", profile.Username)

	if save.Username != profile.Username {
		return progress.Progress{}, corrupted.With("reason", "owner mismatch").Wrap(ErrCorruptedEnvelope)
	}
	if subtle.ConstantTimeCompare(save.Salt, profile.Salt) != 1 {
		return progress.Progress{}, corrupted.With("reason", "salt mismatch").Wrap(ErrCorruptedEnvelope)
	}

	key, err := vaultcrypto.DeriveKey(password, profile.Salt, vaultcrypto.PurposeEncrypt, profile.KDF)
	if err != nil {
		return progress.Progress{}, corrupted.With("reason", "key derivation").Wrap(errors.Join(ErrCorruptedEnvelope, err))
	}
	defer vaultcrypto.Wipe(key)

	plaintext, err := vaultcrypto.Decrypt(vaultcrypto.Sealed{
		Ciphertext: save.Ciphertext,
		Nonce:      save.Nonce,
		Tag:        save.Tag,
	}, key, envelopeAAD(save.Username, save.HighScoreHint))
	if err != nil {
		return progress.Progress{}, corrupted.With("reason", "authentication tag mismatch").Wrap(errors.Join(ErrCorruptedEnvelope, err))
	}
	defer vaultcrypto.Wipe(plaintext)

	p, err := progress.Decode(plaintext)
	if err != nil {
		return progress.Progress{}, corrupted.With("reason", "payload decode").Wrap(errors.Join(ErrCorruptedEnvelope, err))
	}
	if p.HighScore != save.HighScoreHint {
		return progress.Progress{}, corrupted.With("reason", "score hint out of sync").Wrap(ErrCorruptedEnvelope)
	}
	return p, nil
}
