// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package filestore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/vaultcrypto"
)

// FormatVersion is written to every save file.
const FormatVersion = "1.0.0"

// formatConstraint accepts any file written by a compatible release.
var formatConstraint = mustConstraint("^1.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Document is the on-disk layout of one account file.
type Document struct {
	Format  string          `json:"format" jsonschema:"pattern=^[0-9]+[.][0-9]+[.][0-9]+$"`
	Profile ProfileDocument `json:"profile"`
	Save    *SaveDocument   `json:"save,omitempty"`
}

// ProfileDocument is the stored form of auth.Profile.
type ProfileDocument struct {
	ID            string             `json:"id" jsonschema:"minLength=26,maxLength=26"`
	Username      string             `json:"username" jsonschema:"minLength=1,maxLength=64"`
	PasswordHash  []byte             `json:"passwordHash"`
	Salt          []byte             `json:"salt"`
	KDF           vaultcrypto.Params `json:"kdf"`
	CreatedAt     time.Time          `json:"createdAt"`
	LastPlayed    time.Time          `json:"lastPlayed"`
	TotalSessions int                `json:"totalSessions" jsonschema:"minimum=0"`
}

// SaveDocument is the stored form of auth.EncryptedSave.
type SaveDocument struct {
	Username      string    `json:"username" jsonschema:"minLength=1,maxLength=64"`
	Ciphertext    []byte    `json:"ciphertext"`
	Nonce         []byte    `json:"nonce"`
	Tag           []byte    `json:"tag"`
	Salt          []byte    `json:"salt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	HighScoreHint int64     `json:"highScoreHint"`
}

func newDocument(p *auth.Profile) *Document {
	return &Document{
		Format: FormatVersion,
		Profile: ProfileDocument{
			ID:            p.ID.String(),
			Username:      p.Username,
			PasswordHash:  p.PasswordHash,
			Salt:          p.Salt,
			KDF:           p.KDF,
			CreatedAt:     p.CreatedAt.UTC(),
			LastPlayed:    p.LastPlayed.UTC(),
			TotalSessions: p.TotalSessions,
		},
	}
}

func (d *Document) profile() (*auth.Profile, error) {
	id, err := ulid.ParseStrict(d.Profile.ID)
	if err != nil {
		return nil, oops.Code("FILESTORE_CORRUPTED").
			With("username", d.Profile.Username).
			With("field", "profile.id").
			Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}
	return &auth.Profile{
		ID:            id,
		Username:      d.Profile.Username,
		PasswordHash:  d.Profile.PasswordHash,
		Salt:          d.Profile.Salt,
		KDF:           d.Profile.KDF,
		CreatedAt:     d.Profile.CreatedAt,
		LastPlayed:    d.Profile.LastPlayed,
		TotalSessions: d.Profile.TotalSessions,
	}, nil
}

func (d *Document) setSave(s *auth.EncryptedSave) {
	d.Save = &SaveDocument{
		Username:      s.Username,
		Ciphertext:    s.Ciphertext,
		Nonce:         s.Nonce,
		Tag:           s.Tag,
		Salt:          s.Salt,
		UpdatedAt:     s.UpdatedAt.UTC(),
		HighScoreHint: s.HighScoreHint,
	}
}

func (d *Document) save() (*auth.EncryptedSave, error) {
	if d.Save.Username != d.Profile.Username {
		return nil, oops.Code("FILESTORE_CORRUPTED").
			With("username", d.Profile.Username).
			With("save_username", d.Save.Username).
			With("field", "save.username").
			Wrapf(auth.ErrCorruptedRecord, "save belongs to a different account")
	}
	return &auth.EncryptedSave{
		Username:      d.Save.Username,
		Ciphertext:    d.Save.Ciphertext,
		Nonce:         d.Save.Nonce,
		Tag:           d.Save.Tag,
		Salt:          d.Save.Salt,
		UpdatedAt:     d.Save.UpdatedAt,
		HighScoreHint: d.Save.HighScoreHint,
	}, nil
}

// encodeDocument renders d as indented JSON. A document that decodeDocument
// would reject is never produced.
func encodeDocument(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, oops.Code("FILESTORE_ENCODE_FAILED").With("username", d.Profile.Username).Wrap(err)
	}
	if err := ValidateDocument(data); err != nil {
		return nil, oops.Code("FILESTORE_INVALID_RECORD").
			With("username", d.Profile.Username).
			Wrap(errors.Join(auth.ErrValidation, err))
	}
	return append(data, '\n'), nil
}

// decodeDocument validates data against the schema and format constraint
// before unmarshaling. Every rejection wraps auth.ErrCorruptedRecord.
func decodeDocument(data []byte) (*Document, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, oops.Code("FILESTORE_CORRUPTED").
			With("field", "document").
			Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, oops.Code("FILESTORE_CORRUPTED").Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}

	v, err := semver.NewVersion(d.Format)
	if err != nil {
		return nil, oops.Code("FILESTORE_CORRUPTED").
			With("format", d.Format).
			Wrap(errors.Join(auth.ErrCorruptedRecord, err))
	}
	if !formatConstraint.Check(v) {
		return nil, oops.Code("FILESTORE_UNSUPPORTED_FORMAT").
			With("format", d.Format).
			Wrapf(auth.ErrCorruptedRecord, "save file format %s is not supported", d.Format)
	}
	return &d, nil
}
