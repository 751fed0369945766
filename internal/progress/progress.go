// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package progress defines the game-progress payload stored inside a save
// envelope and its canonical byte encoding.
package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/samber/oops"
)

// codecVersion is written into every encoded payload.
const codecVersion = 1

// ErrInvalid is returned for payloads that cannot be stored.
var ErrInvalid = errors.New("invalid progress payload")

// Progress is the plaintext content of a save.
type Progress struct {
	Name          string
	HighScore     int64
	LastPlayed    time.Time
	TotalSessions int
}

// New returns the payload written when an account is registered.
func New(name string, now time.Time) Progress {
	return Progress{
		Name:       name,
		LastPlayed: now.UTC(),
	}
}

// RecordGame folds one finished game into the payload: the best score is
// kept, the session counter advances and LastPlayed is stamped.
func (p *Progress) RecordGame(score int64, now time.Time) {
	if score > p.HighScore {
		p.HighScore = score
	}
	p.TotalSessions++
	p.LastPlayed = now.UTC()
}

// Validate reports whether p can be encoded and decoded back unchanged.
func (p Progress) Validate() error {
	if p.TotalSessions < 0 {
		return oops.Code("PROGRESS_INVALID").
			With("total_sessions", p.TotalSessions).
			Wrapf(ErrInvalid, "negative session count")
	}
	return nil
}

// wirePayload is the JSON shape. Field names are part of the stored format.
type wirePayload struct {
	Version       int       `json:"v"`
	Name          string    `json:"name"`
	HighScore     int64     `json:"highScore"`
	LastPlayed    time.Time `json:"lastPlayed"`
	TotalSessions int       `json:"totalSessions"`
}

// Encode serializes p. Encoding the same value twice need not produce the
// same bytes; Decode(Encode(p)) always yields p.
func Encode(p Progress) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(wirePayload{
		Version:       codecVersion,
		Name:          p.Name,
		HighScore:     p.HighScore,
		LastPlayed:    p.LastPlayed.UTC(),
		TotalSessions: p.TotalSessions,
	})
	if err != nil {
		return nil, oops.Code("PROGRESS_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (Progress, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wirePayload
	if err := dec.Decode(&w); err != nil {
		return Progress{}, oops.Code("PROGRESS_DECODE_FAILED").Wrap(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Progress{}, oops.Code("PROGRESS_DECODE_FAILED").Errorf("trailing data after payload")
	}
	if w.Version != codecVersion {
		return Progress{}, oops.Code("PROGRESS_UNSUPPORTED_VERSION").
			With("version", w.Version).
			Errorf("unsupported payload version %d", w.Version)
	}
	p := Progress{
		Name:          w.Name,
		HighScore:     w.HighScore,
		LastPlayed:    w.LastPlayed.UTC(),
		TotalSessions: w.TotalSessions,
	}
	if err := p.Validate(); err != nil {
		return Progress{}, oops.Code("PROGRESS_DECODE_FAILED").Wrap(err)
	}
	return p, nil
}
