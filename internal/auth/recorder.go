// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Outcome labels passed to a Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeLockedOut = "locked_out"
	OutcomeCorrupted = "corrupted"
	OutcomeNameTaken = "name_taken"
	OutcomeAbandoned = "abandoned"
)

// Recorder receives authority events for metrics.
type Recorder interface {
	RecordLogin(outcome string)
	RecordRegistration(outcome string)
	RecordSave(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)        {}
func (nopRecorder) RecordRegistration(string) {}
func (nopRecorder) RecordSave(string)         {}
