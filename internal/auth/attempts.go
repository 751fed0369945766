// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// MaxAttempts is the number of password prompts one login gets.
const MaxAttempts = 3

// AttemptBudget counts wrong passwords within a single login.
type AttemptBudget struct {
	max    int
	failed int
}

// NewAttemptBudget returns a budget of max attempts. Values below 1 use MaxAttempts.
func NewAttemptBudget(maxAttempts int) *AttemptBudget {
	if maxAttempts < 1 {
		maxAttempts = MaxAttempts
	}
	return &AttemptBudget{max: maxAttempts}
}

// RecordFailure consumes one attempt.
func (b *AttemptBudget) RecordFailure() {
	if b.failed < b.max {
		b.failed++
	}
}

// Remaining returns how many attempts are left.
func (b *AttemptBudget) Remaining() int {
	return b.max - b.failed
}

// Exhausted reports whether no attempts remain.
func (b *AttemptBudget) Exhausted() bool {
	return b.failed >= b.max
}
