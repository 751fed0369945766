// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/auth/postgres"
	"github.com/holomush/savevault/internal/vaultcrypto"
)

func newProfile(username string) *auth.Profile {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.Profile{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: []byte("hash-" + username),
		Salt:         []byte("salt-" + username),
		KDF:          vaultcrypto.DefaultParams(),
		CreatedAt:    now,
		LastPlayed:   now,
	}
}

func newSave(username string, hint int64, at time.Time) *auth.EncryptedSave {
	return &auth.EncryptedSave{
		Username:      username,
		Ciphertext:    []byte("ct-" + username),
		Nonce:         []byte("nonce-12byte"),
		Tag:           []byte("tag-sixteen-byte"),
		Salt:          []byte("salt-" + username),
		UpdatedAt:     at.UTC().Truncate(time.Microsecond),
		HighScoreHint: hint,
	}
}

var _ = Describe("Backend", func() {
	var (
		ctx     context.Context
		backend *postgres.Backend
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		backend, err = postgres.Open(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		DeferCleanup(func() {
			Expect(truncate(ctx, dsn)).To(Succeed())
			Expect(backend.Close()).To(Succeed())
		})
	})

	Describe("profiles", func() {
		It("round-trips a profile", func() {
			p := newProfile("alice")
			Expect(backend.CreateProfile(ctx, p)).To(Succeed())

			got, err := backend.FindProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(p.ID))
			Expect(got.PasswordHash).To(Equal(p.PasswordHash))
			Expect(got.KDF).To(Equal(p.KDF))
			Expect(got.CreatedAt.Equal(p.CreatedAt)).To(BeTrue())
		})

		It("is case-sensitive", func() {
			Expect(backend.CreateProfile(ctx, newProfile("alice"))).To(Succeed())
			_, err := backend.FindProfile(ctx, "Alice")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rejects a duplicate username", func() {
			Expect(backend.CreateProfile(ctx, newProfile("alice"))).To(Succeed())
			err := backend.CreateProfile(ctx, newProfile("alice"))
			Expect(errors.Is(err, auth.ErrDuplicateUsername)).To(BeTrue())
		})

		It("lets exactly one concurrent creator win", func() {
			const racers = 8
			var wg sync.WaitGroup
			errs := make([]error, racers)
			for i := range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					errs[i] = backend.CreateProfile(ctx, newProfile("alice"))
				}()
			}
			wg.Wait()

			var ok int
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				Expect(errors.Is(err, auth.ErrDuplicateUsername)).To(BeTrue())
			}
			Expect(ok).To(Equal(1))
		})

		It("updates mutable fields", func() {
			p := newProfile("alice")
			Expect(backend.CreateProfile(ctx, p)).To(Succeed())

			p.LastPlayed = p.LastPlayed.Add(time.Hour)
			p.TotalSessions = 5
			Expect(backend.UpdateProfile(ctx, p)).To(Succeed())

			got, err := backend.FindProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalSessions).To(Equal(5))
			Expect(got.LastPlayed.Equal(p.LastPlayed)).To(BeTrue())
		})

		It("reports a negative session count as a validation failure", func() {
			p := newProfile("alice")
			Expect(backend.CreateProfile(ctx, p)).To(Succeed())

			p.TotalSessions = -1
			err := backend.UpdateProfile(ctx, p)
			Expect(errors.Is(err, auth.ErrValidation)).To(BeTrue())
			Expect(errors.Is(err, auth.ErrInvalidUsername)).To(BeFalse())
		})
	})

	Describe("CreateAccount", func() {
		It("stores the profile and its first save together", func() {
			Expect(backend.CreateAccount(ctx, newProfile("alice"), newSave("alice", 0, time.Now()))).To(Succeed())

			_, err := backend.FindProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			_, err = backend.GetSave(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
		})

		It("leaves nothing behind when the save cannot be stored", func() {
			bad := newSave("alice", 0, time.Now())
			bad.Ciphertext = nil
			err := backend.CreateAccount(ctx, newProfile("alice"), bad)
			Expect(err).To(HaveOccurred())

			n, err := backend.CountProfiles(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("rejects a taken name", func() {
			Expect(backend.CreateAccount(ctx, newProfile("alice"), newSave("alice", 0, time.Now()))).To(Succeed())
			err := backend.CreateAccount(ctx, newProfile("alice"), newSave("alice", 0, time.Now()))
			Expect(errors.Is(err, auth.ErrDuplicateUsername)).To(BeTrue())
		})
	})

	Describe("saves", func() {
		It("replaces the envelope on put", func() {
			Expect(backend.CreateProfile(ctx, newProfile("alice"))).To(Succeed())
			Expect(backend.PutSave(ctx, newSave("alice", 10, time.Now()))).To(Succeed())
			Expect(backend.PutSave(ctx, newSave("alice", 20, time.Now()))).To(Succeed())

			got, err := backend.GetSave(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.HighScoreHint).To(Equal(int64(20)))
		})

		It("refuses a save for an unknown account", func() {
			err := backend.PutSave(ctx, newSave("ghost", 1, time.Now()))
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("deletes the save with the account", func() {
			Expect(backend.CreateProfile(ctx, newProfile("alice"))).To(Succeed())
			Expect(backend.PutSave(ctx, newSave("alice", 10, time.Now()))).To(Succeed())
			Expect(backend.DeleteAccount(ctx, "alice")).To(Succeed())

			_, err := backend.GetSave(ctx, "alice")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			n, err := backend.CountProfiles(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("TopScores", func() {
		It("orders by score then recency", func() {
			base := time.Now().Add(-time.Hour)
			for i, score := range []int64{50, 90, 90, 10} {
				name := []string{"ann", "ben", "cat", "dan"}[i]
				Expect(backend.CreateProfile(ctx, newProfile(name))).To(Succeed())
				Expect(backend.PutSave(ctx, newSave(name, score, base.Add(time.Duration(i)*time.Minute)))).To(Succeed())
			}

			rows, err := backend.TopScores(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(rows))
			for _, r := range rows {
				names = append(names, r.Username)
			}
			Expect(names).To(Equal([]string{"cat", "ben", "ann"}))
		})
	})
})

func truncate(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, `TRUNCATE profiles CASCADE`)
	return err
}
