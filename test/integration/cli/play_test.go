// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package cli_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("savevault against PostgreSQL", func() {
	var (
		ctx context.Context
		v   *vault
	)

	BeforeEach(func() {
		ctx = context.Background()
		db.reset(ctx)
		v = newVault(ctx)
	})

	Describe("migrate", func() {
		It("creates the vault tables", func() {
			output, err := v.run("", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
			Expect(output).To(ContainSubstring("Migrations completed successfully"))

			output, err = v.run("", "migrate", "status")
			Expect(err).NotTo(HaveOccurred(), "status failed: %s", output)
			Expect(output).To(ContainSubstring("Schema is up to date"))
		})
	})

	Describe("play", func() {
		BeforeEach(func() {
			output, err := v.run("", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
		})

		It("registers, saves, and restores progress", func() {
			output, err := v.run("alice\ny\npw1\npw1\nscore 42\nquit\n", "play")
			Expect(err).NotTo(HaveOccurred(), "play failed: %s", output)
			Expect(output).To(ContainSubstring(`Account "alice" created.`))
			Expect(output).NotTo(ContainSubstring("Playing offline"))

			var hint int64
			var ciphertext []byte
			err = db.pool.QueryRow(ctx,
				"SELECT high_score_hint, ciphertext FROM saves WHERE username = $1", "alice",
			).Scan(&hint, &ciphertext)
			Expect(err).NotTo(HaveOccurred())
			Expect(hint).To(Equal(int64(42)))
			Expect(string(ciphertext)).NotTo(ContainSubstring("alice"))
			Expect(db.count(ctx, "profiles")).To(Equal(1))

			output, err = v.run("alice\npw1\nstats\nquit\n", "play")
			Expect(err).NotTo(HaveOccurred(), "login failed: %s", output)
			Expect(output).To(ContainSubstring("Best score: 42"))
		})

		It("locks out after three wrong passwords", func() {
			output, err := v.run("alice\ny\npw1\npw1\nquit\n", "play")
			Expect(err).NotTo(HaveOccurred(), "play failed: %s", output)

			output, err = v.run("alice\nwrong\nwrong\nwrong\n", "play")
			Expect(err).To(HaveOccurred())
			Expect(output).To(ContainSubstring("Too many failed attempts."))
			Expect(output).To(ContainSubstring("AUTH_LOCKED_OUT"))
		})

		It("ranks the leaderboard by score", func() {
			for _, game := range []string{"ann\ny\npw\npw\nscore 50\nquit\n", "ben\ny\npw\npw\nscore 90\nquit\n"} {
				output, err := v.run(game, "play")
				Expect(err).NotTo(HaveOccurred(), "play failed: %s", output)
			}

			output, err := v.run("", "leaderboard", "--limit", "1")
			Expect(err).NotTo(HaveOccurred(), "leaderboard failed: %s", output)
			Expect(output).To(MatchRegexp(`1\s+ben\s+90`))
			Expect(output).NotTo(ContainSubstring("ann"))
		})
	})

	Describe("Error handling", func() {
		It("keeps the name free when a registration cannot be stored", func() {
			output, err := v.run("", "migrate", "up")
			Expect(err).NotTo(HaveOccurred(), "migrate failed: %s", output)
			_, err = db.pool.Exec(ctx, "DROP TABLE saves CASCADE")
			Expect(err).NotTo(HaveOccurred())

			output, err = v.run("alice\ny\npw1\npw1\nquit\n", "play")
			Expect(err).To(HaveOccurred())
			Expect(output).NotTo(ContainSubstring(`Account "alice" created.`))
			Expect(db.count(ctx, "profiles")).To(Equal(0))
		})

		It("hints at migrations when the schema is missing", func() {
			output, err := v.run("alice\n", "play")
			Expect(err).To(HaveOccurred())
			Expect(output).To(ContainSubstring("savevault migrate up"))
		})
	})
})
