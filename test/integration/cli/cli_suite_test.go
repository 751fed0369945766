// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/onsi/gomega/gexec"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Cheap KDF so each registration stays well under a second.
const fastKDF = "kdf:\n  time: 1\n  memory_kib: 64\n  threads: 1\n"

func TestCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "savevault CLI Suite")
}

// vaultDB is the PostgreSQL instance shared by every spec, plus the
// compiled CLI under test.
type vaultDB struct {
	container testcontainers.Container
	pool      *pgxpool.Pool
	url       string
	binary    string
}

var db *vaultDB

var _ = SynchronizedBeforeSuite(func() []byte {
	binary, err := gexec.Build("github.com/holomush/savevault/cmd/savevault")
	Expect(err).NotTo(HaveOccurred())
	return []byte(binary)
}, func(binary []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	db, err = startVaultDB(ctx)
	Expect(err).NotTo(HaveOccurred())
	db.binary = string(binary)
})

var _ = SynchronizedAfterSuite(func() {
	if db != nil {
		db.stop()
	}
}, gexec.CleanupBuildArtifacts)

func startVaultDB(ctx context.Context) (*vaultDB, error) {
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("savevault_test"),
		postgres.WithUsername("savevault"),
		postgres.WithPassword("savevault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	d := &vaultDB{container: container}
	if d.url, err = container.ConnectionString(ctx, "sslmode=disable"); err != nil {
		d.stop()
		return nil, err
	}
	if d.pool, err = pgxpool.New(ctx, d.url); err != nil {
		d.stop()
		return nil, err
	}
	return d, nil
}

func (d *vaultDB) stop() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.container != nil {
		_ = d.container.Terminate(context.Background())
	}
}

// reset drops the vault schema so each spec migrates from scratch.
func (d *vaultDB) reset(ctx context.Context) {
	for _, table := range []string{"saves", "profiles", "schema_migrations"} {
		_, err := d.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		Expect(err).NotTo(HaveOccurred())
	}
}

// count returns the number of rows in table.
func (d *vaultDB) count(ctx context.Context, table string) int {
	var n int
	Expect(d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)).To(Succeed())
	return n
}

// vault is one spec's CLI invocation context: a fresh config file and
// saves directory, pinned to the remote backend.
type vault struct {
	ctx    context.Context
	config string
}

func newVault(ctx context.Context) *vault {
	dir := GinkgoT().TempDir()
	config := filepath.Join(dir, "config.yaml")
	body := "saves_dir: " + filepath.Join(dir, "saves") + "\n" + fastKDF
	Expect(os.WriteFile(config, []byte(body), 0o600)).To(Succeed())
	return &vault{ctx: ctx, config: config}
}

// run feeds stdin to the CLI and returns its combined output.
func (v *vault) run(stdin string, args ...string) (string, error) {
	base := []string{"--config", v.config, "--backend", "remote", "--log-level", "error"}
	cmd := exec.CommandContext(v.ctx, db.binary, append(base, args...)...)
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+db.url)
	cmd.Stdin = strings.NewReader(stdin)
	output, err := cmd.CombinedOutput()
	return string(output), err
}
