package main

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"therabook/backend/internal/config"
	"therabook/backend/internal/store/postgres"
)

// Usage: therabook-migrate [up|down|force <version>]
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("service", "therabook-migrate"))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("open db failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		log.Error("ping db failed", slog.Any("err", err))
		os.Exit(1)
	}

	m, err := postgres.NewMigrator(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		log.Error("create migrator failed", slog.Any("err", err))
		os.Exit(1)
	}

	cmd, args := "up", []string(nil)
	if len(os.Args) >= 2 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	if err := execute(log, m, cmd, args); err != nil {
		os.Exit(1)
	}
}

// migrator is the subset of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// execute runs cmd and always closes m before returning, so callers may
// os.Exit on the result without leaking the migrator's connection.
func execute(log *slog.Logger, m migrator, cmd string, args []string) error {
	defer func() { _, _ = m.Close() }()

	if err := run(m, cmd, args); err != nil {
		log.Error("migration failed", slog.String("cmd", cmd), slog.Any("err", err))
		return err
	}

	attrs := []any{slog.String("cmd", cmd)}
	if version, dirty, err := m.Version(); err == nil {
		attrs = append(attrs, slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	log.Info("migrations complete", attrs...)
	return nil
}

func run(m migrator, cmd string, args []string) error {
	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "force":
		if len(args) < 1 {
			return errors.New("force requires a version")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return m.Force(version)
	default:
		return errors.New("unknown command " + strconv.Quote(cmd) + "; want up, down or force")
	}
}
