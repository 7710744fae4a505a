package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rbroggi/parcelhub/internal/config"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}

var (
	down       = flag.Bool("down", false, "run migration down")
	steps      = flag.Int("steps", 0, "migrate this many steps (negative goes down) instead of all the way")
	dir        = flag.String("dir", "db/migrations", "directory holding the migration files")
	configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
)

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", cfg.Storage.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	source := "file://" + filepath.ToSlash(abs)
	log.WithField("source", source).Info("using migrations")

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return err
	}

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema already up to date")
		err = nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.WithField("version", version).WithField("dirty", dirty).Info("migration done")
	return nil
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
}
