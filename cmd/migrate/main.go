package main

import (
	"context"
	"flag"

	"clearing/internal/config"
	"clearing/internal/db"
	"clearing/internal/logging"

	"github.com/sirupsen/logrus"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding *.sql migrations")
	down := flag.Bool("down", false, "roll back the most recently applied migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppEnv)
	database, err := db.Connect(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	ctx := logging.WithEntry(context.Background(), logrus.NewEntry(logger))
	if *down {
		filename, err := db.Rollback(ctx, database, *dir)
		if err != nil {
			logger.WithError(err).Fatal("rollback failed")
		}
		logger.WithField("file", filename).Info("migration rolled back")
		return
	}
	applied, err := db.Migrate(ctx, database, *dir)
	if err != nil {
		logger.WithError(err).WithField("applied", applied).Fatal("migration failed")
	}
	logger.WithField("count", len(applied)).Info("migrations up to date")
}
