package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/auth"
	"github.com/creastat/quizstore/config"
)

func runMigrate(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	drop := fs.Bool("drop", false, "drop every table and collection first")
	collections := fs.Bool("collections", false, "also create the document store collections")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	type collectionStore interface {
		CreateCollections(ctx context.Context) error
		DropCollections(ctx context.Context) error
	}
	coll, hasCollections := a.docs.(collectionStore)

	if *drop {
		if err := a.store.DropTables(ctx); err != nil {
			return err
		}
		if hasCollections {
			if err := coll.DropCollections(ctx); err != nil {
				return err
			}
		}
		logger.Warn("dropped tables")
	}

	if err := a.store.CreateTables(ctx); err != nil {
		return err
	}
	if err := a.store.Migrate(ctx); err != nil {
		return err
	}
	if *collections && hasCollections {
		if err := coll.CreateCollections(ctx); err != nil {
			return err
		}
	}

	logger.Info("schema up to date")
	return nil
}

func runBackfill(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	pageSize := fs.Int("page-size", 20, "questions copied per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.service.Backfill(ctx, *pageSize)
	logger.WithField("count", n).Info("backfill finished")
	return err
}

func runSyncDifficulty(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.service.SyncDifficulty(ctx)
	logger.WithField("modified", n).Info("difficulty sync finished")
	return err
}

func runEnqueueInformation(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.service.EnqueueMissingInformation(ctx)
	logger.WithField("count", n).Info("information tasks queued")
	return err
}

func runToken(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	password := fs.String("password", os.Getenv("QUIZD_PASSWORD"), "admin password (default $QUIZD_PASSWORD)")
	subject := fs.String("subject", "admin", "token subject")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := auth.CheckPassword(*password, cfg.Auth.AdminPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordDisabled) {
			return fmt.Errorf("%w: set ADMIN_PASSWORD", err)
		}
		return err
	}

	manager, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	token, err := manager.Issue(*subject, auth.RoleAdmin)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
