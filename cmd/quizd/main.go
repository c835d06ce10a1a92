// Command quizd serves the quiz question API and runs its maintenance jobs.
//
// Usage:
//
//	quizd [-config path] <command> [flags]
//
// Commands: serve, migrate, backfill, sync-difficulty, enqueue-information,
// token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/config"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, cfg *config.Config, logger *logrus.Logger, args []string) error
}

var commands = []command{
	{"serve", "run the HTTP API", runServe},
	{"migrate", "create tables and add enrichment columns", runMigrate},
	{"backfill", "copy every question into the document store", runBackfill},
	{"sync-difficulty", "copy question difficulties into the document store", runSyncDifficulty},
	{"enqueue-information", "queue information tasks for questions without it", runEnqueueInformation},
	{"token", "issue an admin token after checking the admin password", runToken},
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Fatal("failed to load .env")
	}

	fs := flag.NewFlagSet("quizd", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: quizd [-config path] <command> [flags]")
		fmt.Fprintln(fs.Output(), "\ncommands:")
		for _, c := range commands {
			fmt.Fprintf(fs.Output(), "  %-20s %s\n", c.name, c.usage)
		}
	}
	_ = fs.Parse(os.Args[1:])

	name := "serve"
	args := fs.Args()
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, logger, args); err != nil {
		logger.WithError(err).WithField("command", cmd.name).Error("command failed")
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return logger, nil
}
