package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/config"
	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/executor/docker"
	sqliteRepo "github.com/sakif/snippet-api/internal/repository/sqlite"
	"github.com/sakif/snippet-api/internal/serializer"
	"github.com/sakif/snippet-api/internal/server"
	"github.com/sakif/snippet-api/internal/service"
)

// newApp creates the CLI application. serve is the default action, so a bare
// `snippet-api` starts the server.
func newApp() *cli.App {
	return &cli.App{
		Name:    "snippet-api",
		Usage:   "Code snippet REST API",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"SNIPPETS_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: serve,
			},
			{
				Name:  "createuser",
				Usage: "create a username/password account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, EnvVars: []string{"SNIPPETS_CREATEUSER_PASSWORD"}},
				},
				Action: createUser,
			},
		},
	}
}

// setup loads config, builds the logger and opens the database. The caller
// closes the database.
func setup(c *cli.Context) (*config.Config, *slog.Logger, *sqliteRepo.DB, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	logger := newLogger(cfg.Log, c.App.ErrWriter)

	if cfg.Database.Path != ":memory:" {
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		dir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, logger, db, nil
}

// newLogger builds the process logger from the log section. Logs go to
// stderr so stdout stays free for command output.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func serve(c *cli.Context) error {
	cfg, logger, db, err := setup(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Auth.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.Auth.JWTSecret = secret
		logger.Warn("auth.jwt_secret not set; using a random secret, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The sandbox is optional: without Docker the server still starts and
	// /snippets/{id}/run answers 503.
	var exec executor.Executor = executor.Disabled{}
	if cfg.Executor.Enabled {
		pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		dockerExec, err := docker.New(pullCtx, docker.FromConfig(cfg.Executor), logger)
		cancel()
		if err != nil {
			logger.Warn("docker executor unavailable; snippet runs are disabled", slog.String("error", err.Error()))
		} else {
			defer dockerExec.Close()
			exec = dockerExec
		}
	}

	srv, err := server.New(cfg, server.Deps{DB: db, Executor: exec}, logger)
	if err != nil {
		return err
	}

	// Run blocks until Ctrl+C or SIGTERM.
	return srv.Run(ctx)
}

func createUser(c *cli.Context) error {
	cfg, logger, db, err := setup(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fields, err := serializer.FieldsOf(map[string]any{
		"username": c.String("username"),
		"password": c.String("password"),
	})
	if err != nil {
		return err
	}

	// Tokens are never issued here, but AuthService needs a signer.
	secret, err := randomSecret()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	users := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(cfg.Auth.PasswordCost), logger)
	user, err := users.Register(c.Context, fields)
	if err != nil {
		return fmt.Errorf("createuser: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "created user %s (id %s)\n", user.Username, user.ID)
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
