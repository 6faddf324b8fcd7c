package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hexpg/pgwire"
	"github.com/hexpg/pgwire/auth"
	"github.com/hexpg/pgwire/codes"
	"github.com/hexpg/pgwire/config"
	"github.com/hexpg/pgwire/emulator"
	"github.com/hexpg/pgwire/encoder"
	pgerrors "github.com/hexpg/pgwire/errors"
	"github.com/hexpg/pgwire/message"
	"github.com/hexpg/pgwire/metrics"
)

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a createAdvancedServer-style honeypot/emulator listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pgwire.yaml", "path to the YAML config file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(debugLevel())
	collector := metrics.New()
	admin := startAdmin(cfg.Admin.Address, collector, logger)
	defer admin.Close()

	strategy, err := authStrategy(cfg.Auth.Strategy)
	if err != nil {
		return err
	}

	catalog := defaultCatalog()

	srv, err := pgwire.NewServer(emulatorHandler(catalog, collector, logger), pgwire.WithLogger(logger), pgwire.WithAuthStrategy(strategy))
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(configPath, func(reloaded *config.Config) {
		logger.Info("pgwire: config reloaded", slog.String("auth_strategy", reloaded.Auth.Strategy))
	})
	if err == nil {
		defer watcher.Stop()
	} else {
		logger.Warn("pgwire: config hot-reload disabled", slog.Any("err", err))
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		_ = srv.Close()
	}()

	logger.Info("pgwire: starting emulator server", slog.String("addr", cfg.Listen.Address))
	return srv.ListenAndServe(cfg.Listen.Address)
}

func authStrategy(name string) (auth.Strategy, error) {
	switch name {
	case "", "trust":
		return auth.Trust(), nil
	case "cleartext":
		return auth.ClearTextPassword(func(ctx context.Context, username, password string) (bool, error) {
			return true, nil // real deployments supply a validate callback here
		}), nil
	case "md5":
		return auth.MD5Password(func(ctx context.Context, username string) (string, error) {
			return "", fmt.Errorf("pgwire: no credential store configured for md5 auth")
		}), nil
	case "scram-sha-256":
		return auth.SCRAMServer(func(ctx context.Context, username string) (string, error) {
			return "", fmt.Errorf("pgwire: no credential store configured for scram auth")
		}), nil
	default:
		return nil, fmt.Errorf("pgwire: unknown auth strategy %q", name)
	}
}

// defaultCatalog answers the handful of introspection queries most clients
// issue on connect.
func defaultCatalog() *emulator.Catalog {
	catalog := emulator.NewCatalog()
	catalog.Register("SELECT version()", emulator.Entry{
		Columns: emulator.Columns{{Name: "version", Oid: 25}},
		Rows:    [][]*string{{emulator.NewText("PostgreSQL 15.0 (pgwire emulator)")}},
	})
	return catalog
}

// emulatorHandler answers catalog-registered queries and reports
// everything else as an undefined-table error, suitable for a honeypot
// that only needs to look convincing for a handful of startup queries.
// The "session" UUID in its debug log lines is generated once per handler,
// so every connection served by the same handler logs the same value.
func emulatorHandler(catalog *emulator.Catalog, collector *metrics.Collector, logger *slog.Logger) pgwire.Handler {
	sessionID := uuid.NewString()

	return func(ctx context.Context, cmd message.Command, raw []byte, writer *encoder.ResponseEncoder) error {
		collector.CommandsDecoded.WithLabelValues(cmd.Code().String()).Inc()

		query, ok := cmd.(message.Query)
		if !ok {
			return writer.ReadyForQuery('I')
		}

		logger.Debug("pgwire: emulator received query", slog.String("session", sessionID), slog.String("query", query.Query))

		entry, found := catalog.Lookup(query.Query)
		if !found {
			err := fmt.Errorf("relation does not exist")
			err = pgerrors.WithCode(err, codes.UndefinedTable)
			err = pgerrors.WithSeverity(err, pgerrors.LevelError)
			if err := writer.Error(err); err != nil {
				return err
			}
			return writer.ReadyForQuery('I')
		}

		if err := catalog.Respond(writer, entry, fmt.Sprintf("SELECT %d", len(entry.Rows))); err != nil {
			return err
		}
		return writer.ReadyForQuery('I')
	}
}
