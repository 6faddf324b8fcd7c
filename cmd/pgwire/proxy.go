package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hexpg/pgwire/config"
	"github.com/hexpg/pgwire/metrics"
	"github.com/hexpg/pgwire/proxy"
)

func newProxyCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run a query-intercepting proxy in front of an upstream Postgres server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pgwire.yaml", "path to the YAML config file")
	return cmd
}

func runProxy(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Proxy.Upstream == "" {
		return fmt.Errorf("pgwire: proxy.upstream must be set in %s", configPath)
	}

	logger := newLogger(debugLevel())
	collector := metrics.New()
	admin := startAdmin(cfg.Admin.Address, collector, logger)
	defer admin.Close()

	dial := dialer(cfg.Proxy)
	policy := queryPolicy(cfg.Proxy, collector)

	orchestrator := proxy.NewOrchestrator(dial, policy, logger)
	orchestrator.Tracker = proxy.NewStatementTracker()

	watcher, err := config.NewWatcher(configPath, func(reloaded *config.Config) {
		logger.Info("pgwire: proxy config reloaded", slog.String("upstream", reloaded.Proxy.Upstream))
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
		_ = orchestrator.Close()
	}()

	logger.Info("pgwire: starting proxy",
		slog.String("addr", cfg.Listen.Address),
		slog.String("upstream", cfg.Proxy.Upstream))
	return orchestrator.ListenAndServe(cfg.Listen.Address)
}

func dialer(cfg config.ProxyConfig) proxy.Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: cfg.DialTimeout}
		return d.DialContext(ctx, "tcp", cfg.Upstream)
	}
}

// queryPolicy builds an interceptor from the config file's rewrite_sql and
// reject_sql maps: an exact-match query in reject_sql is refused with its
// configured message, an exact-match in rewrite_sql is replaced verbatim,
// and anything else passes through unchanged.
func queryPolicy(cfg config.ProxyConfig, collector *metrics.Collector) proxy.QueryPolicy {
	return func(ctx context.Context, query string) (string, error) {
		if reason, blocked := cfg.RejectSQL[query]; blocked {
			collector.QueriesRejected.Inc()
			return "", fmt.Errorf("query rejected: %s", reason)
		}
		if rewritten, ok := cfg.RewriteSQL[query]; ok {
			return rewritten, nil
		}
		return query, nil
	}
}
