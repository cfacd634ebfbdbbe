// Package main is the entry point for the rpcagent demo binary.
// It wires the connection manager to the default gRPC transport and an OS
// reactor, and drives a simple request/response loop against a fixed
// endpoint list.
//
// Startup sequence:
//  1. Parse CLI flags / environment variables
//  2. Build logger
//  3. Build the connection manager (reactor + gRPC transport)
//  4. Start the manager and block until every endpoint has connected once
//  5. Send a ping on an interval until SIGINT/SIGTERM
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arkeep-io/rpcconn/internal/grpcconn"
	"github.com/arkeep-io/rpcconn/internal/reactor"
	"github.com/arkeep-io/rpcconn/internal/rpcconn"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	endpoints    string
	connTimeout  time.Duration
	pingInterval time.Duration
	logLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "rpcagent",
		Short: "rpcagent — demo client for the rpcconn connection manager",
		Long: `rpcagent maintains persistent connections to a fixed list of RPC
endpoints, reconnecting with exponential backoff on failure, and sends a
ping request on an interval, routed across whichever endpoints are
currently live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.endpoints, "endpoints", envOrDefault("RPCAGENT_ENDPOINTS", "localhost:9090"), "Comma-separated host:port list of RPC endpoints")
	root.PersistentFlags().DurationVar(&cfg.connTimeout, "connect-timeout", envOrDurationDefault("RPCAGENT_CONNECT_TIMEOUT", rpcconn.DefaultConnectionTimeout), "Per-attempt connect timeout; also seeds the backoff schedule")
	root.PersistentFlags().DurationVar(&cfg.pingInterval, "ping-interval", envOrDurationDefault("RPCAGENT_PING_INTERVAL", 10*time.Second), "Interval between demo ping requests")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("RPCAGENT_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rpcagent %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	endpoints, err := parseEndpoints(cfg.endpoints)
	if err != nil {
		return fmt.Errorf("invalid --endpoints: %w", err)
	}

	logger.Info("starting rpcagent",
		zap.String("version", version),
		zap.Int("endpoint_count", len(endpoints)),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := rpcconn.New(rpcconn.Config{
		Endpoints:         endpoints,
		Reactor:           reactor.NewGoReactor(),
		Logger:            logger,
		Factory:           grpcconn.NewFactory(),
		ConnectionTimeout: cfg.connTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build connection manager: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(ctx, cfg.connTimeout*2)
	defer startCancel()
	if err := client.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start connection manager: %w", err)
	}
	defer client.Stop(context.Background())

	logger.Info("connection manager started, all endpoints connected at least once")

	ticker := time.NewTicker(cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("rpcagent stopped")
			return nil
		case <-ticker.C:
			sendPing(ctx, client, logger)
		}
	}
}

func sendPing(ctx context.Context, client *rpcconn.Client, logger *zap.Logger) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := client.SendRequest(reqCtx, []byte("ping"))
	if err != nil {
		logger.Warn("ping failed", zap.Error(err))
		return
	}
	logger.Debug("ping ok", zap.ByteString("response", resp))
}

// parseEndpoints turns "host1:port1,host2:port2" into Endpoints. Duplicate
// host:port pairs are kept — see Endpoint's multiset semantics.
func parseEndpoints(raw string) ([]rpcconn.Endpoint, error) {
	var out []rpcconn.Endpoint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, portStr, err := splitHostPort(part)
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in %q: %w", part, err)
		}
		out = append(out, rpcconn.Endpoint{Host: host, Port: port})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	return out, nil
}

func splitHostPort(s string) (host, port string, err error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", fmt.Errorf("%q is not host:port", s)
	}
	return s[:i], s[i+1:], nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDurationDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
