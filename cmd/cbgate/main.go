package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cbgate/internal/config"
	"cbgate/internal/gateway"
	"cbgate/internal/httpapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cbgate",
		Short:         "OpenAI-compatible chat-completion gateway for a continuous-batching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	f := root.Flags()
	f.String("addr", envOr("CBGATE_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	f.String("config", os.Getenv("CBGATE_CONFIG"), "Optional config file (yaml/json/toml)")
	f.String("log-level", envOr("CBGATE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.Int64("max-body-bytes", 0, "Maximum request body size in bytes (0 = default 1MiB)")
	f.String("models", os.Getenv("CBGATE_MODELS"), "Comma-separated model ids advertised on /v1/models")
	return root
}

func run(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	cfgPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	maxBody, _ := cmd.Flags().GetInt64("max-body-bytes")
	modelsCSV, _ := cmd.Flags().GetString("models")

	var cfg config.Config
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	}
	// Flags win over the file; the file wins over built-in defaults.
	if cmd.Flags().Changed("addr") || cfg.Addr == "" {
		cfg.Addr = addr
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("max-body-bytes") {
		cfg.MaxBodyBytes = maxBody
	}
	if modelsCSV != "" {
		cfg.Models = splitCSV(modelsCSV)
	}

	log := newLogger(cfg.LogLevel)

	pipe, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	if pipe == nil {
		log.Warn().Msg("no engine backend linked; completions will return 503")
	}

	gw := gateway.New(gateway.Config{
		Pipeline: pipe,
		ModelIDs: cfg.Models,
		Logger:   log,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(gw)}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("cbgate listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	// Cancel in-flight sessions before shutting the listener down.
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
