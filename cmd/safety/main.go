package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/safety-envelope/internal/config"
	"github.com/danielpatrickdp/safety-envelope/internal/logging"
)

// errDrift makes replay exit 1 without printing a usage error.
var errDrift = errors.New("fixture expectations not met")

// #region main

func main() {
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDrift) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "safety",
		Short:         "Run, replay and inspect agents behind a runtime safety envelope",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newReplayCmd(), newInspectCmd(), newServeCmd())
	return root
}

// #endregion main

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig reads path, applies the --db override and builds the logger.
func loadConfig(path, db string) (config.Config, *slog.Logger, error) {
	if path == "" {
		return config.Config{}, nil, fmt.Errorf("no config: pass --config or set SAFETY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if db != "" {
		cfg.Store.Path = db
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// #endregion helpers
