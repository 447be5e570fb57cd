package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tokenvest/config"
	"tokenvest/platform"
)

const envVar = "TOKENVEST_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if env := strings.TrimSpace(os.Getenv(envVar)); env != "" {
		cfg.Env = env
	}

	p, err := platform.New(cfg)
	if err != nil {
		slog.Error("Failed to assemble platform", slog.Any("error", err))
		os.Exit(1)
	}
	defer p.Close()

	p.Logger.Info("platform started",
		slog.String("storage", storageLabel(cfg)),
		slog.Uint64("feeNumerator", cfg.Fees.Numerator),
		slog.Uint64("feeDenominator", cfg.Fees.Denominator),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	p.Logger.Info("platform shutting down")
}

func storageLabel(cfg config.Config) string {
	if cfg.Storage.Path == "" {
		return "memory"
	}
	return cfg.Storage.Path
}
