// Command kashkd runs kashk as a long-lived HTTP server, wiring
// internal/httpapi to one engine instance.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/rezkam/kashk"
	"github.com/rezkam/kashk/internal/config"
	"github.com/rezkam/kashk/internal/httpapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("kashkd: fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "kashk.yml", "path to the YAML config file")
	dataPath := flag.String("data", "", "override the data file path from config")
	addr := flag.String("addr", "", "override the listen address from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("kashkd: %w", err)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	e, err := kashk.LoadWithThreshold(cfg.DataPath, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("kashkd: open engine at %s: %w", cfg.DataPath, err)
	}
	defer e.Close()

	slog.Info("kashkd: listening", "addr", cfg.Addr, "data_path", cfg.DataPath)
	return http.ListenAndServe(cfg.Addr, httpapi.Handler(e))
}
