package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/NicolasHaas/sosmeet/pkg/logging"
	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/server"
	"github.com/NicolasHaas/sosmeet/pkg/store"
	"github.com/NicolasHaas/sosmeet/pkg/version"
)

func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: "+logging.LevelNames())
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flag.StringVar(&cfg.AlarmCatalog, "catalog", cfg.AlarmCatalog, "YAML file with the alarm codes seeded into new groups")
	flag.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "Store backend: memory or sqlite")
	exportCatalog := flag.Bool("export-catalog", false, "Print the effective alarm catalog as YAML and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *exportCatalog {
		if err := printCatalog(cfg); err != nil {
			slog.Error("export catalog", "err", err)
			os.Exit(1)
		}
		return
	}

	st, err := openStore(cfg.StoreBackend)
	if err != nil {
		slog.Error("open store", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, server.Dependencies{Store: st})
	if err != nil {
		_ = st.Close()
		slog.Error("configure server", "err", err)
		os.Exit(1)
	}
	if err := srv.Run(context.Background()); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func openStore(backend string) (store.DataStore, error) {
	switch strings.ToLower(backend) {
	case server.BackendSQLite:
		st, err := store.NewSQL()
		if err != nil {
			return nil, err
		}
		return st, nil
	case server.BackendMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func printCatalog(cfg server.Config) error {
	specs := model.DefaultAlarmCodes()
	if cfg.AlarmCatalog != "" {
		loaded, err := server.LoadCatalogFromYAML(cfg.AlarmCatalog, server.NewAlarmValidator(cfg.AlarmPolicy, cfg.SoundKeys))
		if err != nil {
			return err
		}
		specs = loaded
	}
	data, err := server.ExportCatalogYAML(specs)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
