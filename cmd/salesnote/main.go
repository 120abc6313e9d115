// Command salesnote serves the note-to-order draft API and imports catalogs.
//
// Usage:
//
//	salesnote [serve] [-config config.yaml]
//	salesnote import [-config config.yaml] -org <id> -file catalog.yaml|catalog.xlsx
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/salesnote/internal/app"
	"github.com/MrWong99/salesnote/internal/catalog"
	"github.com/MrWong99/salesnote/internal/config"
	"github.com/MrWong99/salesnote/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	if len(args) > 0 && (args[0] == "serve" || args[0] == "import") {
		cmd, args = args[0], args[1:]
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "salesnote: %v\n", err)
		return 1
	}

	switch cmd {
	case "import":
		return runImport(args)
	default:
		return runServe(args)
	}
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// The level is shared with the config watcher so log_level reloads
	// without a restart.
	level := new(slog.LevelVar)
	var application *app.App

	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if application != nil {
			application.ApplyConfig(old, next, d)
		}
	})
	if err != nil {
		reportConfigError(*configPath, err)
		return 1
	}
	cfg := watcher.Current()

	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	slog.Info("salesnote starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		SampleRatio:    cfg.Server.TraceSampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err = app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	go watcher.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("server ready, press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case err := <-serveErr:
		if err != nil {
			slog.Error("server error", "err", err)
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// runImport loads a YAML or XLSX catalog into the postgres catalog store.
func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	orgID := fs.String("org", "", "organization to import for (defaults to the file's organization)")
	file := fs.String("file", "", "catalog file (.yaml or .xlsx)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "salesnote import: -file is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		reportConfigError(*configPath, err)
		return 1
	}
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(level))

	if cfg.Catalog.Backend != config.CatalogPostgres {
		fmt.Fprintf(os.Stderr, "salesnote import: catalog.backend is %q; import writes to the postgres catalog\n", cfg.Catalog.Backend)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cf, err := catalog.LoadFile(*file)
	if err != nil {
		slog.Error("failed to read catalog", "file", *file, "err", err)
		return 1
	}

	pool, err := pgxpool.New(ctx, cfg.Catalog.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer pool.Close()

	store := catalog.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate catalog schema", "err", err)
		return 1
	}

	vendors, items, err := catalog.Import(ctx, store, *orgID, cf)
	if err != nil {
		slog.Error("import failed", "vendors", vendors, "items", items, "err", err)
		return 1
	}
	slog.Info("catalog imported", "file", *file, "vendors", vendors, "items", items)
	return 0
}

func reportConfigError(path string, err error) {
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "salesnote: config file %q not found, copy configs/example.yaml to get started\n", path)
		return
	}
	fmt.Fprintf(os.Stderr, "salesnote: %v\n", err)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        salesnote: startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	printRow("Transcription", providerLabel(cfg.Providers.Transcription))
	printRow("Catalog", string(cfg.Catalog.Backend))
	printRow("Ledger", string(cfg.Ledger.Backend))
	printRow("Similarity", orDefault(cfg.Matching.Similarity, "levenshtein"))
	if cfg.Server.Debug {
		printRow("Debug output", "on")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
