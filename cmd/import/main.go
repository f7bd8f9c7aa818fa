// Command import runs a single spreadsheet import from the command line.
//
// Usage:
//
//	import -profile pos_sales [-location <uuid>] [-dry-run] file.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/horecametrics/importer/internal/config"
	"github.com/horecametrics/importer/internal/importer"
	"github.com/horecametrics/importer/internal/logging"
	"github.com/horecametrics/importer/internal/sheet"
	"github.com/horecametrics/importer/internal/store"
)

func main() {
	profileName := flag.String("profile", "", "import profile: "+fmt.Sprint(importer.ProfileNames()))
	location := flag.String("location", "", "location UUID to attribute rows to")
	dryRun := flag.Bool("dry-run", false, "analyze only, write nothing")
	flag.Parse()

	if err := run(*profileName, *location, *dryRun, flag.Arg(0)); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(profileName, location string, dryRun bool, path string) error {
	if path == "" {
		return fmt.Errorf("usage: import -profile <name> [-location <uuid>] [-dry-run] <file>")
	}

	profile, err := importer.ProfileByName(profileName)
	if err != nil {
		return fmt.Errorf("%w, valid profiles: %v", err, importer.ProfileNames())
	}

	var entityID uuid.UUID
	if location != "" {
		id, err := uuid.Parse(location)
		if err != nil {
			return fmt.Errorf("invalid location UUID %q: %w", location, err)
		}
		entityID = id
	}

	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	importer.HeaderScanWindow = cfg.Import.HeaderScanRows

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)
	engine := importer.NewEngine(st, st, importer.EngineOptions{
		Resolver:  st.NewLocationResolver(),
		Runs:      st,
		BatchSize: cfg.Import.BatchSize,
	})

	if dryRun {
		rows, err := sheet.ReadFile(path)
		if err != nil {
			return err
		}
		analysis, err := importer.Analyze(rows, profile, engine.Matcher())
		if err != nil {
			return err
		}
		return printJSON(analysis)
	}

	result, err := engine.RunFile(ctx, path, importer.RunRequest{
		Profile:  profile,
		EntityID: entityID,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
