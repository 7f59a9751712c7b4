package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/worshipplan/server/internal/config"
	"github.com/worshipplan/server/internal/domain"
	"github.com/worshipplan/server/internal/enrich"
	"github.com/worshipplan/server/internal/importer"
	"github.com/worshipplan/server/internal/memstore"
	"github.com/worshipplan/server/internal/pdfext"
	"github.com/worshipplan/server/internal/postgres"
)

func newImportCmd(cfg *config.Config) *cobra.Command {
	var (
		tenant    string
		dryRun    bool
		useEnrich bool
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import service plans from CSV and PDF export files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Import.Timeout)
			defer cancel()

			files, err := readFiles(args, cfg.Import.MaxFileSize)
			if err != nil {
				return err
			}

			repo, cleanup, err := openRepository(ctx, cfg, dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			pcfg := importer.Config{
				Repo:          repo,
				PDF:           pdfext.New(),
				Logger:        slog.Default(),
				EnrichTimeout: cfg.Enrich.Timeout,
			}
			if useEnrich {
				pcfg.Enricher = enrich.NewClient(cfg.Enrich.BaseURL, cfg.Enrich.Timeout, slog.Default())
			}
			pipeline, err := importer.New(pcfg)
			if err != nil {
				return err
			}

			batch, err := pipeline.Run(ctx, domain.Tenant(tenant), files)
			if err != nil {
				return err
			}

			printSummary(cmd, batch, dryRun, cfg.Import.MaxErrorsShown)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", cfg.Import.Tenant, "tenant to import into")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and resolve against an empty in-memory store; nothing is persisted")
	cmd.Flags().BoolVar(&useEnrich, "enrich", cfg.Enrich.Enabled, "look up metadata for new songs on the chart site")
	return cmd
}

// readFiles loads every named file into memory, rejecting anything over
// the configured size cap before the pipeline sees it.
func readFiles(paths []string, maxSize int64) ([]importer.BatchFile, error) {
	files := make([]importer.BatchFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("%s: file is %d bytes, limit is %d", path, info.Size(), maxSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, importer.BatchFile{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

// openRepository connects to Postgres, or hands back an empty in-memory
// store for dry runs.
func openRepository(ctx context.Context, cfg *config.Config, dryRun bool) (importer.Repository, func(), error) {
	if dryRun {
		return memstore.New(), func() {}, nil
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set; use --dry-run to import without a database")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewRepository(pool), pool.Close, nil
}

func printSummary(cmd *cobra.Command, batch *importer.BatchResult, dryRun bool, maxErrors int) {
	out := cmd.OutOrStdout()

	if dryRun {
		fmt.Fprintln(out, "dry run: nothing was persisted")
	}
	fmt.Fprintf(out, "services created: %d\n", batch.ServicesCreated)
	fmt.Fprintf(out, "songs created:    %d\n", batch.SongsCreated)
	fmt.Fprintf(out, "songs reused:     %d\n", batch.SongsReused)
	fmt.Fprintf(out, "songs linked:     %d\n", batch.LinksCreated)

	for _, res := range batch.Results {
		if res.Outcome == importer.ServiceSkipped {
			fmt.Fprintf(out, "skipped: %s (%s)\n", res.Name, res.File)
		}
	}

	if batch.Report.Len() > 0 {
		fmt.Fprintf(out, "\n%d error(s):\n", batch.Report.Len())
		for _, line := range batch.Report.Render(maxErrors) {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}
