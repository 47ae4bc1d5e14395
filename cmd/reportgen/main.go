// Command reportgen generates a single report from the command line,
// without starting the HTTP server. The artifact is stored in the database
// and written to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"emspulse/internal/config"
	"emspulse/internal/infrastructure"
	"emspulse/internal/report"
	"emspulse/internal/services"
	"emspulse/internal/store"
	"emspulse/internal/timeseries"
	"emspulse/pkg/contracts/domain"
)

func main() {
	var (
		templateID = flag.Int64("template", 0, "report template id (required)")
		fromArg    = flag.String("from", "", "window start, unix epoch milliseconds (required)")
		toArg      = flag.String("to", "", "window end, unix epoch milliseconds (required)")
		by         = flag.String("by", "", "operator recorded as the generator (defaults to config)")
		outDir     = flag.String("out", ".", "directory the PDF is written to")
	)
	flag.Parse()

	if err := run(*templateID, *fromArg, *toArg, *by, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "reportgen: %v\n", err)
		os.Exit(1)
	}
}

func run(templateID int64, fromArg, toArg, by, outDir string) error {
	if templateID == 0 || fromArg == "" || toArg == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg.Logging.Output = "stdout"

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	from, err := timeseries.ParseMillis(fromArg)
	if err != nil {
		return err
	}
	to, err := timeseries.ParseMillis(toArg)
	if err != nil {
		return err
	}
	if by == "" {
		by = cfg.Report.GeneratedBy
	}

	st, err := store.Open(store.Options{
		Path:         cfg.Database.Path,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Migrate:      cfg.Database.MigrateOnStart,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("store close failed", slog.String("error", cerr.Error()))
		}
	}()

	renderer := report.NewRenderer(report.Layout{
		RowsPerPage: cfg.Report.RowsPerPage,
		Heading:     cfg.Report.Heading,
		Address:     cfg.Report.Address,
	}, logger)

	svc := services.NewReportService(st, renderer, nil, timeseries.MergeOptions{
		GridMinutes: cfg.Report.GridMinutes,
		DenseGrid:   cfg.Report.DenseGrid,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := svc.Generate(ctx, services.GenerateRequest{
		TemplateID:  templateID,
		Window:      domain.Window{Start: from, End: to},
		RequestedBy: by,
	})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	outPath := filepath.Join(outDir, result.Artifact.Filename)
	if err := os.WriteFile(outPath, result.Artifact.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("report %d written to %s (%d bytes)\n", result.ReportID, outPath, len(result.Artifact.Bytes))
	return nil
}
