package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdfrotate/internal/config"
	"github.com/local/pdfrotate/internal/limiter"
	logpkg "github.com/local/pdfrotate/internal/logger"
	"github.com/local/pdfrotate/internal/metrics"
	"github.com/local/pdfrotate/internal/ocr"
	"github.com/local/pdfrotate/internal/pdf"
	"github.com/local/pdfrotate/internal/processor"
	"github.com/local/pdfrotate/internal/walker"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to YAML config file")
		apiKey     = flag.String("api-key", "", "orientation service API key")
		secretKey  = flag.String("secret-key", "", "orientation service secret key")
		input      = flag.String("input-folder", "", "input folder with PDFs")
		output     = flag.String("output-folder", "", "output folder (default: sibling 'output' of input)")
		debug      = flag.Bool("debug", false, "enable debug logging and page image dumps")
	)
	flag.Parse()

	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.Apply(cfgpkg.Overrides{
		APIKey:       *apiKey,
		SecretKey:    *secretKey,
		InputFolder:  *input,
		OutputFolder: *output,
		Debug:        *debug,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval.Std(),
	})
	defer logpkg.Close()

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("input", cfg.InputFolder).Str("output", cfg.OutputFolder).Msg("pdfrotate starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One registry, one limiter, one token per run.
	bucket := limiter.New(limiter.Options{Rate: cfg.OCR.RateLimit, Burst: cfg.OCR.Burst})
	registry := ocr.NewRegistry(cfg.OCR.Endpoints, cfg.OCR.MaxFailures)
	client := ocr.NewClient(ocr.ClientOptions{
		BaseURL:        cfg.OCR.ServiceURL,
		APIKey:         cfg.APIKey,
		SecretKey:      cfg.SecretKey,
		RequestTimeout: cfg.OCR.RequestTimeout.Std(),
		Registry:       registry,
		Limiter:        bucket,
	})
	if err := client.Authenticate(ctx); err != nil {
		log.Fatal().Err(err).Msg("credential exchange failed")
	}

	opener := pdf.NewOpener(cfg.Render.DPI, cfg.Render.Quality)
	var debugDir string
	if cfg.Debug {
		debugDir = filepath.Join(cfg.OutputFolder, "debug")
	}
	proc := processor.New(
		processor.OpenerFunc(func(path string) (processor.Document, error) { return opener.Open(path) }),
		client,
		processor.Options{DebugDir: debugDir},
	)

	w := walker.New(proc, walker.Options{
		OnProgress: func(processed, total int) {
			log.Info().Int("processed", processed).Int("total", total).Msg("progress")
		},
	})

	summary, err := w.Run(ctx, cfg.InputFolder, cfg.OutputFolder)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("batch interrupted")
	}

	log.Info().
		Str("run_id", runID).
		Int("total_files", summary.TotalFiles).
		Int("processed_files", summary.ProcessedFiles).
		Int("failed_files", summary.FailedFiles).
		Int("total_pages", summary.TotalPages).
		Int("rotated_pages", summary.RotatedPages).
		Int("failed_pages", summary.FailedPages).
		Msg("run complete")

	if err != nil {
		os.Exit(1)
	}
}
