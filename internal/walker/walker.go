package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfrotate/internal/processor"
	"github.com/local/pdfrotate/internal/stats"
)

// FileProcessor processes one document from inPath into outPath.
type FileProcessor interface {
	ProcessFile(ctx context.Context, inPath, outPath string) (processor.DocumentOutcome, error)
}

// ProgressFunc is invoked after each file completes with the number of
// files processed so far and the total discovered.
type ProgressFunc func(processed, total int)

// Walker discovers input files, mirrors the directory structure into the
// output root, and drives the file processor over the batch.
type Walker struct {
	proc       FileProcessor
	suffix     string
	onProgress ProgressFunc
}

type Options struct {
	Suffix     string // case-insensitive filename suffix, default ".pdf"
	OnProgress ProgressFunc
}

func New(proc FileProcessor, opts Options) *Walker {
	if opts.Suffix == "" {
		opts.Suffix = ".pdf"
	}
	return &Walker{proc: proc, suffix: strings.ToLower(opts.Suffix), onProgress: opts.OnProgress}
}

// Run walks inputRoot, processes every matching file into the mirrored
// location under outputRoot, and returns the final run statistics. A failure
// in one file never stops the walk; only run cancellation does.
func (w *Walker) Run(ctx context.Context, inputRoot, outputRoot string) (stats.RunStats, error) {
	files, err := w.discover(inputRoot)
	if err != nil {
		return stats.RunStats{}, fmt.Errorf("scan input folder: %w", err)
	}

	agg := stats.NewAggregator(len(files))
	log.Info().Int("files", len(files)).Str("input", inputRoot).Str("output", outputRoot).Msg("starting batch")

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return agg.Summary(), err
		}

		inPath := filepath.Join(inputRoot, rel)
		outPath := filepath.Join(outputRoot, rel)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			log.Error().Err(err).Str("file", inPath).Msg("cannot create output directory, skipping file")
			agg.AddFailedFile()
			w.reportProgress(agg)
			continue
		}

		log.Info().Str("file", inPath).Msg("processing file")
		outcome, err := w.proc.ProcessFile(ctx, inPath, outPath)
		if err != nil {
			if ctx.Err() != nil {
				return agg.Summary(), ctx.Err()
			}
			log.Error().Err(err).Str("file", inPath).Msg("file failed, continuing with next")
			agg.AddFailedFile()
			w.reportProgress(agg)
			continue
		}

		agg.AddFileResult(outcome.TotalPages, outcome.Rotated, outcome.Failed)
		w.reportProgress(agg)
	}

	return agg.Summary(), nil
}

func (w *Walker) reportProgress(agg *stats.Aggregator) {
	if w.onProgress == nil {
		return
	}
	s := agg.Summary()
	w.onProgress(s.ProcessedFiles, s.TotalFiles)
}

// discover returns the input-root-relative paths of all matching files, in
// walk order.
func (w *Walker) discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), w.suffix) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
