package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfrotate/internal/metrics"
	"github.com/local/pdfrotate/internal/ocr"
)

// Document abstracts one open PDF for processing.
type Document interface {
	PageCount() int
	RenderPage(i int) ([]byte, error)
	SetRotation(i, angle int) error
	SaveAs(path string) error
	Close() error
}

// Opener abstracts opening a PDF path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) Open(path string) (Document, error) { return f(path) }

// PageOutcome is the result of processing a single page.
type PageOutcome struct {
	PageIndex int
	Rotated   bool
	Err       error
}

// DocumentOutcome is the per-file result folded into the run stats.
// Rotated + Failed never exceeds TotalPages.
type DocumentOutcome struct {
	TotalPages int
	Rotated    int
	Failed     int
}

func (o *DocumentOutcome) addPage(p PageOutcome) {
	if p.Err != nil {
		o.Failed++
		return
	}
	if p.Rotated {
		o.Rotated++
	}
}

// Processor corrects the orientation of a single document at a time.
type Processor struct {
	opener   Opener
	detector ocr.Detector
	debugDir string
}

type Options struct {
	// DebugDir, when set, receives a JPEG dump of every rendered page
	// under a per-document subdirectory.
	DebugDir string
}

func New(opener Opener, detector ocr.Detector, opts Options) *Processor {
	return &Processor{opener: opener, detector: detector, debugDir: opts.DebugDir}
}

// ProcessFile opens inPath, detects and stages a rotation for every page,
// and always saves the document to outPath, even when some pages failed.
// A single page failure never aborts the document; the error return is
// reserved for file-level failures (unopenable input, failed save) and run
// cancellation.
func (p *Processor) ProcessFile(ctx context.Context, inPath, outPath string) (DocumentOutcome, error) {
	doc, err := p.opener.Open(inPath)
	if err != nil {
		return DocumentOutcome{}, fmt.Errorf("open %s: %w", inPath, err)
	}
	defer doc.Close()

	out := DocumentOutcome{TotalPages: doc.PageCount()}
	if out.TotalPages == 0 {
		log.Warn().Str("file", inPath).Msg("document has no pages, copying unchanged")
		if err := doc.SaveAs(outPath); err != nil {
			return out, fmt.Errorf("save %s: %w", outPath, err)
		}
		return out, nil
	}

	log.Info().Str("file", inPath).Int("pages", out.TotalPages).Msg("processing document")

	for i := 0; i < out.TotalPages; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		page := PageOutcome{PageIndex: i}
		angle, confidence, err := p.processPage(ctx, doc, inPath, i)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			page.Err = err
			metrics.PageProcessed("failed")
			log.Error().Err(err).
				Str("file", inPath).
				Int("page", i+1).
				Int("total_pages", out.TotalPages).
				Msg("page failed, continuing with next")
		} else if angle != 0 {
			page.Rotated = true
			metrics.PageProcessed("rotated")
			metrics.RotationApplied(angle)
			log.Info().
				Str("file", inPath).
				Int("page", i+1).
				Int("angle", angle).
				Float64("confidence", confidence).
				Msg("page rotated")
		} else {
			metrics.PageProcessed("unchanged")
			log.Info().
				Str("file", inPath).
				Int("page", i+1).
				Float64("confidence", confidence).
				Msg("page already upright")
		}
		out.addPage(page)
	}

	// The document is saved even with failed pages; successful rotations
	// are never rolled back.
	if err := doc.SaveAs(outPath); err != nil {
		return out, fmt.Errorf("save %s: %w", outPath, err)
	}

	switch {
	case out.Failed == 0:
		metrics.FileProcessed("ok")
	case out.Failed < out.TotalPages:
		metrics.FileProcessed("partial")
	default:
		metrics.FileProcessed("failed")
	}

	log.Info().
		Str("file", outPath).
		Int("pages", out.TotalPages).
		Int("rotated", out.Rotated).
		Int("failed", out.Failed).
		Msg("document saved")

	return out, nil
}

// processPage renders one page and asks the detector for its correction
// angle. A non-zero angle is staged on the document.
func (p *Processor) processPage(ctx context.Context, doc Document, inPath string, i int) (int, float64, error) {
	img, err := doc.RenderPage(i)
	if err != nil {
		return 0, 0, err
	}

	if p.debugDir != "" {
		p.dumpPage(inPath, i, img)
	}

	res, err := p.detector.DetectOrientation(ctx, img)
	if err != nil {
		return 0, 0, err
	}
	if res.Angle != 0 {
		if err := doc.SetRotation(i, res.Angle); err != nil {
			return 0, 0, err
		}
	}
	return res.Angle, res.Confidence, nil
}

func (p *Processor) dumpPage(inPath string, i int, jpeg []byte) {
	name := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	dir := filepath.Join(p.debugDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("debug dump skipped")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("page_%d.jpg", i+1))
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("debug dump skipped")
	}
}
