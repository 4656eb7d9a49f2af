package pdf

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Opener opens PDF files with the configured render settings.
type Opener struct {
	dpi     int
	quality int
}

func NewOpener(dpi, quality int) *Opener {
	if dpi <= 0 {
		dpi = 150
	}
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &Opener{dpi: dpi, quality: quality}
}

// Open checks the file is actually a PDF by magic bytes (a mis-named scan
// export fails here with a clear error instead of deep inside the renderer)
// and loads it for rendering.
func (o *Opener) Open(path string) (*Document, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect file type: %w", err)
	}
	if !mtype.Is("application/pdf") {
		return nil, fmt.Errorf("not a PDF: %s has type %s", path, mtype.String())
	}

	fz, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &Document{
		path:      path,
		fz:        fz,
		dpi:       o.dpi,
		quality:   o.quality,
		rotations: map[int]int{},
	}, nil
}

// Document is one open PDF. Rotations are staged in memory and written as
// page metadata on SaveAs; pixels are never transformed.
type Document struct {
	path      string
	fz        *fitz.Document
	dpi       int
	quality   int
	rotations map[int]int // 0-based page index -> clockwise degrees
}

func (d *Document) PageCount() int { return d.fz.NumPage() }

// RenderPage rasterizes page i (0-based) and returns JPEG bytes.
func (d *Document) RenderPage(i int) ([]byte, error) {
	img, err := d.fz.ImageDPI(i, float64(d.dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", i+1, err)
	}
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", i+1, err)
	}

	log.Debug().
		Int("page", i+1).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", buf.Len()).
		Int("dpi", d.dpi).
		Msg("rendered page")

	return buf.Bytes(), nil
}

// SetRotation stages a clockwise rotation for page i (0-based).
func (d *Document) SetRotation(i, angle int) error {
	angle = ((angle % 360) + 360) % 360
	if angle%90 != 0 {
		return fmt.Errorf("rotation must be a multiple of 90, got %d", angle)
	}
	if angle == 0 {
		delete(d.rotations, i)
		return nil
	}
	d.rotations[i] = angle
	return nil
}

// SaveAs writes the document to outPath: a full copy of the source with the
// staged per-page /Rotate updates applied, grouped by angle.
func (d *Document) SaveAs(outPath string) error {
	if err := copyFile(d.path, outPath); err != nil {
		return fmt.Errorf("copy document: %w", err)
	}
	if len(d.rotations) == 0 {
		return nil
	}

	byAngle := map[int][]int{}
	for page, angle := range d.rotations {
		byAngle[angle] = append(byAngle[angle], page+1) // pdfcpu pages are 1-based
	}
	for angle, pages := range byAngle {
		sort.Ints(pages)
		sel := make([]string, 0, len(pages))
		for _, p := range pages {
			sel = append(sel, strconv.Itoa(p))
		}
		if err := api.RotateFile(outPath, outPath, angle, sel, nil); err != nil {
			return fmt.Errorf("rotate pages %s by %d: %w", strings.Join(sel, ","), angle, err)
		}
		log.Debug().Ints("pages", pages).Int("angle", angle).Msg("applied rotation metadata")
	}
	return nil
}

func (d *Document) Close() error {
	return d.fz.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
