package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfrotate/internal/processor"
)

// fakeProc records calls and returns scripted outcomes keyed by base name.
type fakeProc struct {
	mu       sync.Mutex
	outcomes map[string]processor.DocumentOutcome
	fails    map[string]error
	calls    []string
	outPaths []string
}

func newFakeProc() *fakeProc {
	return &fakeProc{
		outcomes: map[string]processor.DocumentOutcome{},
		fails:    map[string]error{},
	}
}

func (f *fakeProc) ProcessFile(ctx context.Context, inPath, outPath string) (processor.DocumentOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(inPath)
	f.calls = append(f.calls, name)
	f.outPaths = append(f.outPaths, outPath)
	if err := f.fails[name]; err != nil {
		return processor.DocumentOutcome{}, err
	}
	return f.outcomes[name], nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
}

func TestWalkMirrorsStructure(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(in, "a.pdf"))
	writeFile(t, filepath.Join(in, "sub", "nested", "b.pdf"))
	writeFile(t, filepath.Join(in, "sub", "notes.txt")) // filtered out

	proc := newFakeProc()
	proc.outcomes["a.pdf"] = processor.DocumentOutcome{TotalPages: 2, Rotated: 1}
	proc.outcomes["b.pdf"] = processor.DocumentOutcome{TotalPages: 3, Rotated: 0, Failed: 1}

	w := New(proc, Options{})
	s, err := w.Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalFiles)
	assert.Equal(t, 2, s.ProcessedFiles)
	assert.Equal(t, 5, s.TotalPages)
	assert.Equal(t, 1, s.RotatedPages)
	assert.Equal(t, 1, s.FailedPages)
	assert.Equal(t, 1, s.FailedFiles)

	assert.Contains(t, proc.outPaths, filepath.Join(out, "a.pdf"))
	assert.Contains(t, proc.outPaths, filepath.Join(out, "sub", "nested", "b.pdf"))
	// output directories were created for nested files
	fi, err := os.Stat(filepath.Join(out, "sub", "nested"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestSuffixFilterIsCaseInsensitive(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "UPPER.PDF"))
	writeFile(t, filepath.Join(in, "mixed.Pdf"))
	writeFile(t, filepath.Join(in, "skip.pdfx"))

	proc := newFakeProc()
	w := New(proc, Options{})
	s, err := w.Run(context.Background(), in, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, s.TotalFiles)
	assert.ElementsMatch(t, []string{"UPPER.PDF", "mixed.Pdf"}, proc.calls)
}

func TestFailingFileDoesNotStopWalk(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.pdf"))
	writeFile(t, filepath.Join(in, "corrupt.pdf"))
	writeFile(t, filepath.Join(in, "c.pdf"))

	proc := newFakeProc()
	proc.outcomes["a.pdf"] = processor.DocumentOutcome{TotalPages: 1, Rotated: 1}
	proc.outcomes["c.pdf"] = processor.DocumentOutcome{TotalPages: 2, Rotated: 2}
	proc.fails["corrupt.pdf"] = errors.New("open corrupt.pdf: bad header")

	w := New(proc, Options{})
	s, err := w.Run(context.Background(), in, t.TempDir())
	require.NoError(t, err)

	assert.Len(t, proc.calls, 3, "walk continues past the failing file")
	assert.Equal(t, 3, s.ProcessedFiles)
	assert.Equal(t, 1, s.FailedFiles)
	assert.Equal(t, 3, s.RotatedPages)
}

func TestEmptyInputFolder(t *testing.T) {
	w := New(newFakeProc(), Options{})
	s, err := w.Run(context.Background(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, s.TotalFiles)
	assert.Zero(t, s.ProcessedFiles)
}

func TestProgressReportedPerFile(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.pdf"))
	writeFile(t, filepath.Join(in, "b.pdf"))

	var progress [][2]int
	w := New(newFakeProc(), Options{
		OnProgress: func(processed, total int) {
			progress = append(progress, [2]int{processed, total})
		},
	})
	_, err := w.Run(context.Background(), in, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
}

func TestCancellationStopsWalk(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.pdf"))
	writeFile(t, filepath.Join(in, "b.pdf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(newFakeProc(), Options{})
	_, err := w.Run(ctx, in, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMissingInputFolder(t *testing.T) {
	w := New(newFakeProc(), Options{})
	_, err := w.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}
