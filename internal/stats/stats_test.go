package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregatorAccumulates(t *testing.T) {
	a := NewAggregator(3)

	a.AddFileResult(10, 4, 0)
	a.AddFileResult(5, 0, 2)
	a.AddFileResult(0, 0, 0)

	s := a.Summary()
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, 3, s.ProcessedFiles)
	assert.Equal(t, 15, s.TotalPages)
	assert.Equal(t, 4, s.RotatedPages)
	assert.Equal(t, 2, s.FailedPages)
	assert.Equal(t, 1, s.FailedFiles, "only the file with failed pages counts")
}

func TestAggregatorFailedFile(t *testing.T) {
	a := NewAggregator(2)

	a.AddFileResult(3, 1, 0)
	a.AddFailedFile()

	s := a.Summary()
	assert.Equal(t, 2, s.ProcessedFiles)
	assert.Equal(t, 1, s.FailedFiles)
	assert.Equal(t, 3, s.TotalPages)
}

func TestSummaryIsSnapshot(t *testing.T) {
	a := NewAggregator(1)
	before := a.Summary()
	a.AddFileResult(2, 2, 0)

	assert.Equal(t, 0, before.ProcessedFiles)
	assert.Equal(t, 1, a.Summary().ProcessedFiles)
}
