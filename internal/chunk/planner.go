// Package chunk plans how a document is split into bounded page ranges.
//
// Chunk size bounds peak memory in the compression engine: each chunk is
// compressed in its own execution unit, so a smaller chunk means a smaller
// engine heap before the unit is torn down.
package chunk

import (
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
)

const (
	// DefaultSize is the chunk size in pages when the caller does not request one.
	DefaultSize = 10
	// constrainedSize is used when the document or device suggests memory pressure.
	constrainedSize = 5

	// largePageBytes flags scanned/image-heavy documents by average page size.
	largePageBytes = 5 << 20
	// manyPages flags documents long enough to warrant smaller chunks outright.
	manyPages = 500
)

// Task is one contiguous page range to be compressed by an execution unit.
// Pages span [Start, End). Source is populated by extraction just before the
// task is dispatched and released as soon as the unit has taken ownership.
type Task struct {
	Index  int
	Start  int
	End    int
	Source []byte
}

// Pages returns the number of pages in the task's range.
func (t *Task) Pages() int { return t.End - t.Start }

// Release drops the task's backing buffer so it can be reclaimed.
func (t *Task) Release() { t.Source = nil }

// Plan is an ordered set of tasks covering [0, TotalPages) exactly once.
type Plan struct {
	TotalPages int
	ChunkSize  int
	Tasks      []Task
}

// Plan computes chunk boundaries for a document.
//
// If requestedSize is positive it is used verbatim. Otherwise the default is
// shrunk when the average page size exceeds 5 MiB, when the host is a
// constrained device, or when the document has more than 500 pages.
func PlanDocument(totalPages int, fileSizeBytes int64, requestedSize int, constrained bool) (*Plan, error) {
	if totalPages <= 0 {
		return nil, errdefs.New(errdefs.KindInvalidInput, "document has no pages (totalPages=%d)", totalPages)
	}

	size := requestedSize
	if size <= 0 {
		size = DefaultSize
		avgPage := fileSizeBytes / int64(totalPages)
		if avgPage > largePageBytes || constrained || totalPages > manyPages {
			size = constrainedSize
		}
	}

	var tasks []Task
	for start := 0; start < totalPages; start += size {
		end := start + size
		if end > totalPages {
			end = totalPages
		}
		tasks = append(tasks, Task{Index: len(tasks), Start: start, End: end})
	}

	return &Plan{TotalPages: totalPages, ChunkSize: size, Tasks: tasks}, nil
}
