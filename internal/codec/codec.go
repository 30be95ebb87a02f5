// Package codec wraps pdfcpu as the document codec: page counting,
// page-range extraction, multi-document merge, and metadata.
//
// The orchestrator depends on the Codec interface so tests can substitute a
// fake; PDFCPU is the production implementation.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
)

// Metadata is optional document metadata applied to a final artifact.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
}

// Empty reports whether no metadata fields are set.
func (m *Metadata) Empty() bool {
	return m == nil || (m.Title == "" && m.Author == "" && m.Subject == "" && m.Keywords == "")
}

func (m *Metadata) properties() map[string]string {
	props := map[string]string{}
	if m.Title != "" {
		props["Title"] = m.Title
	}
	if m.Author != "" {
		props["Author"] = m.Author
	}
	if m.Subject != "" {
		props["Subject"] = m.Subject
	}
	if m.Keywords != "" {
		props["Keywords"] = m.Keywords
	}
	return props
}

// Codec is the document-manipulation service the orchestrator composes with.
type Codec interface {
	// PageCount returns the number of pages in a document.
	PageCount(data []byte) (int, error)
	// ExtractPages returns a standalone document containing pages [start, end)
	// of data (0-based).
	ExtractPages(data []byte, start, end int) ([]byte, error)
	// Merge concatenates ordered documents into one, applying metadata once.
	Merge(parts [][]byte, meta *Metadata) ([]byte, error)
	// ApplyMetadata sets metadata on an existing document.
	ApplyMetadata(data []byte, meta *Metadata) ([]byte, error)
}

// PDFCPU implements Codec with the pdfcpu library.
type PDFCPU struct {
	conf *model.Configuration
}

// NewPDFCPU creates a codec with relaxed validation, matching the engine's
// tolerance for slightly malformed real-world PDFs.
func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

func (c *PDFCPU) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), c.conf)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.KindInvalidInput, fmt.Errorf("page count: %w", err))
	}
	if n <= 0 {
		return 0, errdefs.New(errdefs.KindInvalidInput, "document has no pages")
	}
	return n, nil
}

func (c *PDFCPU) ExtractPages(data []byte, start, end int) ([]byte, error) {
	if start < 0 || end <= start {
		return nil, errdefs.New(errdefs.KindInvalidInput, "invalid page range [%d,%d)", start, end)
	}

	// pdfcpu page selections are 1-based and inclusive.
	sel := []string{fmt.Sprintf("%d-%d", start+1, end)}
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, sel, c.conf); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidInput, fmt.Errorf("extract pages %d-%d: %w", start+1, end, err))
	}
	return out.Bytes(), nil
}

func (c *PDFCPU) Merge(parts [][]byte, meta *Metadata) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errdefs.New(errdefs.KindInvalidInput, "nothing to merge")
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, c.conf); err != nil {
		return nil, fmt.Errorf("merge %d parts: %w", len(parts), err)
	}

	return c.ApplyMetadata(out.Bytes(), meta)
}

func (c *PDFCPU) ApplyMetadata(data []byte, meta *Metadata) ([]byte, error) {
	if meta.Empty() {
		return data, nil
	}
	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(data), &out, meta.properties(), c.conf); err != nil {
		return nil, fmt.Errorf("apply metadata: %w", err)
	}
	return out.Bytes(), nil
}
