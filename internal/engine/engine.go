// Package engine wraps the black-box compression engine (pdfcpu's optimizer)
// behind a process-wide cached instance.
//
// The engine configuration is loaded at most once per process and shared
// across all invocations. Loading is idempotent and safe to call
// concurrently: concurrent first-callers collapse into a single load. The
// cache is never torn down implicitly; Reset is the only way to drop it.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
)

var pdfHeader = []byte("%PDF-")

// Loader builds the engine configuration. Replaceable for tests.
type Loader func(ctx context.Context) (*model.Configuration, error)

func defaultLoader(ctx context.Context) (*model.Configuration, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.OPTIMIZE
	conf.Optimize = true
	conf.OptimizeResourceDicts = true
	conf.OptimizeDuplicateContentStreams = true
	return conf, nil
}

// Engine is the shared compression engine instance.
type Engine struct {
	loader Loader

	mu      sync.Mutex
	loading chan struct{} // non-nil while a load is in flight
	conf    *model.Configuration
}

// New creates an engine. A nil loader uses the pdfcpu default.
func New(loader Loader) *Engine {
	if loader == nil {
		loader = defaultLoader
	}
	return &Engine{loader: loader}
}

// Load initializes the engine if needed. Concurrent callers block until the
// single in-flight load finishes and then share its outcome; a failed load
// leaves the engine unloaded so a later call can retry.
func (e *Engine) Load(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.conf != nil {
			e.mu.Unlock()
			return nil
		}
		if e.loading != nil {
			done := e.loading
			e.mu.Unlock()
			select {
			case <-done:
				continue // re-check outcome
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		done := make(chan struct{})
		e.loading = done
		e.mu.Unlock()

		conf, err := e.loader(ctx)

		e.mu.Lock()
		e.loading = nil
		if err == nil {
			e.conf = conf
		}
		e.mu.Unlock()
		close(done)

		if err != nil {
			return errdefs.Wrap(errdefs.KindEngineLoadFailed, fmt.Errorf("engine load: %w", err))
		}
		return nil
	}
}

// Loaded reports whether the engine instance is initialized.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conf != nil
}

// Reset drops the cached instance. The next Load reinitializes.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conf = nil
}

// Result describes one engine invocation.
type Result struct {
	Data           []byte
	OriginalSize   int64
	CompressedSize int64
	Took           time.Duration
}

// Compress runs one document through the engine under the given preset.
// onProgress, if non-nil, receives coarse sub-progress in [0,100].
func (e *Engine) Compress(ctx context.Context, data []byte, p preset.Config, onProgress func(float64)) (*Result, error) {
	if len(data) == 0 {
		return nil, errdefs.New(errdefs.KindInvalidInput, "empty document")
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, errdefs.New(errdefs.KindInvalidInput, "invalid PDF header")
	}
	if err := e.Load(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	conf := *e.conf // shallow copy so per-preset tweaks don't race
	e.mu.Unlock()

	// Lossless skips the aggressive stream rewriting; the structural
	// optimizations alone are already loss-free.
	if p.Name != preset.Lossless {
		conf.OptimizeDuplicateContentStreams = true
	}

	report := func(pct float64) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	start := time.Now()
	report(0)

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, &conf); err != nil {
		return nil, errdefs.Wrap(errdefs.KindExecutionUnit, fmt.Errorf("engine optimize: %w", err))
	}
	report(90)

	compressed := out.Bytes()
	if len(compressed) == 0 || !bytes.HasPrefix(compressed, pdfHeader) {
		return nil, errdefs.New(errdefs.KindValidationFailed, "engine produced invalid output (%d bytes)", len(compressed))
	}
	report(100)

	return &Result{
		Data:           compressed,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(compressed)),
		Took:           time.Since(start),
	}, nil
}
