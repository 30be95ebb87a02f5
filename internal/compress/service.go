package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/QuickTools-one/qr-pdf-compress/internal/chunk"
	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/merge"
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
	"github.com/QuickTools-one/qr-pdf-compress/internal/progress"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

var pdfHeader = []byte("%PDF-")

// Service composes the codec, execution unit manager and merge coordinator
// into the public compression API.
type Service struct {
	codec  codec.Codec
	units  *unit.Manager
	merger *merge.Coordinator
	logger *slog.Logger
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Codec  codec.Codec
	Units  *unit.Manager
	Merger *merge.Coordinator
	Logger *slog.Logger
}

// NewService creates a compression service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if cfg.Units == nil {
		return nil, fmt.Errorf("unit manager is required")
	}
	if cfg.Merger == nil {
		return nil, fmt.Errorf("merge coordinator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		codec:  cfg.Codec,
		units:  cfg.Units,
		merger: cfg.Merger,
		logger: logger,
	}, nil
}

// Compress runs one compression job. On a recoverable failure the job is
// retried from scratch under progressively milder presets unless
// opts.DisableDegradation is set; see degrade.go for the state machine.
func (s *Service) Compress(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, errdefs.New(errdefs.KindInvalidInput, "input is empty")
	}
	if !bytes.HasPrefix(data, pdfHeader) {
		return nil, errdefs.New(errdefs.KindInvalidInput, "input is not a PDF document")
	}

	chain, err := preset.Chain(opts.Preset)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidInput, err)
	}

	strategy, err := merge.ParseStrategy(opts.MergeStrategy)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalidInput, err)
	}

	jobID := uuid.New().String()[:8]
	log := s.logger.With("job", jobID, "preset", opts.Preset)
	log.Info("compression job started", "size", len(data), "degradation", !opts.DisableDegradation)

	tracker := progress.NewTracker(opts.OnProgress)
	return s.runWithDegradation(ctx, log, data, chain, strategy, opts, tracker)
}

// runPass executes one full plan -> compress -> merge pass under a single
// preset. Any failure invalidates the whole pass; partially compressed
// chunks are discarded so the final artifact is always preset-uniform.
func (s *Service) runPass(ctx context.Context, log *slog.Logger, data []byte, p preset.Config, strategy merge.Strategy, opts Options, tracker *progress.Tracker) (*Result, error) {
	passStart := time.Now()

	tracker.StartPlanning()
	pages, err := s.codec.PageCount(data)
	if err != nil {
		return nil, phased(err, "planning")
	}

	plan, err := chunk.PlanDocument(pages, int64(len(data)), opts.ChunkSize, opts.ConstrainedDevice)
	if err != nil {
		return nil, phased(err, "planning")
	}
	log.Debug("plan ready", "pages", pages, "chunks", len(plan.Tasks), "chunk_size", plan.ChunkSize)

	ov := overrides(opts)
	timeout := opts.timeout()

	tracker.StartCompressing(len(plan.Tasks))
	results := make([]*unit.ChunkResult, 0, len(plan.Tasks))

	// Chunks run strictly one at a time: concurrent chunks would multiply
	// peak engine memory and defeat the chunking strategy.
	for i := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		task := &plan.Tasks[i]

		src, err := s.codec.ExtractPages(data, task.Start, task.End)
		if err != nil {
			return nil, phased(err, "compressing")
		}
		task.Source = src

		tracker.ChunkStarted(task.Index)
		chunkStart := time.Now()

		res, err := s.units.RunChunk(ctx, task, p, ov, timeout, nil)
		if err != nil {
			return nil, phased(err, "compressing")
		}
		results = append(results, res)
		tracker.ChunkCompleted(task.Index, time.Since(chunkStart))
		log.Debug("chunk compressed", "chunk", task.Index,
			"in", res.OriginalSize, "out", res.CompressedSize)
	}

	tracker.StartMerging()
	artifact, err := s.merger.Merge(ctx, results, opts.Metadata, strategy, timeout, tracker.MergeProgress)
	if err != nil {
		return nil, phased(err, "merging")
	}
	// Chunk outputs are merged; drop them so the next pass (or the caller)
	// doesn't pin both generations of buffers.
	for _, r := range results {
		r.CompressedBytes = nil
	}

	stats := buildStats(int64(len(data)), int64(len(artifact)), p.Name, len(plan.Tasks), time.Since(passStart))
	tracker.Done()
	log.Info("pass complete", "ratio", fmt.Sprintf("%.3f", stats.Ratio), "saved", stats.BytesSaved)

	return &Result{Artifact: artifact, Stats: stats}, nil
}

func buildStats(originalSize, compressedSize int64, presetUsed string, chunks int, took time.Duration) Stats {
	ratio := 1.0
	if originalSize > 0 {
		ratio = float64(compressedSize) / float64(originalSize)
	}
	saved := originalSize - compressedSize
	if saved < 0 {
		saved = 0
	}
	pct := 0.0
	if originalSize > 0 {
		pct = float64(saved) / float64(originalSize) * 100
	}
	return Stats{
		OriginalSize:    originalSize,
		CompressedSize:  compressedSize,
		Ratio:           ratio,
		BytesSaved:      saved,
		PercentageSaved: pct,
		PresetUsed:      presetUsed,
		ProcessingTime:  took,
		ChunksProcessed: chunks,
	}
}

func overrides(opts Options) unit.Overrides {
	ov := unit.Overrides{
		PreserveMetadata:   opts.PreserveMetadata,
		AllowRasterization: opts.AllowRasterization,
	}
	if opts.TargetDPI > 0 {
		dpi := opts.TargetDPI
		ov.TargetDPI = &dpi
	}
	if opts.Quality > 0 {
		q := opts.Quality
		ov.Quality = &q
	}
	return ov
}

// phased ensures an error carries a job phase without overwriting one set
// closer to the origin.
func phased(err error, phase string) error {
	if errdefs.PhaseOf(err) != "" {
		return err
	}
	var e *errdefs.Error
	if errors.As(err, &e) {
		return e.WithPhase(phase)
	}
	return errdefs.Wrap(errdefs.KindOf(err), err).WithPhase(phase)
}
