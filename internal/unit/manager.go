package unit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/QuickTools-one/qr-pdf-compress/internal/chunk"
	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
)

// ChunkResult is the outcome of one chunk compression, correlated back to
// its task by Index.
type ChunkResult struct {
	Index           int
	CompressedBytes []byte
	OriginalSize    int64
	CompressedSize  int64
	ProcessingTime  time.Duration
}

// Manager creates one execution context per request and guarantees its
// teardown on every exit path: terminal response, error, timeout, or
// cancellation.
type Manager struct {
	factory Factory
	logger  *slog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Factory Factory
	Logger  *slog.Logger
}

// NewManager creates a manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("transport factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{factory: cfg.Factory, logger: logger}, nil
}

// Overrides are per-job parameter overrides forwarded to the worker.
type Overrides struct {
	TargetDPI          *int
	Quality            *int
	PreserveMetadata   *bool
	AllowRasterization *bool
}

// RunChunk compresses one chunk in a fresh execution context.
//
// Ownership of task.Source transfers to the context: the buffer is released
// on the caller side as soon as it has been sent, so the orchestrator never
// holds two copies of a chunk.
func (m *Manager) RunChunk(ctx context.Context, task *chunk.Task, p preset.Config, ov Overrides, timeout time.Duration, onProgress func(float64)) (*ChunkResult, error) {
	req := &Request{
		Type:               MsgCompressChunk,
		ChunkIndex:         task.Index,
		PDFBytes:           task.Source,
		Preset:             p.Name,
		TargetDPI:          ov.TargetDPI,
		Quality:            ov.Quality,
		PreserveMetadata:   ov.PreserveMetadata,
		AllowRasterization: ov.AllowRasterization,
	}

	resp, err := m.run(ctx, req, timeout, onProgress, func() {
		// Input transferred; drop our reference immediately.
		task.Release()
	})
	if err != nil {
		return nil, err
	}
	if resp.Type != MsgChunkComplete {
		return nil, errdefs.New(errdefs.KindTransport, "unexpected terminal message %q for chunk %d", resp.Type, task.Index)
	}

	result := &ChunkResult{
		Index:           resp.ChunkIndex,
		CompressedBytes: resp.CompressedBytes,
	}
	if resp.Stats != nil {
		result.OriginalSize = resp.Stats.OriginalSize
		result.CompressedSize = resp.Stats.CompressedSize
		result.ProcessingTime = time.Duration(resp.Stats.ProcessingTimeMs) * time.Millisecond
	}
	return result, nil
}

// RunMerge merges ordered chunk outputs in a fresh execution context.
func (m *Manager) RunMerge(ctx context.Context, parts [][]byte, meta *codec.Metadata, timeout time.Duration, onProgress func(float64)) ([]byte, error) {
	req := &Request{
		Type:     MsgMergeChunks,
		Chunks:   parts,
		Metadata: meta,
	}

	resp, err := m.run(ctx, req, timeout, onProgress, nil)
	if err != nil {
		return nil, err
	}
	if resp.Type != MsgMergeComplete {
		return nil, errdefs.New(errdefs.KindTransport, "unexpected terminal message %q for merge", resp.Type)
	}
	return resp.MergedBytes, nil
}

// run drives one full context lifecycle: create, send the single request,
// await the single terminal response, tear down. A timer races the response;
// the timer firing is indistinguishable from the context reporting Timeout.
func (m *Manager) run(ctx context.Context, req *Request, timeout time.Duration, onProgress func(float64), onSent func()) (*Response, error) {
	unitID := uuid.New().String()[:8]
	log := m.logger.With("unit", unitID, "request", req.Type)

	tr := m.factory()
	// Teardown happens here exactly once regardless of which path exits
	// first; transports make Close idempotent.
	defer func() {
		if err := tr.Close(); err != nil {
			log.Debug("context teardown", "error", err)
		}
	}()

	if err := tr.Start(ctx); err != nil {
		return nil, errdefs.Wrap(errdefs.KindTransport, fmt.Errorf("start execution context: %w", err))
	}
	log.Debug("execution context started")

	if err := tr.Send(req); err != nil {
		return nil, errdefs.Wrap(errdefs.KindTransport, fmt.Errorf("send task: %w", err))
	}
	if onSent != nil {
		onSent()
	}

	type recvMsg struct {
		resp *Response
		err  error
	}
	msgs := make(chan recvMsg)
	done := make(chan struct{})
	defer close(done)

	// Pump runs until a terminal message, a transport error (which Close
	// forces, unblocking Recv), or the manager stops listening.
	go func() {
		for {
			resp, err := tr.Recv()
			select {
			case msgs <- recvMsg{resp, err}:
			case <-done:
				return
			}
			if err != nil || resp.Terminal() {
				return
			}
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			log.Warn("execution context timed out", "timeout", timeout)
			return nil, errdefs.New(errdefs.KindTimeout, "execution unit exceeded %s", timeout)

		case msg := <-msgs:
			if msg.err != nil {
				return nil, errdefs.Wrap(errdefs.KindTransport, msg.err)
			}
			switch msg.resp.Type {
			case MsgProgress:
				// Progress is informational only, never control flow.
				if onProgress != nil {
					onProgress(msg.resp.Percent)
				}
			case MsgError:
				return nil, m.unitError(msg.resp)
			default:
				log.Debug("execution context completed")
				return msg.resp, nil
			}
		}
	}
}

// unitError rebuilds a structured error from a worker error message. The
// wire code is authoritative; message classification is a fallback for
// workers that died without one.
func (m *Manager) unitError(resp *Response) error {
	kind := errdefs.ParseKind(resp.Code)
	if resp.Code == "" {
		kind = errdefs.Classify(fmt.Errorf("%s", resp.Message))
	}
	if kind == errdefs.KindUnknown && resp.Code == "" {
		kind = errdefs.KindExecutionUnit
	}
	err := errdefs.New(kind, "%s", resp.Message)
	if resp.Phase != "" {
		return err.WithPhase(resp.Phase)
	}
	return err
}
