package unit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/engine"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
)

// Worker is the child-process side of an execution context. It handles
// exactly one request from in, writes progress and one terminal response to
// out, and returns. The parent tears the process down afterwards.
type Worker struct {
	engine *engine.Engine
	codec  codec.Codec
}

// NewWorker creates the worker-side handler.
func NewWorker(eng *engine.Engine, c codec.Codec) *Worker {
	return &Worker{engine: eng, codec: c}
}

// Serve reads the single task message and processes it. EOF before any
// request is not an error; the parent simply never sent one.
func (w *Worker) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	enc := json.NewEncoder(out)

	var req Request
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request: %w", err)
	}

	switch req.Type {
	case MsgCompressChunk:
		w.compressChunk(ctx, &req, enc)
	case MsgMergeChunks:
		w.mergeChunks(ctx, &req, enc)
	default:
		w.writeError(enc, "", errdefs.New(errdefs.KindTransport, "unknown request type %q", req.Type))
	}
	return nil
}

func (w *Worker) compressChunk(ctx context.Context, req *Request, enc *json.Encoder) {
	p, err := preset.Lookup(req.Preset)
	if err != nil {
		w.writeError(enc, "compressing", errdefs.Wrap(errdefs.KindInvalidInput, err))
		return
	}
	if req.TargetDPI != nil {
		p.TargetDPI = *req.TargetDPI
	}
	if req.Quality != nil {
		p.Quality = *req.Quality
	}
	if req.PreserveMetadata != nil {
		p.PreserveMetadata = *req.PreserveMetadata
	}
	if req.AllowRasterization != nil {
		p.AllowRasterization = *req.AllowRasterization
	}

	res, err := w.engine.Compress(ctx, req.PDFBytes, p, func(pct float64) {
		_ = enc.Encode(&Response{Type: MsgProgress, Percent: pct})
	})
	if err != nil {
		w.writeError(enc, "compressing", err)
		return
	}

	_ = enc.Encode(&Response{
		Type:            MsgChunkComplete,
		ChunkIndex:      req.ChunkIndex,
		CompressedBytes: res.Data,
		Stats: &Stats{
			OriginalSize:     res.OriginalSize,
			CompressedSize:   res.CompressedSize,
			ProcessingTimeMs: res.Took.Milliseconds(),
		},
	})
}

func (w *Worker) mergeChunks(_ context.Context, req *Request, enc *json.Encoder) {
	if len(req.Chunks) == 0 {
		w.writeError(enc, "merging", errdefs.New(errdefs.KindInvalidInput, "no chunks to merge"))
		return
	}

	var originalSize int64
	for _, c := range req.Chunks {
		originalSize += int64(len(c))
	}

	start := time.Now()
	merged, err := w.codec.Merge(req.Chunks, req.Metadata)
	if err != nil {
		w.writeError(enc, "merging", err)
		return
	}

	ratio := 1.0
	if originalSize > 0 {
		ratio = float64(len(merged)) / float64(originalSize)
	}
	_ = enc.Encode(&Response{
		Type:        MsgMergeComplete,
		MergedBytes: merged,
		Stats: &Stats{
			OriginalSize:     originalSize,
			CompressedSize:   int64(len(merged)),
			Ratio:            ratio,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	})
}

func (w *Worker) writeError(enc *json.Encoder, phase string, err error) {
	_ = enc.Encode(&Response{
		Type:    MsgError,
		Message: err.Error(),
		Phase:   phase,
		Code:    string(errdefs.KindOf(err)),
	})
}
