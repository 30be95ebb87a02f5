// Package merge combines ordered chunk outputs into the final artifact.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

// Strategy selects where the merge runs.
type Strategy string

const (
	// StrategyIsolated merges in a fresh execution context, keeping the
	// merge's memory out of this process.
	StrategyIsolated Strategy = "isolated"
	// StrategyInline merges synchronously in-process.
	StrategyInline Strategy = "inline"
)

// ParseStrategy validates a strategy name, defaulting empty to isolated.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyIsolated, StrategyInline:
		return Strategy(s), nil
	case "":
		return StrategyIsolated, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q", s)
	}
}

// Coordinator merges chunk results in original chunk order.
type Coordinator struct {
	manager *unit.Manager
	codec   codec.Codec
	logger  *slog.Logger
}

// NewCoordinator creates a coordinator. The manager backs the isolated
// strategy, the codec backs the inline one.
func NewCoordinator(manager *unit.Manager, c codec.Codec, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{manager: manager, codec: c, logger: logger.With("component", "merge")}
}

// Merge combines results (already in original chunk order) into one
// artifact, applying metadata exactly once. A single chunk is a pass-through
// apart from metadata.
func (c *Coordinator) Merge(ctx context.Context, results []*unit.ChunkResult, meta *codec.Metadata, strategy Strategy, timeout time.Duration, onProgress func(float64)) ([]byte, error) {
	if len(results) == 0 {
		return nil, errdefs.New(errdefs.KindInvalidInput, "no chunk results to merge")
	}

	for i, r := range results {
		if r.Index != i {
			return nil, errdefs.New(errdefs.KindValidationFailed, "chunk results out of order: position %d holds index %d", i, r.Index)
		}
	}

	if len(results) == 1 {
		c.logger.Debug("single chunk, merge is a pass-through")
		out, err := c.codec.ApplyMetadata(results[0].CompressedBytes, meta)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindValidationFailed, err).WithPhase("merging")
		}
		if onProgress != nil {
			onProgress(100)
		}
		return out, nil
	}

	parts := make([][]byte, len(results))
	for i, r := range results {
		parts[i] = r.CompressedBytes
	}

	switch strategy {
	case StrategyIsolated:
		c.logger.Debug("merging in isolated context", "chunks", len(parts))
		return c.manager.RunMerge(ctx, parts, meta, timeout, onProgress)
	case StrategyInline:
		c.logger.Debug("merging inline", "chunks", len(parts))
		out, err := c.codec.Merge(parts, meta)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindOf(err), err).WithPhase("merging")
		}
		if onProgress != nil {
			onProgress(100)
		}
		return out, nil
	default:
		return nil, errdefs.New(errdefs.KindInvalidInput, "unknown merge strategy %q", strategy)
	}
}
