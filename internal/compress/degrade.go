package compress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/merge"
	"github.com/QuickTools-one/qr-pdf-compress/internal/preset"
	"github.com/QuickTools-one/qr-pdf-compress/internal/progress"
)

// runWithDegradation walks the preset chain, running one full job pass per
// preset until one succeeds or the chain is exhausted.
//
// Retries restart the ENTIRE pass, chunking included. This is deliberate: a
// failure under an aggressive preset does not make chunks already compressed
// under it trustworthy, and restarting keeps the final artifact
// preset-uniform. Do not replace this with per-chunk retry.
func (s *Service) runWithDegradation(ctx context.Context, log *slog.Logger, data []byte, chain []preset.Config, strategy merge.Strategy, opts Options, tracker *progress.Tracker) (*Result, error) {
	requested := chain[0].Name
	var tried []string
	var lastErr error

	for i, p := range chain {
		tried = append(tried, p.Name)

		result, err := s.runPass(ctx, log.With("pass_preset", p.Name), data, p, strategy, opts, tracker)
		if err == nil {
			if p.Name != requested {
				result.Warning = fmt.Sprintf("preset %q failed; document was compressed with milder preset %q instead", requested, p.Name)
				log.Warn("job succeeded after degradation", "used", p.Name)
			}
			return result, nil
		}
		lastErr = err

		// Cancellation is the caller's decision, never something a milder
		// preset can fix.
		if ctx.Err() != nil {
			return nil, err
		}

		kind := errdefs.KindOf(err)
		log.Warn("pass failed", "pass_preset", p.Name, "kind", kind, "error", err)

		if !errdefs.Recoverable(kind) || opts.DisableDegradation {
			return nil, jobError(p.Name, int64(len(data)), err)
		}
		if i == len(chain)-1 {
			break // lossless has no milder fallback
		}

		next := chain[i+1]
		tracker.Recovering(fmt.Sprintf("preset %q failed, retrying entire job with preset %q", p.Name, next.Name))
		tracker.ResetPass()
	}

	// Chain exhausted with degradation enabled: succeed with the original
	// bytes unchanged rather than failing the call.
	last := tried[len(tried)-1]
	warning := fmt.Sprintf("compression failed under all presets (%s); returning original document unmodified: %v",
		strings.Join(tried, ", "), lastErr)
	log.Warn("degradation exhausted, returning original input", "tried", strings.Join(tried, ","))

	return &Result{
		Artifact: data,
		Stats:    buildStats(int64(len(data)), int64(len(data)), last, 0, 0),
		Warning:  warning,
	}, nil
}

// jobError builds the structured terminal failure for non-degrading paths.
func jobError(lastPreset string, originalSize int64, err error) error {
	return &JobError{
		Preset:       lastPreset,
		Phase:        errdefs.PhaseOf(err),
		OriginalSize: originalSize,
		Err:          err,
	}
}
