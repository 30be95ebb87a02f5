package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/compress"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Phase string `json:"phase,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCompress accepts a raw PDF body and returns the compressed document.
// Options come from query parameters; job statistics are returned in
// response headers so the body stays a plain PDF.
func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("document exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}

	opts, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.service.Compress(r.Context(), body, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errdefs.KindOf(err) == errdefs.KindInvalidInput {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("X-Original-Size", strconv.FormatInt(result.Stats.OriginalSize, 10))
	h.Set("X-Compressed-Size", strconv.FormatInt(result.Stats.CompressedSize, 10))
	h.Set("X-Compression-Ratio", strconv.FormatFloat(result.Stats.Ratio, 'f', 4, 64))
	h.Set("X-Preset-Used", result.Stats.PresetUsed)
	h.Set("X-Chunks-Processed", strconv.Itoa(result.Stats.ChunksProcessed))
	if result.Warning != "" {
		h.Set("X-Warning", result.Warning)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Artifact)
}

func optionsFromQuery(r *http.Request) (compress.Options, error) {
	q := r.URL.Query()

	opts := compress.Options{
		Preset:        q.Get("preset"),
		MergeStrategy: q.Get("mergeStrategy"),
	}
	if opts.Preset == "" {
		opts.Preset = "balanced"
	}

	var err error
	if v := q.Get("chunkSize"); v != "" {
		if opts.ChunkSize, err = strconv.Atoi(v); err != nil {
			return opts, errdefs.New(errdefs.KindInvalidInput, "invalid chunkSize %q", v)
		}
	}
	if v := q.Get("targetDPI"); v != "" {
		if opts.TargetDPI, err = strconv.Atoi(v); err != nil {
			return opts, errdefs.New(errdefs.KindInvalidInput, "invalid targetDPI %q", v)
		}
	}
	if v := q.Get("quality"); v != "" {
		if opts.Quality, err = strconv.Atoi(v); err != nil {
			return opts, errdefs.New(errdefs.KindInvalidInput, "invalid quality %q", v)
		}
	}
	if v := q.Get("gracefulDegradation"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errdefs.New(errdefs.KindInvalidInput, "invalid gracefulDegradation %q", v)
		}
		opts.DisableDegradation = !enabled
	}
	if v := q.Get("preserveMetadata"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errdefs.New(errdefs.KindInvalidInput, "invalid preserveMetadata %q", v)
		}
		opts.PreserveMetadata = &b
	}
	if title, author := q.Get("title"), q.Get("author"); title != "" || author != "" {
		opts.Metadata = &codec.Metadata{Title: title, Author: author}
	}
	return opts, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: err.Error(),
		Kind:  string(errdefs.KindOf(err)),
		Phase: errdefs.PhaseOf(err),
	})
}
