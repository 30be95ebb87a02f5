// Package unit manages isolated, time-bounded execution contexts.
//
// Each context is a fresh child process that handles exactly one request
// (compress a chunk, or merge chunks) and is then unconditionally torn down.
// Contexts are never reused: the engine's memory only grows, so destroying
// the process is the one reclamation mechanism available.
package unit

import (
	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
)

// Message types on the wire. Requests flow orchestrator -> worker, responses
// flow back. Any number of progress messages may precede the single terminal
// response.
const (
	MsgCompressChunk = "compress-chunk"
	MsgMergeChunks   = "merge-chunks"
	MsgChunkComplete = "chunk-complete"
	MsgMergeComplete = "merge-complete"
	MsgProgress      = "progress"
	MsgError         = "error"
)

// Request is the single task message sent to an execution context.
// Byte fields are base64 on the wire (encoding/json default).
type Request struct {
	Type string `json:"type"`

	// compress-chunk fields
	ChunkIndex int    `json:"chunkIndex,omitempty"`
	PDFBytes   []byte `json:"pdfBytes,omitempty"`
	Preset     string `json:"preset,omitempty"`

	// Optional per-request overrides of the preset's parameters.
	TargetDPI          *int  `json:"targetDPI,omitempty"`
	Quality            *int  `json:"quality,omitempty"`
	PreserveMetadata   *bool `json:"preserveMetadata,omitempty"`
	AllowRasterization *bool `json:"allowRasterization,omitempty"`

	// merge-chunks fields
	Chunks   [][]byte        `json:"chunks,omitempty"`
	Metadata *codec.Metadata `json:"metadata,omitempty"`
}

// Stats summarizes one engine invocation.
type Stats struct {
	OriginalSize     int64   `json:"originalSize"`
	CompressedSize   int64   `json:"compressedSize"`
	ProcessingTimeMs int64   `json:"processingTimeMs,omitempty"`
	Ratio            float64 `json:"ratio,omitempty"`
}

// Response is a message from an execution context: progress or terminal.
type Response struct {
	Type string `json:"type"`

	ChunkIndex      int    `json:"chunkIndex,omitempty"`
	CompressedBytes []byte `json:"compressedBytes,omitempty"`
	MergedBytes     []byte `json:"mergedBytes,omitempty"`
	Stats           *Stats `json:"stats,omitempty"`

	// progress fields
	Percent float64 `json:"percent,omitempty"`

	// error fields; Code carries the structured error kind across the
	// process boundary so the parent never has to parse Message.
	Message string `json:"message,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Terminal reports whether this response ends the context's lifetime.
func (r *Response) Terminal() bool {
	return r.Type == MsgChunkComplete || r.Type == MsgMergeComplete || r.Type == MsgError
}
