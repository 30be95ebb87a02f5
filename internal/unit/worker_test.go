package unit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/engine"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
)

// fakeCodec implements codec.Codec by concatenating parts.
type fakeCodec struct {
	mergeErr error
}

func (f *fakeCodec) PageCount(data []byte) (int, error) { return 1, nil }

func (f *fakeCodec) ExtractPages(data []byte, start, end int) ([]byte, error) {
	return data, nil
}

func (f *fakeCodec) Merge(parts [][]byte, meta *codec.Metadata) ([]byte, error) {
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}
	return bytes.Join(parts, nil), nil
}

func (f *fakeCodec) ApplyMetadata(data []byte, meta *codec.Metadata) ([]byte, error) {
	return data, nil
}

func serve(t *testing.T, w *Worker, req *Request) []*Response {
	t.Helper()

	var in bytes.Buffer
	if err := json.NewEncoder(&in).Encode(req); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := w.Serve(context.Background(), &in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	var resps []*Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		resps = append(resps, &r)
	}
	if len(resps) == 0 {
		t.Fatal("worker wrote no responses")
	}
	return resps
}

func TestWorker_MergeChunks(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{})

	resps := serve(t, w, &Request{
		Type:   MsgMergeChunks,
		Chunks: [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")},
	})

	last := resps[len(resps)-1]
	if last.Type != MsgMergeComplete {
		t.Fatalf("terminal = %s (%s), want merge-complete", last.Type, last.Message)
	}
	if string(last.MergedBytes) != "aabbcc" {
		t.Errorf("merged = %q, want order-preserving concat", last.MergedBytes)
	}
	if last.Stats == nil || last.Stats.OriginalSize != 6 {
		t.Errorf("stats = %+v", last.Stats)
	}
}

func TestWorker_MergeError(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{
		mergeErr: errdefs.New(errdefs.KindValidationFailed, "merged output failed sanity check"),
	})

	resps := serve(t, w, &Request{Type: MsgMergeChunks, Chunks: [][]byte{[]byte("x")}})
	last := resps[len(resps)-1]
	if last.Type != MsgError {
		t.Fatalf("terminal = %s, want error", last.Type)
	}
	if last.Code != string(errdefs.KindValidationFailed) {
		t.Errorf("code = %q, want validation_failed", last.Code)
	}
	if last.Phase != "merging" {
		t.Errorf("phase = %q, want merging", last.Phase)
	}
}

func TestWorker_CompressInvalidPreset(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{})

	resps := serve(t, w, &Request{Type: MsgCompressChunk, Preset: "turbo", PDFBytes: []byte("%PDF-")})
	last := resps[len(resps)-1]
	if last.Type != MsgError {
		t.Fatalf("terminal = %s, want error", last.Type)
	}
	if last.Code != string(errdefs.KindInvalidInput) {
		t.Errorf("code = %q, want invalid_input", last.Code)
	}
}

func TestWorker_CompressEmptyInput(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{})

	resps := serve(t, w, &Request{Type: MsgCompressChunk, Preset: "balanced"})
	last := resps[len(resps)-1]
	if last.Type != MsgError || last.Code != string(errdefs.KindInvalidInput) {
		t.Errorf("terminal = %s/%s, want error/invalid_input", last.Type, last.Code)
	}
}

func TestWorker_UnknownRequest(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{})

	resps := serve(t, w, &Request{Type: "reticulate-splines"})
	last := resps[len(resps)-1]
	if last.Type != MsgError {
		t.Fatalf("terminal = %s, want error", last.Type)
	}
	if !strings.Contains(last.Message, "unknown request type") {
		t.Errorf("message = %q", last.Message)
	}
}

func TestWorker_EOFIsClean(t *testing.T) {
	w := NewWorker(engine.New(nil), &fakeCodec{})
	var out bytes.Buffer
	if err := w.Serve(context.Background(), strings.NewReader(""), &out); err != nil {
		t.Errorf("Serve(EOF) error = %v", err)
	}
}
