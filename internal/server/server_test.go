package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/compress"
	"github.com/QuickTools-one/qr-pdf-compress/internal/merge"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

type fakeCodec struct{}

func (fakeCodec) PageCount(data []byte) (int, error) { return 4, nil }

func (fakeCodec) ExtractPages(data []byte, start, end int) ([]byte, error) {
	return []byte("%PDF-slice"), nil
}

func (fakeCodec) Merge(parts [][]byte, meta *codec.Metadata) ([]byte, error) {
	return bytes.Join(parts, nil), nil
}

func (fakeCodec) ApplyMetadata(data []byte, meta *codec.Metadata) ([]byte, error) {
	return data, nil
}

// okTransport answers any request successfully.
type okTransport struct {
	respCh chan *unit.Response
	done   chan struct{}
	once   sync.Once
}

func (o *okTransport) Start(ctx context.Context) error { return nil }

func (o *okTransport) Send(req *unit.Request) error {
	switch req.Type {
	case unit.MsgCompressChunk:
		o.respCh <- &unit.Response{
			Type:            unit.MsgChunkComplete,
			ChunkIndex:      req.ChunkIndex,
			CompressedBytes: []byte("out"),
			Stats:           &unit.Stats{OriginalSize: 10, CompressedSize: 3},
		}
	case unit.MsgMergeChunks:
		o.respCh <- &unit.Response{
			Type:        unit.MsgMergeComplete,
			MergedBytes: bytes.Join(req.Chunks, nil),
		}
	}
	return nil
}

func (o *okTransport) Recv() (*unit.Response, error) {
	select {
	case r := <-o.respCh:
		return r, nil
	case <-o.done:
		return nil, errors.New("closed")
	}
}

func (o *okTransport) Close() error {
	o.once.Do(func() { close(o.done) })
	return nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	mgr, err := unit.NewManager(unit.ManagerConfig{Factory: func() unit.Transport {
		return &okTransport{respCh: make(chan *unit.Response, 4), done: make(chan struct{})}
	}})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := compress.NewService(compress.ServiceConfig{
		Codec:  fakeCodec{},
		Units:  mgr,
		Merger: merge.NewCoordinator(mgr, fakeCodec{}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(Config{Service: svc})
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func TestHandleCompress(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compress?preset=balanced&chunkSize=2",
		strings.NewReader("%PDF-1.4 fixture"))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Preset-Used") != "balanced" {
		t.Errorf("X-Preset-Used = %q", rec.Header().Get("X-Preset-Used"))
	}
	if rec.Header().Get("X-Chunks-Processed") != "2" {
		t.Errorf("X-Chunks-Processed = %q, want 2", rec.Header().Get("X-Chunks-Processed"))
	}
	if rec.Body.String() != "outout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleCompress_BadInput(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compress?preset=balanced",
		strings.NewReader("not a pdf"))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if resp.Kind != "invalid_input" {
		t.Errorf("kind = %q, want invalid_input", resp.Kind)
	}
}

func TestHandleCompress_BadOptions(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compress?chunkSize=lots",
		strings.NewReader("%PDF-1.4"))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
