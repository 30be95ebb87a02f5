package merge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/errdefs"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

type fakeCodec struct {
	mergeCalls    int
	metadataCalls int
}

func (f *fakeCodec) PageCount(data []byte) (int, error) { return 1, nil }

func (f *fakeCodec) ExtractPages(data []byte, start, end int) ([]byte, error) { return data, nil }

func (f *fakeCodec) Merge(parts [][]byte, meta *codec.Metadata) ([]byte, error) {
	f.mergeCalls++
	out := bytes.Join(parts, nil)
	if !meta.Empty() {
		f.metadataCalls++
	}
	return out, nil
}

func (f *fakeCodec) ApplyMetadata(data []byte, meta *codec.Metadata) ([]byte, error) {
	if !meta.Empty() {
		f.metadataCalls++
	}
	return data, nil
}

// scriptedTransport answers one merge request with a canned response.
type scriptedTransport struct {
	resp *unit.Response
	sent []*unit.Request
	done chan struct{}
}

func (s *scriptedTransport) Start(ctx context.Context) error { return nil }

func (s *scriptedTransport) Send(req *unit.Request) error {
	s.sent = append(s.sent, req)
	return nil
}

func (s *scriptedTransport) Recv() (*unit.Response, error) {
	if s.resp != nil {
		r := s.resp
		s.resp = nil
		return r, nil
	}
	<-s.done
	return nil, errors.New("transport closed")
}

func (s *scriptedTransport) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func results(parts ...string) []*unit.ChunkResult {
	rs := make([]*unit.ChunkResult, len(parts))
	for i, p := range parts {
		rs[i] = &unit.ChunkResult{Index: i, CompressedBytes: []byte(p)}
	}
	return rs
}

func newCoordinator(t *testing.T, tr unit.Transport, fc *fakeCodec) *Coordinator {
	t.Helper()
	mgr, err := unit.NewManager(unit.ManagerConfig{Factory: func() unit.Transport { return tr }})
	if err != nil {
		t.Fatal(err)
	}
	return NewCoordinator(mgr, fc, nil)
}

func TestMerge_SingleChunkPassThrough(t *testing.T) {
	fc := &fakeCodec{}
	c := newCoordinator(t, &scriptedTransport{done: make(chan struct{})}, fc)

	out, err := c.Merge(context.Background(), results("only"), nil, StrategyIsolated, time.Second, nil)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if string(out) != "only" {
		t.Errorf("out = %q, want pass-through", out)
	}
	if fc.mergeCalls != 0 {
		t.Error("single chunk must not invoke the merge service")
	}
}

func TestMerge_SingleChunkStillAppliesMetadata(t *testing.T) {
	fc := &fakeCodec{}
	c := newCoordinator(t, &scriptedTransport{done: make(chan struct{})}, fc)

	meta := &codec.Metadata{Title: "Annual Report"}
	if _, err := c.Merge(context.Background(), results("only"), meta, StrategyInline, time.Second, nil); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if fc.metadataCalls != 1 {
		t.Errorf("metadata applied %d times, want exactly 1", fc.metadataCalls)
	}
}

func TestMerge_InlinePreservesOrder(t *testing.T) {
	fc := &fakeCodec{}
	c := newCoordinator(t, &scriptedTransport{done: make(chan struct{})}, fc)

	out, err := c.Merge(context.Background(), results("aa", "bb", "cc"), nil, StrategyInline, time.Second, nil)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if string(out) != "aabbcc" {
		t.Errorf("out = %q, want order-preserving merge", out)
	}
	if fc.mergeCalls != 1 {
		t.Errorf("merge service called %d times, want 1", fc.mergeCalls)
	}
}

func TestMerge_IsolatedDispatchesToContext(t *testing.T) {
	tr := &scriptedTransport{
		done: make(chan struct{}),
		resp: &unit.Response{
			Type:        unit.MsgMergeComplete,
			MergedBytes: []byte("merged-in-context"),
			Stats:       &unit.Stats{OriginalSize: 4, CompressedSize: 17},
		},
	}
	fc := &fakeCodec{}
	c := newCoordinator(t, tr, fc)

	out, err := c.Merge(context.Background(), results("aa", "bb"), nil, StrategyIsolated, time.Second, nil)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if string(out) != "merged-in-context" {
		t.Errorf("out = %q", out)
	}
	if fc.mergeCalls != 0 {
		t.Error("isolated strategy must not merge in-process")
	}
	if len(tr.sent) != 1 || tr.sent[0].Type != unit.MsgMergeChunks {
		t.Fatalf("sent = %+v", tr.sent)
	}
	if len(tr.sent[0].Chunks) != 2 {
		t.Errorf("dispatched %d chunks, want 2", len(tr.sent[0].Chunks))
	}
}

func TestMerge_RejectsOutOfOrderResults(t *testing.T) {
	c := newCoordinator(t, &scriptedTransport{done: make(chan struct{})}, &fakeCodec{})

	rs := []*unit.ChunkResult{
		{Index: 1, CompressedBytes: []byte("b")},
		{Index: 0, CompressedBytes: []byte("a")},
	}
	_, err := c.Merge(context.Background(), rs, nil, StrategyInline, time.Second, nil)
	if err == nil {
		t.Fatal("out-of-order results should fail")
	}
	if kind := errdefs.KindOf(err); kind != errdefs.KindValidationFailed {
		t.Errorf("kind = %s, want validation_failed", kind)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyIsolated {
		t.Errorf("ParseStrategy(\"\") = %v, %v", s, err)
	}
	if s, err := ParseStrategy("inline"); err != nil || s != StrategyInline {
		t.Errorf("ParseStrategy(inline) = %v, %v", s, err)
	}
	if _, err := ParseStrategy("sideways"); err == nil {
		t.Error("ParseStrategy(sideways) should fail")
	}
}
