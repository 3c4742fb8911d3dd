package transfer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// chunkReader returns its chunks one Read at a time, then io.EOF.
type chunkReader struct {
	chunks [][]byte
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.chunks) > 0 && len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	return n, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, nil }

func TestWindow_RefillMovesTail(t *testing.T) {
	w := NewWindow(8)
	src := strings.NewReader("abcdefghij")

	n, err := w.Refill(src)
	if err != nil {
		t.Fatalf("Refill failed: %v", err)
	}
	if n != 8 {
		t.Fatalf("first Refill read %d bytes, want 8", n)
	}

	if err := w.Consume(5); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	n, err = w.Refill(src)
	if err != nil {
		t.Fatalf("Refill failed: %v", err)
	}
	if n != 2 {
		t.Errorf("second Refill read %d bytes, want 2", n)
	}
	if got := string(w.Bytes()); got != "fghij" {
		t.Errorf("Bytes() = %q, want %q", got, "fghij")
	}
	if w.cursor != 0 {
		t.Errorf("cursor = %d after Refill, want 0", w.cursor)
	}
}

func TestWindow_RefillExhaustion(t *testing.T) {
	w := NewWindow(16)
	src := strings.NewReader("abc")

	if n, err := w.Refill(src); err != nil || n != 3 {
		t.Fatalf("Refill = (%d, %v), want (3, nil)", n, err)
	}
	n, err := w.Refill(src)
	if err != nil {
		t.Fatalf("Refill at EOF returned error: %v", err)
	}
	if n != 0 {
		t.Errorf("Refill at EOF read %d bytes, want 0", n)
	}
	if !w.Exhausted() {
		t.Error("expected window to be exhausted")
	}
	if w.Available() != 3 {
		t.Errorf("Available() = %d, want 3 (unconsumed bytes survive EOF)", w.Available())
	}
}

func TestWindow_RefillDataWithEOF(t *testing.T) {
	w := NewWindow(16)
	src := iotest.DataErrReader(strings.NewReader("xy"))

	n, err := w.Refill(src)
	if err != nil {
		t.Fatalf("Refill failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Refill read %d, want 2", n)
	}
	if !w.Exhausted() {
		t.Error("data returned with io.EOF must mark the window exhausted")
	}
	if n, _ := w.Refill(src); n != 0 {
		t.Errorf("expected exhaustion, read %d", n)
	}
}

func TestWindow_RefillFullWindow(t *testing.T) {
	w := NewWindow(4)
	src := strings.NewReader("abcdef")
	if _, err := w.Refill(src); err != nil {
		t.Fatal(err)
	}
	n, err := w.Refill(src)
	if err != nil || n != 0 {
		t.Errorf("Refill on full window = (%d, %v), want (0, nil)", n, err)
	}
}

func TestWindow_RefillSourceError(t *testing.T) {
	w := NewWindow(8)
	boom := errors.New("connection reset")
	_, err := w.Refill(errReader{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Refill error = %v, want %v", err, boom)
	}
	if w.Exhausted() {
		t.Error("read error must not mark the window exhausted")
	}
}

func TestWindow_RefillNoProgress(t *testing.T) {
	w := NewWindow(8)
	_, err := w.Refill(emptyReader{})
	if !errors.Is(err, io.ErrNoProgress) {
		t.Errorf("Refill error = %v, want io.ErrNoProgress", err)
	}
}

func TestWindow_ConsumeOverrun(t *testing.T) {
	w := NewWindow(8)
	if _, err := w.Refill(strings.NewReader("abc")); err != nil {
		t.Fatal(err)
	}
	if err := w.Consume(4); !errors.Is(err, ErrConsumeOverrun) {
		t.Errorf("Consume(4) error = %v, want ErrConsumeOverrun", err)
	}
	if err := w.Consume(-1); !errors.Is(err, ErrConsumeOverrun) {
		t.Errorf("Consume(-1) error = %v, want ErrConsumeOverrun", err)
	}
	if err := w.Consume(3); err != nil {
		t.Errorf("Consume(3) failed: %v", err)
	}
	if w.Available() != 0 {
		t.Errorf("Available() = %d, want 0", w.Available())
	}
}

func TestFind(t *testing.T) {
	w := NewWindow(32)
	if _, err := w.Refill(strings.NewReader("ab--Xcd--Xef")); err != nil {
		t.Fatal(err)
	}

	p, ok := Find(w, []byte("--X"))
	if !ok || p != 2 {
		t.Fatalf("Find = (%d, %v), want (2, true)", p, ok)
	}

	// Offsets stay absolute after consuming.
	if err := w.Consume(4); err != nil {
		t.Fatal(err)
	}
	p, ok = Find(w, []byte("--X"))
	if !ok || p != 7 {
		t.Errorf("Find after Consume = (%d, %v), want (7, true)", p, ok)
	}

	if _, ok := Find(w, []byte("zz")); ok {
		t.Error("Find reported a match for an absent delimiter")
	}
}

func TestFind_DoesNotAllocate(t *testing.T) {
	w := NewWindow(64)
	if _, err := w.Refill(bytes.NewReader(bytes.Repeat([]byte("a"), 60))); err != nil {
		t.Fatal(err)
	}
	delim := []byte("--boundary")
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = Find(w, delim)
	})
	if allocs != 0 {
		t.Errorf("Find allocated %.0f times per call, want 0", allocs)
	}
}
