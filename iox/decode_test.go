package iox

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var payload = []byte(strings.Repeat("--boundary\r\nContent-Disposition: form-data\r\n\r\nbody\r\n", 50))

func encodeWith(t *testing.T, token string, src []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch token {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd.NewWriter failed: %v", err)
		}
		w = enc
	default:
		t.Fatalf("no encoder for %q", token)
	}
	if _, err := w.Write(src); err != nil {
		t.Fatalf("%s write failed: %v", token, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("%s close failed: %v", token, err)
	}
	return buf.Bytes()
}

func TestNewDecodingReader_SingleCoding(t *testing.T) {
	for _, token := range []string{"gzip", "deflate", "br", "zstd"} {
		t.Run(token, func(t *testing.T) {
			encoded := encodeWith(t, token, payload)

			r, err := NewDecodingReader(bytes.NewReader(encoded), token)
			if err != nil {
				t.Fatalf("NewDecodingReader failed: %v", err)
			}
			t.Cleanup(CloseFunc(r))

			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("decoded %d bytes, want %d", len(got), len(payload))
			}
		})
	}
}

func TestNewDecodingReader_Identity(t *testing.T) {
	for _, enc := range []string{"", "identity", " Identity "} {
		r, err := NewDecodingReader(bytes.NewReader(payload), enc)
		if err != nil {
			t.Fatalf("encoding %q: %v", enc, err)
		}
		got, _ := io.ReadAll(r)
		if !bytes.Equal(got, payload) {
			t.Errorf("encoding %q altered the stream", enc)
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}
}

func TestNewDecodingReader_StackedCodings(t *testing.T) {
	// "gzip, br": gzip applied first, then brotli.
	encoded := encodeWith(t, "br", encodeWith(t, "gzip", payload))

	r, err := NewDecodingReader(bytes.NewReader(encoded), "x-gzip, BR")
	if err != nil {
		t.Fatalf("NewDecodingReader failed: %v", err)
	}
	defer DiscardClose(r)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("stacked decode mismatch")
	}
}

func TestNewDecodingReader_Errors(t *testing.T) {
	if _, err := NewDecodingReader(bytes.NewReader(payload), "compress"); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("compress: error = %v, want ErrUnsupportedEncoding", err)
	}
	if _, err := NewDecodingReader(bytes.NewReader([]byte("not gzip")), "gzip"); err == nil {
		t.Error("gzip header error not reported")
	}
}

func TestSupportedEncodings(t *testing.T) {
	for _, token := range SupportedEncodings() {
		var src io.Reader = bytes.NewReader(nil)
		switch token {
		case "gzip", "x-gzip":
			src = bytes.NewReader(encodeWith(t, "gzip", nil))
		case "deflate":
			src = bytes.NewReader(encodeWith(t, "deflate", nil))
		}
		r, err := NewDecodingReader(src, token)
		if err != nil {
			t.Errorf("%s advertised but rejected: %v", token, err)
			continue
		}
		_ = r.Close()
	}
}
