package iox

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding token with no decoder.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// SupportedEncodings lists the Content-Encoding tokens NewDecodingReader accepts.
func SupportedEncodings() []string {
	return []string{"identity", "gzip", "x-gzip", "deflate", "br", "zstd"}
}

// NewDecodingReader returns a reader that undoes the Content-Encoding header
// value encoding. Multiple codings ("gzip, br") are undone in reverse order
// of application. An empty encoding or "identity" returns r unchanged.
func NewDecodingReader(r io.Reader, encoding string) (io.ReadCloser, error) {
	tokens := strings.Split(encoding, ",")
	chain := &decodeChain{Reader: r}

	for i := len(tokens) - 1; i >= 0; i-- {
		token := strings.ToLower(strings.TrimSpace(tokens[i]))
		if err := chain.push(token); err != nil {
			_ = chain.Close()
			return nil, err
		}
	}
	return chain, nil
}

// decodeChain is a stack of decoders; Close releases them innermost last.
type decodeChain struct {
	io.Reader
	closers []func() error
}

func (c *decodeChain) push(token string) error {
	switch token {
	case "", "identity":
		return nil

	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(c.Reader)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		c.Reader = zr
		c.closers = append(c.closers, zr.Close)

	case "deflate":
		zr, err := zlib.NewReader(c.Reader)
		if err != nil {
			return fmt.Errorf("deflate: %w", err)
		}
		c.Reader = zr
		c.closers = append(c.closers, zr.Close)

	case "br":
		c.Reader = brotli.NewReader(c.Reader)

	case "zstd":
		zr, err := zstd.NewReader(c.Reader)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
		rc := zr.IOReadCloser()
		c.Reader = rc
		c.closers = append(c.closers, rc.Close)

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, token)
	}
	return nil
}

func (c *decodeChain) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
