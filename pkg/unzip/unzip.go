package unzip

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KretovDmitry/bistro/pkg/logger"
)

// gzipBody swaps a compressed request body for its decompressed stream
// and closes both on Close.
type gzipBody struct {
	src io.ReadCloser
	zr  *gzip.Reader
}

func newGzipBody(src io.ReadCloser) (*gzipBody, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("new gzip reader: %w", err)
	}
	return &gzipBody{src: src, zr: zr}, nil
}

func (b *gzipBody) Read(p []byte) (int, error) {
	return b.zr.Read(p)
}

func (b *gzipBody) Close() error {
	if err := b.zr.Close(); err != nil {
		_ = b.src.Close()
		return fmt.Errorf("close gzip reader: %w", err)
	}
	return b.src.Close()
}

// Middleware transparently decompresses gzip encoded request bodies.
// A body that claims gzip but is not is rejected with 400.
func Middleware(l logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			body, err := newGzipBody(r.Body)
			if err != nil {
				l.With(r.Context()).Warnf("unzip request body: %s", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"malformed gzip body"}`))
				return
			}
			defer body.Close()

			r.Body = body
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}
