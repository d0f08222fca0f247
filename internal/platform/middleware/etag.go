package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETagConfig controls response revalidation for read endpoints.
type ETagConfig struct {
	// CacheControl replaces the blanket no-store set by SecurityHeaders on
	// routes that opt into revalidation. Empty leaves the header alone.
	CacheControl string
	VaryHeaders  []string
	ExcludePaths []string
}

// DefaultETagConfig allows private caching with mandatory revalidation, so
// clients polling the directory get cheap 304s without ever seeing stale data.
func DefaultETagConfig() ETagConfig {
	return ETagConfig{
		CacheControl: "private, no-cache",
		VaryHeaders:  []string{"Accept", "Authorization"},
	}
}

// ETag returns revalidation middleware with the default configuration.
func ETag() echo.MiddlewareFunc {
	return ETagWithConfig(DefaultETagConfig())
}

// ETagWithConfig returns middleware that fingerprints GET and HEAD responses
// with a weak ETag and answers If-None-Match with 304 Not Modified. Error
// responses pass through untouched. Authorization middleware runs earlier in
// the chain, so a 304 still required a granted permission check.
func ETagWithConfig(config ETagConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if shouldSkipETag(req.URL.Path, config.ExcludePaths) {
				return next(c)
			}

			// Buffer the response so the body can be hashed before anything
			// reaches the client.
			res := c.Response()
			origWriter := res.Writer
			buf := newBufferedResponseWriter(origWriter)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}

			res.Writer = origWriter

			if buf.statusCode >= 400 {
				return buf.flushTo()
			}

			if config.CacheControl != "" {
				res.Header().Set("Cache-Control", config.CacheControl)
			}
			if len(config.VaryHeaders) > 0 {
				res.Header().Set("Vary", strings.Join(config.VaryHeaders, ", "))
			}

			etag := computeETag(buf.buf.Bytes())
			res.Header().Set("ETag", etag)

			if match := req.Header.Get("If-None-Match"); match != "" && etagMatch(match, etag) {
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}

			return buf.flushTo()
		}
	}
}

// bufferedResponseWriter captures the response body so it can be inspected
// before flushing to the real writer.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        *bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{
		writer:     w,
		buf:        &bytes.Buffer{},
		statusCode: http.StatusOK,
	}
}

// Header returns the underlying writer's header map so headers set by handlers
// are visible to both the middleware and the final flush.
func (w *bufferedResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

// WriteHeader records the status code without committing it.
func (w *bufferedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

// Flush implements http.Flusher (no-op while buffering).
func (w *bufferedResponseWriter) Flush() {}

// flushTo writes the buffered status and body to the underlying writer.
func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// computeETag returns a weak ETag from an MD5 fingerprint of the body.
func computeETag(body []byte) string {
	hash := md5.Sum(body)
	return fmt.Sprintf(`W/"%x"`, hash)
}

func shouldSkipETag(path string, excludes []string) bool {
	for _, ex := range excludes {
		if path == ex {
			return true
		}
	}
	return false
}

// etagMatch reports whether an If-None-Match header value matches the given
// ETag. Supports comma-separated lists, the wildcard "*", and weak comparison.
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == etag {
			return true
		}
		if stripWeakPrefix(candidate) == stripWeakPrefix(etag) {
			return true
		}
	}
	return false
}

func stripWeakPrefix(etag string) string {
	if strings.HasPrefix(etag, `W/`) {
		return etag[2:]
	}
	return etag
}
