package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize is the maximum allowed size for any single header value.
const maxHeaderValueSize = 8192 // 8KB

var (
	// SQL fragments worth flagging. Queries are parameterized downstream,
	// so a match is logged rather than blocked.
	sqlPatterns = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	// Script injection is blocked outright; nothing in the API accepts
	// markup.
	scriptPatterns = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)

	// Path traversal markers, including single and double percent-encoded
	// forms.
	traversalMarkers = []string{"..", "%2e%2e", "%252e"}
)

// Sanitize returns middleware that validates incoming requests. It checks for
// common attack patterns in the request path, headers, and query parameters.
// Blocked requests receive a 400 Bad Request.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger returns the sanitize middleware configured with a logger
// for SQL injection warnings.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if msg := checkRequestPath(req.URL); msg != "" {
				return badRequest(c, msg)
			}
			if msg := checkRequestHeaders(req.Header); msg != "" {
				return badRequest(c, msg)
			}
			if msg := checkQueryParams(c, logger); msg != "" {
				return badRequest(c, msg)
			}
			return next(c)
		}
	}
}

// checkRequestPath scans both the decoded and raw path, since encoded attacks
// only show up in the raw form.
func checkRequestPath(u *url.URL) string {
	path := u.Path
	rawPath := u.RawPath
	if rawPath == "" {
		rawPath = path
	}
	if containsPathTraversal(path) || containsPathTraversal(rawPath) {
		return "path traversal detected"
	}
	if containsNullByte(path) || containsNullByte(rawPath) {
		return "null byte injection detected"
	}
	return ""
}

func checkRequestHeaders(h http.Header) string {
	for name, values := range h {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "header injection detected: " + name
			}
		}
	}
	return ""
}

func checkQueryParams(c echo.Context, logger zerolog.Logger) string {
	path := c.Request().URL.Path
	for key, values := range c.Request().URL.Query() {
		if containsNullByte(key) {
			return "null byte injection detected in query parameter"
		}
		if scriptPatterns.MatchString(key) {
			return "script injection detected in query parameter"
		}
		for _, v := range values {
			if containsNullByte(v) {
				return "null byte injection detected in query parameter"
			}
			if sqlPatterns.MatchString(v) {
				logger.Warn().
					Str("param", key).
					Str("path", path).
					Str("remote_ip", c.RealIP()).
					Msg("potential SQL injection pattern detected in query parameter")
			}
			if scriptPatterns.MatchString(v) {
				return "script injection detected in query parameter"
			}
		}
	}
	return ""
}

func containsPathTraversal(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range traversalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') ||
		strings.Contains(strings.ToLower(s), "%00")
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"message": message,
	})
}

// SanitizeString removes potentially dangerous characters from a string value.
// It strips null bytes and control characters (except \n, \r, \t) and trims
// surrounding whitespace. Handlers use this for field-level cleanup of names
// and free-text input.
func SanitizeString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
