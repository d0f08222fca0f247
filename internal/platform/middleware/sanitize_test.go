package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newSanitizeEcho(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.Use(SanitizeWithLogger(logger))
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	e.GET("/*", handler)
	e.POST("/*", handler)
	return e
}

func TestSanitize_BlocksMaliciousRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header [2]string
	}{
		{name: "path traversal", target: "/../../etc/passwd"},
		{name: "encoded traversal", target: "/%2e%2e/%2e%2e/etc/passwd"},
		{name: "double encoded traversal", target: "/%252e%252e/etc/passwd"},
		{name: "null byte in path", target: "/staff%00.txt"},
		{name: "null byte in query", target: "/api/v1/staff?search=foo%00bar"},
		{name: "crlf header", target: "/api/v1/staff", header: [2]string{"X-Custom", "value\r\nInjected: header"}},
		{name: "cr header", target: "/api/v1/staff", header: [2]string{"X-Custom", "value\rinjected"}},
		{name: "lf header", target: "/api/v1/staff", header: [2]string{"X-Custom", "value\ninjected"}},
		{name: "oversized header", target: "/api/v1/staff", header: [2]string{"X-Big", strings.Repeat("A", maxHeaderValueSize+1)}},
	}

	e := newSanitizeEcho(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if body["message"] == "" {
				t.Errorf("expected non-empty message, got %v", body)
			}
		})
	}
}

func TestSanitize_ScriptInjectionBlocked(t *testing.T) {
	values := []string{
		"<script>alert(1)</script>",
		"javascript:alert(1)",
		"onload=alert(1)",
		"onclick=alert(1)",
	}

	e := newSanitizeEcho(zerolog.Nop())
	for _, v := range values {
		q := url.Values{}
		q.Set("search", v)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/staff?"+q.Encode(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("value %q: expected 400, got %d", v, rec.Code)
		}
	}
}

func TestSanitize_DirectoryTrafficPassesThrough(t *testing.T) {
	paths := []string{
		"/api/v1/staff",
		"/api/v1/staff?role=DOCTOR&active=true",
		"/api/v1/staff/7f9c24e8-3b1a-4f5d-9c6e-8a2b1d0e4f3a",
		"/api/v1/staff/7f9c24e8-3b1a-4f5d-9c6e-8a2b1d0e4f3a/role",
		"/api/v1/me/permissions",
		"/health",
	}

	e := newSanitizeEcho(zerolog.Nop())
	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("path %s: expected 200, got %d; body: %s", p, rec.Code, rec.Body.String())
		}
	}
}

func TestSanitize_SQLPatternLogsButPassesThrough(t *testing.T) {
	values := []string{
		"'; DROP TABLE staff_members;--",
		"1 UNION SELECT * FROM staff_members",
		"' OR 1=1--",
		"1=1",
	}

	var buf bytes.Buffer
	e := newSanitizeEcho(zerolog.New(&buf))
	for _, v := range values {
		buf.Reset()
		q := url.Values{}
		q.Set("search", v)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/staff?"+q.Encode(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		// Parameterized queries handle these downstream; the request
		// must not be blocked.
		if rec.Code != http.StatusOK {
			t.Errorf("value %q: expected 200, got %d", v, rec.Code)
		}
		if !bytes.Contains(buf.Bytes(), []byte("potential SQL injection")) {
			t.Errorf("value %q: expected SQL injection warning in logs", v)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"null bytes stripped", "Jim\x00Halpert", "JimHalpert"},
		{"control chars stripped", "Pam\x01Beesly\x07DDS\x1B", "PamBeeslyDDS"},
		{"whitespace chars kept", "line1\nline2\ttab\rreturn", "line1\nline2\ttab\rreturn"},
		{"normal text unchanged", "Dr. Jane Doe, D.D.S. (Orthodontics) - Chair #3", "Dr. Jane Doe, D.D.S. (Orthodontics) - Chair #3"},
		{"surrounding whitespace trimmed", "   hello world   ", "hello world"},
		{"empty", "", ""},
		{"only null bytes", "\x00\x00\x00", ""},
		{"unicode preserved", "Consulta dental: se requiere limpieza", "Consulta dental: se requiere limpieza"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeString(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
