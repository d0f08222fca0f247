package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// AuditEntry captures who tried to do what, and what the authorization layer
// decided about it.
type AuditEntry struct {
	UserID      string
	Role        string
	TenantID    string
	Resource    string
	TargetID    string
	Action      string // view, create, update, delete
	Decision    string // granted, denied, or empty when no check ran
	Permissions []string
	IPAddress   string
	UserAgent   string
	Path        string
	Method      string
	Timestamp   time.Time
	RequestID   string
	StatusCode  int
}

// AuditRecorder persists audit entries. It decouples the middleware from any
// concrete sink so tests can capture entries in memory.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that records every /api/v1/* request together with
// the caller's identity and the authorization decision the route's permission
// checks left behind. Denied attempts log at warn level so probing stands out
// in the stream.
//
// If no AuditRecorder is provided, entries go to structured logging only.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Execute the handler first so we capture the response status
			// and the recorded authorization decision.
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.Role = string(auth.RoleFromContext(ctx))
			entry.TenantID = auth.TenantFromContext(ctx)

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = httpMethodToAction(req.Method)
			entry.Resource = extractResource(path)
			entry.TargetID = extractTargetID(path)

			if decision, ok := c.Get(auth.AuthzDecisionKey).(string); ok {
				entry.Decision = decision
			}
			if perms, ok := c.Get(auth.AuthzPermissionsKey).([]string); ok {
				entry.Permissions = perms
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.Decision == "denied" {
				evt = logger.Warn()
			}
			evt.
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("tenant_id", entry.TenantID).
				Str("resource", entry.Resource).
				Str("target_id", entry.TargetID).
				Str("action", entry.Action).
				Str("decision", entry.Decision).
				Strs("permissions", entry.Permissions).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

// isAuditablePath returns true for application routes under /api/v1/.
func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

// httpMethodToAction maps HTTP methods to the verbs used in permission names.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "view"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "view"
	}
}

// extractResource parses the resource collection from a URL path:
//
//	/api/v1/staff          -> staff
//	/api/v1/staff/123      -> staff
func extractResource(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return "unknown"
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractTargetID finds the UUID of the record a request addressed, if any.
func extractTargetID(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	for _, seg := range segments[1:] {
		if isUUIDLike(seg) {
			return seg
		}
	}
	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
