package middleware

import (
	"github.com/labstack/echo/v4"
)

// baselineHeaders are set on every response. The API serves patient and
// billing data, so responses must never be cached by intermediaries or
// rendered inside another origin. Individual routes may override
// Cache-Control later in the chain (the ETag middleware does, for
// revalidated reads).
var baselineHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	// "0" disables the legacy reflected-XSS filter; CSP below covers it.
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders returns middleware that applies the baseline security
// response headers before the handler runs.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baselineHeaders {
				h.Set(kv[0], kv[1])
			}
			return next(c)
		}
	}
}
