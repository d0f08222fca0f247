package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints that load balancers and scrapers must reach
// without credentials.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
// Pass it as the Skipper on JWTConfig or DevAuthMiddleware so health checks
// and metrics stay reachable without a bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public infrastructure
// endpoint that should bypass authentication.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
