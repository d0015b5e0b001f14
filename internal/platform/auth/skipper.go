package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: health checks and the sign-in
// endpoints that hand out tokens.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

const signInPrefix = "/api/v1/auth/"

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether path is reachable without a token.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, signInPrefix)
}
