package middleware

import (
	"strings"

	contextPkg "FocusTracker/pkg/context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// newCORSMiddleware answers browser preflights with 204. An empty origin list
// allows any origin, matching the capture page served from a different host.
func newCORSMiddleware(allowOrigins string) fiber.Handler {
	allowOrigins = strings.TrimSpace(allowOrigins)
	if allowOrigins == "" {
		allowOrigins = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders:  strings.Join([]string{fiber.HeaderContentType, contextPkg.HeaderRequestID}, ","),
		ExposeHeaders: contextPkg.HeaderRequestID,
		MaxAge:        600,
	})
}
