package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// clientWindow is one client's fixed request window.
type clientWindow struct {
	count     int
	resetTime time.Time
}

// Middleware throttles requests per client IP (forwarded address when
// present, remote address otherwise) over a fixed window. Requests past
// the ceiling get 429 Too Many Requests. State is process-local, unlike
// the provider limiter.
func Middleware(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientWindow)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := c.RealIP()
			now := time.Now()

			mu.Lock()
			data, ok := clients[clientID]
			if !ok || now.After(data.resetTime) {
				clients[clientID] = &clientWindow{count: 1, resetTime: now.Add(window)}
				mu.Unlock()
				return next(c)
			}
			if data.count < maxRequests {
				data.count++
				mu.Unlock()
				return next(c)
			}
			mu.Unlock()

			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too Many Requests"})
		}
	}
}
