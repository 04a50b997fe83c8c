package auth

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/labstack/echo/v4"
)

const contextKey = "auth.identity"

// Identity is the resolved requester attached ahead of the idempotency
// gate. Resolution is a pass-through stub: the caller is trusted to be
// who the request says it is.
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Middleware resolves the requester identity from the request and stores
// it on the echo context. POST bodies are peeked and restored so later
// binding still works; reads fall back to the senderEmail query parameter.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			email := c.QueryParam("senderEmail")

			if c.Request().Body != nil && c.Request().ContentLength != 0 {
				body, err := io.ReadAll(c.Request().Body)
				if err != nil {
					return echo.NewHTTPError(400, "invalid request body")
				}
				c.Request().Body = io.NopCloser(bytes.NewReader(body))

				var payload struct {
					SenderEmail string `json:"senderEmail"`
				}
				if err := json.Unmarshal(body, &payload); err == nil && payload.SenderEmail != "" {
					email = payload.SenderEmail
				}
			}

			SetIdentity(c, Identity{Email: email, Role: "admin"})
			return next(c)
		}
	}
}

// SetIdentity stores an identity on the echo context.
func SetIdentity(c echo.Context, identity Identity) {
	c.Set(contextKey, identity)
}

// FromContext returns the identity stored by Middleware.
func FromContext(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(contextKey).(Identity)
	return identity, ok
}
