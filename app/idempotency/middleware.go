package idempotency

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/auth"
	"github.com/relayq/relayq/app/cache"
	"github.com/relayq/relayq/app/entity"
)

const contextKey = "idempotency.key"

// KeyFromEcho returns the idempotency key the Middleware attached.
func KeyFromEcho(c echo.Context) string {
	key, _ := c.Get(contextKey).(string)
	return key
}

// Middleware is the request-dedup gate in front of the submit route.
// It reserves the derived key atomically for new requests, replays the
// stored response for retries, and rejects conflicting or foreign reuse
// of a key.
func Middleware(logger *logrus.Logger, store cache.Cache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodPost {
				return next(c)
			}

			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))

			var payload struct {
				RecipientEmail string `json:"recipientEmail"`
				Subject        string `json:"subject"`
				Body           string `json:"body"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			}

			requestHash := HashRequest(payload.RecipientEmail, payload.Subject, payload.Body)
			key := DeriveKey(c.Request().Header.Get(HeaderKey), requestHash)
			c.Set(contextKey, key)

			identity, _ := auth.FromContext(c)
			ctx := c.Request().Context()

			existing, err := store.Get(ctx, CacheKey(key))
			if err == nil {
				var record entity.StatusRecord
				if err := json.Unmarshal(existing, &record); err != nil {
					logger.WithError(err).Error("corrupt idempotency record")
					return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
				return replay(c, identity, &record, requestHash)
			}
			if err != cache.ErrNotFound {
				// Cache trouble must not block submission; the gate is
				// best-effort at that point.
				logger.WithError(err).Error("idempotency lookup failed")
				return next(c)
			}

			reservation := entity.StatusRecord{
				SenderEmail: identity.Email,
				Status:      entity.StatusQueued,
				RequestHash: requestHash,
				Message:     "Email queued",
				StatusCode:  entity.CodeAccepted,
				CreatedAt:   time.Now().UTC(),
			}
			value, err := json.Marshal(&reservation)
			if err != nil {
				return err
			}

			ok, err := store.SetNX(ctx, CacheKey(key), value, ReservationTTL*time.Second)
			if err != nil {
				logger.WithError(err).Error("idempotency reservation failed")
				return next(c)
			}
			if !ok {
				// Lost the race against an identical concurrent submission.
				current, err := store.Get(ctx, CacheKey(key))
				if err != nil {
					return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
				var record entity.StatusRecord
				if err := json.Unmarshal(current, &record); err != nil {
					return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
				return replay(c, identity, &record, requestHash)
			}

			return next(c)
		}
	}
}

// replay answers a request whose key is already reserved: a conflict for a
// different payload, unauthorized for a different requester, the stored
// response verbatim for terminal records, and the in-flight status
// otherwise. No job is enqueued on any of these paths.
func replay(c echo.Context, identity auth.Identity, record *entity.StatusRecord, requestHash string) error {
	if record.RequestHash != requestHash {
		return c.JSON(entity.CodeConflict, map[string]string{
			"error":   "Idempotency key conflict",
			"message": "Key already used for different request",
		})
	}
	if identity.Email != record.SenderEmail {
		return c.JSON(entity.CodeUnauthorized, map[string]string{
			"error":   "Unauthorized",
			"message": "Unauthorized",
		})
	}
	return c.JSON(record.StatusCode, record)
}
