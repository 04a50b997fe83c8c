package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/auth"
	"github.com/relayq/relayq/app/cache"
	"github.com/relayq/relayq/app/entity"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

const submitBody = `{"senderEmail":"sender@test.com","recipientEmail":"t@test.com","subject":"s","body":"b"}`

func invoke(t *testing.T, store cache.Cache, body, headerKey, identityEmail string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/email/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if headerKey != "" {
		req.Header.Set(HeaderKey, headerKey)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	auth.SetIdentity(c, auth.Identity{Email: identityEmail, Role: "admin"})

	handler := Middleware(testLogger(), store)(next)
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return rec
}

func storedRecord(t *testing.T, store cache.Cache, key string) entity.StatusRecord {
	t.Helper()

	data, err := store.Get(context.Background(), CacheKey(key))
	if err != nil {
		t.Fatalf("Get reservation: %v", err)
	}
	var record entity.StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode reservation: %v", err)
	}
	return record
}

func TestMiddlewareReservesNewKey(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	nextCalled := false

	rec := invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		nextCalled = true
		if got := KeyFromEcho(c); got != "client-key" {
			t.Fatalf("expected client-key attached, got %q", got)
		}
		return c.NoContent(http.StatusAccepted)
	})

	if !nextCalled {
		t.Fatal("expected the handler to run for a new key")
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	record := storedRecord(t, store, "client-key")
	if record.Status != entity.StatusQueued {
		t.Fatalf("expected queued reservation, got %s", record.Status)
	}
	if record.SenderEmail != "sender@test.com" {
		t.Fatalf("expected requester recorded, got %q", record.SenderEmail)
	}
	if record.RequestHash == "" {
		t.Fatal("expected a request hash on the reservation")
	}
}

func TestMiddlewareDerivesKeyFromContent(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	var derived string

	invoke(t, store, submitBody, "", "sender@test.com", func(c echo.Context) error {
		derived = KeyFromEcho(c)
		return c.NoContent(http.StatusAccepted)
	})

	wantHash := HashRequest("t@test.com", "s", "b")
	if derived != "auto_"+wantHash {
		t.Fatalf("expected deterministic content key, got %q", derived)
	}
}

func TestMiddlewareConflictOnDifferentPayload(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})
	first := storedRecord(t, store, "client-key")

	otherBody := `{"senderEmail":"sender@test.com","recipientEmail":"t@test.com","subject":"different","body":"b"}`
	rec := invoke(t, store, otherBody, "client-key", "sender@test.com", func(c echo.Context) error {
		t.Fatal("handler must not run on a key conflict")
		return nil
	})

	if rec.Code != entity.CodeConflict {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := storedRecord(t, store, "client-key"); got.RequestHash != first.RequestHash {
		t.Fatal("expected the stored hash to be unchanged after a conflict")
	}
}

func TestMiddlewareUnauthorizedForOtherRequester(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})

	intruderBody := `{"senderEmail":"intruder@test.com","recipientEmail":"t@test.com","subject":"s","body":"b"}`
	rec := invoke(t, store, intruderBody, "client-key", "intruder@test.com", func(c echo.Context) error {
		t.Fatal("handler must not run for a foreign requester")
		return nil
	})

	if rec.Code != entity.CodeUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareReplaysTerminalRecord(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()

	record := entity.StatusRecord{
		SenderEmail: "sender@test.com",
		Status:      entity.StatusSent,
		RequestHash: HashRequest("t@test.com", "s", "b"),
		Message:     "Email sent successfully",
		StatusCode:  entity.CodeSent,
		CreatedAt:   time.Now().UTC(),
	}
	value, _ := json.Marshal(&record)
	if err := store.Set(context.Background(), CacheKey("client-key"), value, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	rec := invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		t.Fatal("handler must not run on a terminal replay")
		return nil
	})

	if rec.Code != entity.CodeSent {
		t.Fatalf("expected the stored status code, got %d", rec.Code)
	}
	var replayed entity.StatusRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replayed.Status != entity.StatusSent || replayed.Message != record.Message {
		t.Fatalf("expected a verbatim replay, got %+v", replayed)
	}
}

func TestMiddlewareReturnsInFlightStatus(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})

	// Identical retry while the job is still queued: no second submission.
	nextCalled := false
	rec := invoke(t, store, submitBody, "client-key", "sender@test.com", func(c echo.Context) error {
		nextCalled = true
		return nil
	})

	if nextCalled {
		t.Fatal("expected the retry to be answered without re-submitting")
	}
	if rec.Code != entity.CodeAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestMiddlewareIgnoresNonPost(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/email/status/key", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	handler := Middleware(testLogger(), cache.NewMemory())(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if !nextCalled {
		t.Fatal("expected non-POST requests to pass through")
	}
}
