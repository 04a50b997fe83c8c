package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func resolve(t *testing.T, req *http.Request) (Identity, string) {
	t.Helper()

	e := echo.New()
	var identity Identity
	var body string
	handler := Middleware()(func(c echo.Context) error {
		identity, _ = FromContext(c)
		raw, _ := io.ReadAll(c.Request().Body)
		body = string(raw)
		return c.NoContent(http.StatusOK)
	})

	c := e.NewContext(req, httptest.NewRecorder())
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	return identity, body
}

func TestMiddlewareResolvesFromBody(t *testing.T) {
	t.Parallel()

	payload := `{"senderEmail":"sender@test.com","subject":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/email/send", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	identity, body := resolve(t, req)
	if identity.Email != "sender@test.com" {
		t.Fatalf("expected the body sender, got %q", identity.Email)
	}
	if body != payload {
		t.Fatalf("expected the body restored for later binding, got %q", body)
	}
}

func TestMiddlewareFallsBackToQueryParam(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/email/status/k?senderEmail=q@test.com", nil)
	identity, _ := resolve(t, req)
	if identity.Email != "q@test.com" {
		t.Fatalf("expected the query param sender, got %q", identity.Email)
	}
}

func TestMiddlewareBodyWinsOverQueryParam(t *testing.T) {
	t.Parallel()

	payload := `{"senderEmail":"body@test.com"}`
	req := httptest.NewRequest(http.MethodPost, "/email/send?senderEmail=query@test.com", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	identity, _ := resolve(t, req)
	if identity.Email != "body@test.com" {
		t.Fatalf("expected the body sender to win, got %q", identity.Email)
	}
}

func TestSetIdentityRoundTrip(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if _, ok := FromContext(c); ok {
		t.Fatal("expected no identity before SetIdentity")
	}
	SetIdentity(c, Identity{Email: "x@test.com", Role: "admin"})
	identity, ok := FromContext(c)
	if !ok || identity.Email != "x@test.com" {
		t.Fatalf("expected the stored identity, got %+v ok=%v", identity, ok)
	}
}
