package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterDispatchesMediaRequests(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://media.local/media?key=https://cdn.example.com/a.mp4", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 204 status, got %d (body=%s)", resp.StatusCode, string(body))
	}
	if app.media.served != 1 {
		t.Fatalf("expected media handler to be called once, got %d", app.media.served)
	}
	if app.media.lastRequestID == "" {
		t.Fatalf("expected request id to be available to handler")
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRouterDispatchesKill(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("DELETE", "http://media.local/media?key=a", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
	if app.media.killed != 1 {
		t.Fatalf("expected kill handler to be called once")
	}
}

func TestRouterReturns404WhenRouteUnknown(t *testing.T) {
	app := newTestApp(t, 5000)

	req := httptest.NewRequest("GET", "http://media.local/v2/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"route_unmapped"`)) {
		t.Fatalf("expected route_unmapped error, got %s", string(body))
	}
}

func TestRouterPassesDiagnosticsThrough(t *testing.T) {
	app := newTestApp(t, 5000)
	app.Get("/-/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://media.local/-/ping", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if _, err := NewApp(AppOptions{Media: &mediaRecorder{}, ListenPort: 5000}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 5000}); err == nil {
		t.Fatalf("missing media handler should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Media: &mediaRecorder{}}); err == nil {
		t.Fatalf("invalid port should fail")
	}
}

type testApp struct {
	*fiber.App
	media *mediaRecorder
}

func newTestApp(t *testing.T, port int) *testApp {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	recorder := &mediaRecorder{}
	app, err := NewApp(AppOptions{
		Logger:     logger,
		Media:      recorder,
		ListenPort: port,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	return &testApp{App: app, media: recorder}
}

type mediaRecorder struct {
	served        int
	killed        int
	lastRequestID string
}

func (m *mediaRecorder) Serve(c fiber.Ctx) error {
	m.served++
	m.lastRequestID = RequestID(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (m *mediaRecorder) Kill(c fiber.Ctx) error {
	m.killed++
	return c.SendStatus(fiber.StatusNoContent)
}
