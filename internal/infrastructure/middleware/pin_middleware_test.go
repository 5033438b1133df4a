package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"playcast/pkg/logger"
	"playcast/pkg/settings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func pinRouter(t *testing.T, pin string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := settings.Default()
	cfg.PIN = pin
	store := settings.NewStore(cfg)

	router := gin.New()
	router.Use(PINGuardMiddleware(store, zaptest.NewLogger(t).Sugar()))
	router.PUT("/guarded", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestPINGuard_EmptyPINDisablesGuard(t *testing.T) {
	router := pinRouter(t, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/guarded", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 without guard, got %d", w.Code)
	}
}

func TestPINGuard_RejectsMissingAndWrongPIN(t *testing.T) {
	router := pinRouter(t, "4821")

	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest(http.MethodPut, "/guarded", nil)
	router.ServeHTTP(w1, req1)
	if w1.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without pin, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodPut, "/guarded", nil)
	req2.Header.Set("X-Playcast-PIN", "0000")
	router.ServeHTTP(w2, req2)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 with wrong pin, got %d", w2.Code)
	}
}

func TestPINGuard_AcceptsHeaderAndQuery(t *testing.T) {
	router := pinRouter(t, "4821")

	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest(http.MethodPut, "/guarded", nil)
	req1.Header.Set("X-Playcast-PIN", "4821")
	router.ServeHTTP(w1, req1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected status 200 with pin header, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodPut, "/guarded?pin=4821", nil)
	router.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected status 200 with pin query, got %d", w2.Code)
	}
}

func TestRequestIDMiddleware_GeneratesAndEchoesID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	w1 := httptest.NewRecorder()
	req1, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w1, req1)
	if w1.Body.String() == "" {
		t.Fatal("expected generated request id")
	}
	if got := w1.Header().Get("X-Request-ID"); got != w1.Body.String() {
		t.Fatalf("header id %q does not match context id %q", got, w1.Body.String())
	}

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("X-Request-ID", "req-fixed")
	router.ServeHTTP(w2, req2)
	if w2.Body.String() != "req-fixed" {
		t.Fatalf("expected client-supplied id to survive, got %q", w2.Body.String())
	}
}

func TestRequestIDMiddleware_PropagatesIntoRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, id)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-ctx")
	router.ServeHTTP(w, req)
	if w.Body.String() != "req-ctx" {
		t.Fatalf("request context id = %q, want req-ctx", w.Body.String())
	}
}
