package middlewares

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		allowed   []string
		origin    string
		method    string
		wantAllow string
		wantCode  int
	}{
		{name: "listed origin", allowed: []string{"http://app.local/"}, origin: "http://app.local", method: http.MethodGet, wantAllow: "http://app.local", wantCode: http.StatusOK},
		{name: "unlisted origin", allowed: []string{"http://app.local"}, origin: "http://evil.local", method: http.MethodGet, wantAllow: "", wantCode: http.StatusOK},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.local", method: http.MethodGet, wantAllow: "*", wantCode: http.StatusOK},
		{name: "preflight", allowed: []string{"http://app.local"}, origin: "http://app.local", method: http.MethodOptions, wantAllow: "http://app.local", wantCode: http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORSMiddleware(tc.allowed))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tc.method, "/x", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("got status %d, want %d", w.Code, tc.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tc.wantAllow)
			}
			if tc.wantAllow == "*" && w.Header().Get("Access-Control-Allow-Credentials") != "" {
				t.Fatal("wildcard origin must not allow credentials")
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"Strict-Transport-Security": hsts,
		"Cache-Control":             "no-store",
	} {
		if got := w.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMaxBodyBytesRejectsDeclaredLength(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString(`{"title":"far too long"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if !strings.Contains(w.Body.String(), `"statusCode":413`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRequestIDValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "kept", incoming: "abc-123", keep: true},
		{name: "missing", incoming: "", keep: false},
		{name: "spaces", incoming: "abc 123", keep: false},
		{name: "too long", incoming: strings.Repeat("a", maxRequestIDLen+1), keep: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.incoming != "" {
				req.Header.Set(requestIDHeader, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" {
				t.Fatal("response has no request id")
			}
			if (got == tc.incoming) != tc.keep {
				t.Fatalf("request id %q, incoming %q, keep=%v", got, tc.incoming, tc.keep)
			}
		})
	}
}
