package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{name: "generated when missing", header: "", reuse: false},
		{name: "reused when valid", header: "abc-123", reuse: true},
		{name: "replaced when too long", header: strings.Repeat("a", 200), reuse: false},
		{name: "replaced when not printable", header: "bad id", reuse: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			router := gin.New()
			router.Use(RequestID())
			router.GET("/x", func(c *gin.Context) {
				seen = RequestIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if got == "" || got != seen {
				t.Fatalf("header %q does not match context %q", got, seen)
			}
			if tt.reuse && got != tt.header {
				t.Fatalf("expected %q to be reused, got %q", tt.header, got)
			}
			if !tt.reuse && got == tt.header {
				t.Fatalf("expected a generated id, got %q", got)
			}
		})
	}
}
