package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/telemetry"
)

func TestBuildWiresRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := telemetry.SetOutput(io.Discard)
	defer restore()

	dir := t.TempDir()
	cfg := config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   dir,
		RecordStore:     "sqlite",
		SQLitePath:      filepath.Join(dir, "records.db"),
		LLMProvider:     "openai",
	}
	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	tests := []struct {
		path   string
		status int
	}{
		{path: "/api/v1/health", status: http.StatusOK},
		{path: "/api/v1/provider", status: http.StatusOK},
		{path: "/api/v1/analyses/missing", status: http.StatusNotFound},
		{path: "/metrics", status: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		resp := httptest.NewRecorder()
		app.Router.ServeHTTP(resp, req)
		if resp.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d", tt.path, tt.status, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/provider", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	var status struct {
		Provider   string `json:"provider"`
		Configured bool   `json:"configured"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode provider status: %v", err)
	}
	if status.Provider != "openai" || status.Configured {
		t.Fatalf("unexpected provider status: %+v", status)
	}
}

func TestBuildUnknownProviderIsUnconfigured(t *testing.T) {
	restore := telemetry.SetOutput(io.Discard)
	defer restore()

	app, err := Build(context.Background(), config.Config{
		LocalStoreDir: t.TempDir(),
		RecordStore:   "memory",
		LLMProvider:   "mystery",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if app.Provider.IsConfigured() {
		t.Fatalf("expected unconfigured provider")
	}
	if app.Provider.Name() != "mystery" {
		t.Fatalf("unexpected provider name: %q", app.Provider.Name())
	}
}

func TestBuildRejectsIncompleteStores(t *testing.T) {
	restore := telemetry.SetOutput(io.Discard)
	defer restore()

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "postgres without url", cfg: config.Config{RecordStore: "postgres", LocalStoreDir: t.TempDir()}},
		{name: "s3 without bucket", cfg: config.Config{ObjectStoreType: "s3", RecordStore: "memory"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(context.Background(), tt.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
