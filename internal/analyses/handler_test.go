package analyses

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/server/middleware"
)

func setupAnalysisRouter(t *testing.T, prov *fakeProvider, ext *fakeExtractor) (*gin.Engine, *countingKV) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kvStore := newCountingKV()
	records := NewRecordStore(kvStore)
	runs := NewManager(func(observer Observer) *Orchestrator {
		return NewOrchestrator(Deps{
			Converter: &fakeConverter{},
			Extractor: ext,
			Provider:  prov,
			Records:   records,
		}, WithObserver(observer), WithInvokeTimeout(50*time.Millisecond))
	}, records)

	router := gin.New()
	router.Use(middleware.RequestID())
	NewHandler(runs, prov).RegisterRoutes(router.Group("/api/v1"))
	return router, kvStore
}

func uploadRequest(t *testing.T, fields map[string]string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if content != nil {
		part, err := w.CreateFormFile("file", "resume.pdf")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func startAnalysis(t *testing.T, router *gin.Engine, fields map[string]string) string {
	t.Helper()
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, uploadRequest(t, fields, []byte("%PDF-1.4 fake")))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		AnalysisID string `json:"analysisId"`
		Status     View   `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.AnalysisID == "" || created.Status.AnalysisID != created.AnalysisID {
		t.Fatalf("unexpected start response: %+v", created)
	}
	return created.AnalysisID
}

func waitForStage(t *testing.T, router *gin.Engine, id string, want Stage) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var view View
	for time.Now().Before(deadline) {
		resp := serve(router, http.MethodGet, "/api/v1/analyses/"+id+"/status")
		if resp.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", resp.Code)
		}
		view = View{}
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if view.Stage == want {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stage %s not reached, last view %+v", want, view)
	return view
}

func TestStartAnalysisAndFetchRecord(t *testing.T) {
	prov := &fakeProvider{}
	router, kvStore := setupAnalysisRouter(t, prov, &fakeExtractor{text: resumeText})
	prov.results = []providerResult{{raw: "```json\n" + sampleJSON(t) + "\n```"}}

	id := startAnalysis(t, router, map[string]string{
		"companyName":    "Acme",
		"jobTitle":       "Platform Engineer",
		"jobDescription": "Kubernetes and Go",
	})
	view := waitForStage(t, router, id, StageSucceeded)
	if view.StatusText != "Analysis complete" {
		t.Fatalf("unexpected status text %q", view.StatusText)
	}

	resp := serve(router, http.MethodGet, "/api/v1/analyses/"+id)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got struct {
		ID          string `json:"id"`
		CompanyName string `json:"companyName"`
		Report      *struct {
			OverallScore int `json:"overallScore"`
		} `json:"report"`
		Insights *struct {
			FitScore int    `json:"fitScore"`
			FitLabel string `json:"fitLabel"`
		} `json:"insights"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got.ID != id || got.CompanyName != "Acme" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Report == nil || got.Report.OverallScore != 75 {
		t.Fatalf("expected overallScore 75")
	}
	if got.Insights == nil || got.Insights.FitLabel == "" {
		t.Fatalf("expected insights")
	}
	if kvStore.Puts() != 2 {
		t.Fatalf("expected 2 puts, got %d", kvStore.Puts())
	}
}

func TestStartAnalysisValidation(t *testing.T) {
	router, _ := setupAnalysisRouter(t, &fakeProvider{}, &fakeExtractor{text: resumeText})

	tests := []struct {
		name    string
		fields  map[string]string
		content []byte
	}{
		{name: "missing file", fields: map[string]string{"jobTitle": "x"}, content: nil},
		{name: "empty file", fields: nil, content: []byte{}},
		{name: "bad skip flag", fields: map[string]string{"skipAnalysis": "maybe"}, content: []byte("%PDF")},
		{name: "unsupported type", fields: nil, content: []byte("just some plain text")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, uploadRequest(t, tt.fields, tt.content))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if body.Error.Code != "validation_error" {
				t.Fatalf("unexpected code %q", body.Error.Code)
			}
		})
	}
}

func TestSkipAnalysisFlag(t *testing.T) {
	prov := &fakeProvider{}
	router, kvStore := setupAnalysisRouter(t, prov, &fakeExtractor{text: resumeText})

	id := startAnalysis(t, router, map[string]string{"skipAnalysis": "true"})
	view := waitForStage(t, router, id, StageSucceeded)
	if !view.Skipped {
		t.Fatalf("expected skipped view: %+v", view)
	}
	if prov.Calls() != 0 || kvStore.Puts() != 1 {
		t.Fatalf("unexpected calls: provider=%d puts=%d", prov.Calls(), kvStore.Puts())
	}

	resp := serve(router, http.MethodGet, "/api/v1/analyses/"+id)
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if v, ok := got["report"]; !ok || v != nil {
		t.Fatalf("expected explicit null report, got %v", got["report"])
	}
	if _, ok := got["insights"]; ok {
		t.Fatalf("insights should be omitted without a report")
	}
}

func TestFailedRunSkipOverHTTP(t *testing.T) {
	prov := &fakeProvider{}
	router, _ := setupAnalysisRouter(t, prov, &fakeExtractor{text: "too short"})

	id := startAnalysis(t, router, nil)
	view := waitForStage(t, router, id, StageFailed)
	if view.Category != CategoryEmptyText || !view.CanSkip || !view.CanRetry {
		t.Fatalf("unexpected failed view: %+v", view)
	}

	resp := serve(router, http.MethodPost, "/api/v1/analyses/"+id+"/skip")
	if resp.Code != http.StatusOK {
		t.Fatalf("skip: expected 200, got %d", resp.Code)
	}
	waitForStage(t, router, id, StageSucceeded)

	resp = serve(router, http.MethodPost, "/api/v1/analyses/"+id+"/retry")
	if resp.Code != http.StatusConflict {
		t.Fatalf("retry after success: expected 409, got %d", resp.Code)
	}
	if prov.Calls() != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestRetryOverHTTP(t *testing.T) {
	prov := &fakeProvider{}
	router, _ := setupAnalysisRouter(t, prov, &fakeExtractor{text: resumeText})
	prov.results = []providerResult{{raw: "oops"}, {raw: sampleJSON(t)}}

	id := startAnalysis(t, router, nil)
	view := waitForStage(t, router, id, StageFailed)
	if view.Category != CategoryParse || view.RawPreview != "oops" {
		t.Fatalf("unexpected failed view: %+v", view)
	}

	resp := serve(router, http.MethodPost, "/api/v1/analyses/"+id+"/retry")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("retry: expected 202, got %d", resp.Code)
	}
	waitForStage(t, router, id, StageSucceeded)
	if prov.Calls() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", prov.Calls())
	}
}

func TestCancelOverHTTP(t *testing.T) {
	prov := &fakeProvider{results: []providerResult{{raw: "oops"}}}
	router, _ := setupAnalysisRouter(t, prov, &fakeExtractor{text: resumeText})

	id := startAnalysis(t, router, nil)
	waitForStage(t, router, id, StageFailed)

	resp := serve(router, http.MethodPost, "/api/v1/analyses/"+id+"/cancel")
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.Code)
	}
	view := waitForStage(t, router, id, StageIdle)
	if view.StatusText != "Analysis cancelled" {
		t.Fatalf("unexpected status text %q", view.StatusText)
	}

	resp = serve(router, http.MethodPost, "/api/v1/analyses/"+id+"/cancel")
	if resp.Code != http.StatusConflict {
		t.Fatalf("second cancel: expected 409, got %d", resp.Code)
	}
}

func TestUnknownAnalysis(t *testing.T) {
	router, _ := setupAnalysisRouter(t, &fakeProvider{}, &fakeExtractor{text: resumeText})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/analyses/nope"},
		{http.MethodGet, "/api/v1/analyses/nope/status"},
		{http.MethodPost, "/api/v1/analyses/nope/retry"},
		{http.MethodPost, "/api/v1/analyses/nope/skip"},
		{http.MethodPost, "/api/v1/analyses/nope/cancel"},
	}
	for _, p := range paths {
		if resp := serve(router, p.method, p.path); resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", p.method, p.path, resp.Code)
		}
	}
}

func TestProviderStatusRoute(t *testing.T) {
	prov := &fakeProvider{unconfigured: true}
	router, _ := setupAnalysisRouter(t, prov, &fakeExtractor{text: resumeText})

	resp := serve(router, http.MethodGet, "/api/v1/provider")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status struct {
		Provider   string `json:"provider"`
		Model      string `json:"model"`
		Configured bool   `json:"configured"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Provider != "fake" || status.Model != "fake-1" || status.Configured {
		t.Fatalf("unexpected status: %+v", status)
	}
}
