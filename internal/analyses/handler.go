package analyses

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind-backend/internal/document"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/report"
	"resumind-backend/internal/shared/server/middleware"
	"resumind-backend/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20

// Handler wires HTTP handlers to the run manager.
type Handler struct {
	Runs     *Manager
	Provider llm.Provider
}

// NewHandler constructs a Handler.
func NewHandler(runs *Manager, provider llm.Provider) *Handler {
	return &Handler{Runs: runs, Provider: provider}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/provider", h.providerStatus)
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/status", h.getStatus)
	rg.POST("/analyses/:id/retry", h.retry)
	rg.POST("/analyses/:id/skip", h.skip)
	rg.POST("/analyses/:id/cancel", h.cancel)
}

type recordResponse struct {
	Record
	Insights *report.Insights `json:"insights,omitempty"`
}

func (h *Handler) providerStatus(c *gin.Context) {
	respond.OK(c, llm.StatusOf(h.Provider))
}

func (h *Handler) startAnalysis(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read file", nil)
		return
	}

	skip := false
	if raw := strings.TrimSpace(c.PostForm("skipAnalysis")); raw != "" {
		skip, err = strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "skipAnalysis must be a boolean", []map[string]string{
				{"field": "skipAnalysis", "issue": "invalid_boolean"},
			})
			return
		}
	}

	req := Request{
		Document: document.Document{
			Name:     fileHeader.Filename,
			MimeType: fileHeader.Header.Get("Content-Type"),
			Data:     data,
		},
		CompanyName:    c.PostForm("companyName"),
		JobTitle:       c.PostForm("jobTitle"),
		JobDescription: c.PostForm("jobDescription"),
		SkipAnalysis:   skip,
	}

	view, err := h.Runs.Start(h.requestContext(c), req)
	if err != nil {
		h.writeError(c, err, "failed to start analysis")
		return
	}
	c.Set("analysisId", view.AnalysisID)
	c.Set("statusTransition", "->"+string(view.Stage))

	respond.Accepted(c, gin.H{
		"analysisId": view.AnalysisID,
		"status":     view,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)

	rec, err := h.Runs.Record(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to fetch analysis")
		return
	}
	resp := recordResponse{Record: rec}
	if rec.Report != nil {
		insights := report.Derive(*rec.Report)
		resp.Insights = &insights
	}
	respond.OK(c, resp)
}

func (h *Handler) getStatus(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)

	view, err := h.Runs.Status(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to fetch analysis status")
		return
	}
	respond.OK(c, view)
}

func (h *Handler) retry(c *gin.Context) {
	h.transition(c, http.StatusAccepted, "retry", h.Runs.Retry)
}

func (h *Handler) skip(c *gin.Context) {
	h.transition(c, http.StatusOK, "skip", h.Runs.Skip)
}

func (h *Handler) cancel(c *gin.Context) {
	h.transition(c, http.StatusOK, "cancel", h.Runs.Cancel)
}

func (h *Handler) transition(c *gin.Context, status int, action string, fn func(context.Context, string) (View, error)) {
	id := c.Param("id")
	c.Set("analysisId", id)

	view, err := fn(h.requestContext(c), id)
	if err != nil {
		h.writeError(c, err, "failed to "+action+" analysis")
		return
	}
	c.Set("statusTransition", action+"->"+string(view.Stage))
	respond.JSON(c, status, view)
}

func (h *Handler) requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "analysis not found", nil)
		return
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, respond.CodeInvalidTransition, "action not allowed in the current state", nil)
		return
	}
	if perr, ok := AsError(err); ok {
		if perr.Category == CategoryValidation {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, perr.Message, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, string(perr.Category)+"_error", perr.Message, nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, fallback, nil)
}
