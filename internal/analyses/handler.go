package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"screenplay-backend/internal/progress"
	"screenplay-backend/internal/shared/server/middleware"
	"screenplay-backend/internal/shared/server/respond"
)

// SSE stream pacing.
const (
	streamTick      = 1 * time.Second
	streamHeartbeat = 5 * time.Second
	streamMaxAge    = 5 * time.Minute
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
	limiter        *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{
		Svc:            svc,
		MaxUploadBytes: maxUploadBytes,
		limiter:        newPollLimiter(0, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createFromUpload)
	rg.POST("/analyses/text", h.createFromText)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.GET("/analyses/:id/progress", h.getProgress)
	rg.GET("/analyses/:id/progress/stream", h.streamProgress)
}

func (h *Handler) createFromUpload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if fileHeader.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "file exceeds the upload limit", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	sub := Submission{
		Title: c.PostForm("title"),
		Genre: c.PostForm("genre"),
	}
	if raw := c.PostForm("budget"); raw != "" {
		budget, err := strconv.ParseFloat(raw, 64)
		if err != nil || budget < 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "budget must be a non-negative number of US dollars", nil)
			return
		}
		sub.BudgetUSD = &budget
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.CreateFromUpload(ctx, userID, sub, fileHeader.Filename, file)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

type createTextRequest struct {
	Title     string   `json:"title"`
	Genre     string   `json:"genre"`
	BudgetUSD *float64 `json:"budgetUsd"`
	Text      string   `json:"text"`
}

func (h *Handler) createFromText(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	var req createTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	if req.BudgetUSD != nil && *req.BudgetUSD < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "budgetUsd must be non-negative", nil)
		return
	}

	sub := Submission{Title: req.Title, Genre: req.Genre, BudgetUSD: req.BudgetUSD}
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.CreateFromText(ctx, userID, sub, req.Text)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) writeCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTextTooShort):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrSpendCeiling):
		respond.Error(c, http.StatusTooManyRequests, "budget_exceeded", "monthly analysis budget reached, try again next month", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
	}
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	analyses, err := h.Svc.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"analyses": analyses})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	analysis, err := h.Svc.GetForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}
	respond.OK(c, analysis)
}

func (h *Handler) getProgress(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	analysisID := c.Param("id")

	if !h.limiter.Allow(userID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "progress polled too frequently", nil)
		return
	}

	analysis, err := h.Svc.GetForUser(c.Request.Context(), analysisID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}

	respond.OK(c, h.progressSnapshot(c, analysis))
}

// progressSnapshot reads live progress, falling back to a synthetic state
// derived from the persisted status when the tracker has evicted the job.
func (h *Handler) progressSnapshot(c *gin.Context, analysis Analysis) progress.State {
	if h.Svc.Progress != nil {
		if state, ok, err := h.Svc.Progress.Get(c.Request.Context(), analysis.ID); err == nil && ok {
			return state
		}
	}
	state := progress.State{
		AnalysisID: analysis.ID,
		Status:     analysis.Status,
		UpdatedAt:  analysis.UpdatedAt,
	}
	switch analysis.Status {
	case StatusCompleted:
		state.Stage = progress.StageComplete
		state.Percent = 100
	case StatusFailed:
		state.Stage = progress.StageFailed
		state.Percent = 100
		if analysis.ErrorMessage != nil {
			state.Message = *analysis.ErrorMessage
		}
	default:
		state.Stage = progress.StageStarting
		state.Percent = 5
	}
	return state
}

// streamProgress pushes progress over SSE until the job is terminal, the
// client disconnects, or the stream ages out.
func (h *Handler) streamProgress(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	analysis, err := h.Svc.GetForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(streamTick)
	defer ticker.Stop()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	deadline := time.NewTimer(streamMaxAge)
	defer deadline.Stop()

	// Send the current snapshot immediately so clients render without
	// waiting for the first tick.
	state := h.progressSnapshot(c, analysis)
	c.SSEvent("progress", state)
	c.Writer.Flush()
	if state.Terminal() {
		return
	}

	lastSent := state
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-deadline.C:
			c.SSEvent("timeout", gin.H{"analysisId": analysis.ID})
			c.Writer.Flush()
			return
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"ts": time.Now().UTC().Format(time.RFC3339)})
			c.Writer.Flush()
		case <-ticker.C:
			current, err := h.Svc.GetForUser(c.Request.Context(), analysis.ID, userID)
			if err != nil {
				return
			}
			state := h.progressSnapshot(c, current)
			if state != lastSent {
				c.SSEvent("progress", state)
				c.Writer.Flush()
				lastSent = state
			}
			if state.Terminal() {
				return
			}
		}
	}
}
