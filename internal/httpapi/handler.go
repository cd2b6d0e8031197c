package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/clock"
	"qrattend/internal/logger"
	"qrattend/internal/metrics"
	"qrattend/internal/token"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler maps the attendance core onto JSON endpoints.
type Handler struct {
	issuer   *token.Issuer
	tokens   *token.Repository
	recorder *attendance.Recorder
	ledger   *attendance.Repository
	checks   map[string]HealthCheck
}

func New(issuer *token.Issuer, tokens *token.Repository, recorder *attendance.Recorder, ledger *attendance.Repository, checks map[string]HealthCheck) *Handler {
	return &Handler{issuer: issuer, tokens: tokens, recorder: recorder, ledger: ledger, checks: checks}
}

// Register mounts the API routes; signingKey/issuer configure identity checks.
func (h *Handler) Register(r gin.IRouter, signingKey, issuer string) {
	r.GET("/healthz", h.Healthz)

	teacher := r.Group("/v1", auth.Require(signingKey, issuer, auth.RoleTeacher))
	teacher.POST("/tokens", h.IssueToken)
	teacher.POST("/tokens/:value/expire", h.ExpireToken)
	teacher.GET("/attendance", h.ListAttendance)
	teacher.GET("/students/:id/attendance", h.StudentHistory)

	student := r.Group("/v1", auth.Require(signingKey, issuer, auth.RoleStudent))
	student.POST("/attendance", h.SubmitAttendance)
	student.GET("/attendance/me", h.MyHistory)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Tokens ----------

type issueRequest struct {
	TTLSeconds int `json:"ttl_seconds" binding:"omitempty,min=1,max=86400"`
}

type tokenResponse struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

func (h *Handler) IssueToken(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok, err := h.issuer.Issue(c.Request.Context(), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		storageFailure(c, "issue token", err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{
		Value:     tok.Value,
		CreatedAt: tok.CreatedAt,
		ExpiresAt: tok.ExpiresAt,
		ExpiresIn: int(tok.ExpiresAt.Sub(tok.CreatedAt) / time.Second),
	})
}

func (h *Handler) ExpireToken(c *gin.Context) {
	flipped, err := h.tokens.Expire(c.Request.Context(), c.Param("value"))
	if err != nil {
		storageFailure(c, "expire token", err)
		return
	}
	if flipped {
		metrics.TokensExpired.WithLabelValues(metrics.TriggerExplicit).Inc()
	}
	c.Status(http.StatusNoContent)
}

// ---------- Attendance ----------

type submitRequest struct {
	Token string `json:"token"`
}

type submitResponse struct {
	Status string             `json:"status"`
	Reason string             `json:"reason,omitempty"`
	Record *attendance.Record `json:"record,omitempty"`
}

func (h *Handler) SubmitAttendance(c *gin.Context) {
	id, _ := auth.FromContext(c)

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.recorder.Submit(c.Request.Context(), id.ID, req.Token)
	if err != nil {
		storageFailure(c, "submit attendance", err)
		return
	}
	c.JSON(outcomeStatus(out), submitResponse{Status: string(out.Result), Reason: out.Reason, Record: out.Record})
}

func outcomeStatus(out attendance.Outcome) int {
	switch {
	case out.Result == attendance.Recorded:
		return http.StatusCreated
	case errors.Is(out.Err, attendance.ErrConflict):
		return http.StatusConflict
	case errors.Is(out.Err, attendance.ErrAuthorization):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) MyHistory(c *gin.Context) {
	id, _ := auth.FromContext(c)
	h.history(c, id.ID)
}

func (h *Handler) StudentHistory(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || studentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return
	}
	h.history(c, studentID)
}

func (h *Handler) history(c *gin.Context, studentID int64) {
	records, err := h.ledger.History(c.Request.Context(), studentID)
	if err != nil {
		storageFailure(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) ListAttendance(c *gin.Context) {
	date := c.Query("date")
	if date != "" {
		if _, err := time.Parse(clock.DateLayout, date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}
	records, err := h.ledger.All(c.Request.Context(), date)
	if err != nil {
		storageFailure(c, "list attendance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func storageFailure(c *gin.Context, op string, err error) {
	logger.Log.WithError(err).WithField("op", op).Error("request failed on storage")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
}
