package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idscan/internal/connectivity"
	"idscan/internal/export"
	"idscan/internal/httpmiddleware"
	"idscan/internal/scanner"
	"idscan/internal/session"
)

// HealthChecker reports reachability of the recognition service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler serves the operator surface: session lifecycle, live scanner
// status, the record list, and CSV export.
type Handler struct {
	store      *session.Store
	loop       *scanner.Loop
	monitor    *connectivity.Monitor
	recognizer HealthChecker
}

// New creates a handler.
func New(store *session.Store, loop *scanner.Loop, monitor *connectivity.Monitor, recognizer HealthChecker) *Handler {
	return &Handler{store: store, loop: loop, monitor: monitor, recognizer: recognizer}
}

// Router builds the gin engine with the full middleware chain.
func (h *Handler) Router(rateLimitPerMin int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.Default())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(rateLimitPerMin, rateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/session", h.StartSession)
	v1.GET("/session", h.GetSession)
	v1.DELETE("/session", h.ResetSession)
	v1.GET("/records", h.ListRecords)
	v1.GET("/export", h.Export)
	return r
}

// Healthz reports store, connectivity and recognizer health. Only a broken
// store is fatal to the daemon; an unreachable recognizer is the offline
// case and stays advisory.
func (h *Handler) Healthz(c *gin.Context) {
	dbHealthy := h.store.Healthy()

	recognizerHealthy := false
	if h.recognizer != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		recognizerHealthy = h.recognizer.Health(ctx) == nil
	}

	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     "ok",
		"db":         dbHealthy,
		"online":     h.monitor.Online(),
		"recognizer": recognizerHealthy,
	})
}

// StartSession begins a new session for the chosen slot. The scan loop
// stays idle until a session exists.
func (h *Handler) StartSession(c *gin.Context) {
	var req struct {
		SlotName string `json:"slot_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.Start(req.SlotName); err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			c.JSON(http.StatusConflict, gin.H{"error": "session already active, reset first"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"slot_name": req.SlotName})
}

// GetSession returns the session summary plus live scanner status.
func (h *Handler) GetSession(c *gin.Context) {
	sess := h.store.Snapshot()
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{
			"active": false,
			"online": h.monitor.Online(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":     true,
		"slot_name":  sess.SlotName,
		"records":    len(sess.Records),
		"last_saved": sess.LastSaved,
		"online":     h.monitor.Online(),
		"scanner":    h.loop.Status(),
	})
}

// ResetSession clears all session state. Refused while a scan is in flight.
func (h *Handler) ResetSession(c *gin.Context) {
	if err := h.loop.Reset(); err != nil {
		if errors.Is(err, scanner.ErrScanInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ListRecords returns the session's records, newest first.
func (h *Handler) ListRecords(c *gin.Context) {
	sess := h.store.Snapshot()
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"records": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": sess.Records})
}

// Export streams the session as a CSV attachment. An empty session is a
// conflict, not an empty file.
func (h *Handler) Export(c *gin.Context) {
	sess := h.store.Snapshot()
	data, err := export.CSV(sess)
	if err != nil {
		if errors.Is(err, export.ErrEmptySession) {
			c.JSON(http.StatusConflict, gin.H{"error": "no records to export"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := export.Filename(sess.SlotName, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv", data)
}

// securityHeaders sets the standard hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
