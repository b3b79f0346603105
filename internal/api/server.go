// Package api serves the frame's local status and control endpoints.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"fridgeframe/internal/history"
	"fridgeframe/internal/media"
	"fridgeframe/internal/playlog"
	"fridgeframe/internal/slideshow"
	"fridgeframe/internal/thermal"

	"github.com/gin-gonic/gin"
)

const defaultAddr = "127.0.0.1:8088"

// Slideshow is the control surface the API drives; slideshow.Runtime
// satisfies it.
type Slideshow interface {
	Snapshot() slideshow.Snapshot
	Refresh(ctx context.Context) (bool, error)
	SetFilterOverride(ctx context.Context, kind media.Kind) error
	ClearFilterOverride(ctx context.Context) error
}

// Recents lists recent displays.
type Recents interface {
	Entries(limit int) []history.Display
}

// PlayLog reads persisted displays.
type PlayLog interface {
	Recent(limit int) ([]playlog.Entry, error)
}

// Thermal reports the temperature guard.
type Thermal interface {
	Status() thermal.Status
}

// Deps are the collaborators behind the endpoints. Only Slideshow is required.
type Deps struct {
	Slideshow Slideshow
	Recents   Recents
	PlayLog   PlayLog
	Thermal   Thermal
	Session   string
}

// Server provides the HTTP API.
type Server struct {
	addr      string
	deps      Deps
	startTime time.Time
}

// NewServer creates a server for addr; empty means 127.0.0.1:8088.
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = defaultAddr
	}
	return &Server{addr: addr, deps: deps, startTime: time.Now()}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.POST("/api/refresh", s.handleRefresh)
	r.PUT("/api/filter", s.handleFilter)
	r.GET("/api/playlog", s.handlePlayLog)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.startTime = time.Now()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(listener) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"slideshow": s.deps.Slideshow.Snapshot(),
		"session":   s.deps.Session,
	}
	if s.deps.Thermal != nil {
		resp["thermal"] = s.deps.Thermal.Status()
	}
	if s.deps.Recents != nil {
		resp["recent"] = s.deps.Recents.Entries(10)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRefresh(c *gin.Context) {
	accepted, err := s.deps.Slideshow.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"accepted": accepted}
	if !accepted {
		resp["reason"] = "a fetch is already in flight or the retry cool-down is active"
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleFilter(c *gin.Context) {
	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing kind field"})
		return
	}
	f, err := media.ParseFilter(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if kind, ok := f.Kind(); ok {
		err = s.deps.Slideshow.SetFilterOverride(ctx, kind)
	} else {
		err = s.deps.Slideshow.ClearFilterOverride(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	// The thermal guard may hold a stricter filter than the one requested.
	snap := s.deps.Slideshow.Snapshot()
	c.JSON(http.StatusAccepted, gin.H{
		"requested":     f.String(),
		"filter":        snap.Filter,
		"thermal_limit": snap.ThermalLimit,
	})
}

func (s *Server) handlePlayLog(c *gin.Context) {
	if s.deps.PlayLog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "play log disabled"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	entries, err := s.deps.PlayLog.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read play log"})
		return
	}
	if entries == nil {
		entries = []playlog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
