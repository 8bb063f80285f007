// Package health serves the process status endpoint.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"school_notification_bot/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ScannerStatus reports the lesson scanner's progress.
type ScannerStatus interface {
	Stats() app.ScannerStats
}

// SchedulerStatus reports how many scan ticks were skipped while one was pending.
type SchedulerStatus interface {
	Skipped() int64
}

// ListenerStatus reports one change-feed listener.
type ListenerStatus interface {
	Status() app.ListenerStatus
}

// Server is the HTTP server exposing GET /healthz.
type Server struct {
	router    *gin.Engine
	srv       *http.Server
	scanner   ScannerStatus
	scheduler SchedulerStatus
	listeners []ListenerStatus
	started   time.Time
	log       *logrus.Entry
}

func NewServer(addr string, scanner ScannerStatus, scheduler SchedulerStatus, listeners []ListenerStatus, log *logrus.Entry) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		scanner:   scanner,
		scheduler: scheduler,
		listeners: listeners,
		started:   time.Now(),
		log:       log,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth())
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		listeners := make([]app.ListenerStatus, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l.Status())
		}
		stats := s.scanner.Stats()
		var skipped int64
		if s.scheduler != nil {
			skipped = s.scheduler.Skipped()
		}

		status := "ok"
		if stats.LastError != "" {
			status = "degraded"
		}
		for _, l := range listeners {
			if !l.Enabled {
				status = "degraded"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        status,
			"uptime":        time.Since(s.started).Round(time.Second).String(),
			"scanner":       stats,
			"skipped_ticks": skipped,
			"listeners":     listeners,
		})
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("Health endpoint listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Health endpoint stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
