// Package api exposes the HITL session over a small local HTTP API so other
// tools (a browser extension, a status bar widget) can read notifications
// and act on alerts.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/middleware"
	"github.com/gotrs-io/gotrs-hitl/internal/session"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// TypeLister lists an organization's HITL types. Failures yield an empty list.
type TypeLister interface {
	ListTypes(ctx context.Context, orgID int64) []types.HitlType
}

// Options wires the server to the session and its collaborators
type Options struct {
	Session    *session.Session
	Alerts     *alerts.Recorder
	Dispatcher *alerts.Dispatcher
	Types      TypeLister
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
	Version    string
}

// Server is the local API
type Server struct {
	session    *session.Session
	alerts     *alerts.Recorder
	dispatcher *alerts.Dispatcher
	types      TypeLister
	gatherer   prometheus.Gatherer
	log        *zap.Logger
	version    string
	started    time.Time
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		session:    opts.Session,
		alerts:     opts.Alerts,
		dispatcher: opts.Dispatcher,
		types:      opts.Types,
		gatherer:   gatherer,
		log:        log.With(zap.String("component", "api")),
		version:    opts.Version,
		started:    time.Now(),
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(s.log))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/permissions", s.handlePermissions)

	v1.GET("/notifications", s.handleListNotifications)
	v1.POST("/notifications/read-all", s.handleMarkAllRead)
	v1.POST("/notifications/:index/read", s.handleMarkRead)
	v1.DELETE("/notifications", s.handleClearNotifications)

	v1.GET("/alerts", s.handleListAlerts)
	v1.POST("/alerts/:id/perform", s.handlePerformAlert)
	v1.DELETE("/alerts/:id", s.handleDismissAlert)

	v1.POST("/conversations/:id/claim", s.handleClaim)
	v1.GET("/hitl-types", s.handleListTypes)

	r.NoRoute(func(c *gin.Context) {
		sendError(c, http.StatusNotFound, "route not found")
	})
	return r
}

// ListenAndServe serves the router on addr until ctx is cancelled, then
// shuts down within shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("local api listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func sendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}
