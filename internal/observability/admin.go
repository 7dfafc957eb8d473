package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StatusSource exposes runtime state to the admin endpoint.
type StatusSource interface {
	Ready() bool
	Snapshot() any
}

// NewAdminRouter serves /health, /ready, /metrics and /peers for node.
func NewAdminRouter(node string, started time.Time, src StatusSource) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(adminAccess(node))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"node":    node,
			"version": "0.1.0",
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := src != nil && src.Ready()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "node": node})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/peers", func(c *gin.Context) {
		if src == nil {
			c.JSON(http.StatusOK, gin.H{"peers": []any{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"peers": src.Snapshot()})
	})
	return r
}

// unmatchedRoute labels requests that hit no admin route, keeping arbitrary
// paths out of metric labels.
const unmatchedRoute = "unmatched"

// adminAccess logs each admin request on the node logger and records it in
// the admin HTTP metrics under its route pattern.
func adminAccess(node string) gin.HandlerFunc {
	logger := log.With().Str("node", node).Str("component", "admin").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		RecordHTTPRequest(node, c.Request.Method, route, status, elapsed)

		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else if status >= http.StatusBadRequest {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("admin request")
	}
}

// ServeAdmin runs handler on addr until ctx is done.
func ServeAdmin(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("observability.ServeAdmin listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
