package server

import (
	"time"

	"github.com/danmuck/imagedb/internal/observability"
	"github.com/gin-gonic/gin"
)

// adminStatus adapts Server to observability.StatusSource.
type adminStatus struct {
	s *Server
}

func (a adminStatus) Ready() bool {
	return a.s.ready.Load()
}

func (a adminStatus) Snapshot() any {
	return a.s.peers.Snapshot()
}

// AdminRouter returns the admin HTTP handler for this server.
func (s *Server) AdminRouter(started time.Time) *gin.Engine {
	return observability.NewAdminRouter(s.cfg.NodeID, started, adminStatus{s: s})
}
