// Package web serves the agent status API and a live decision stream.
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vadiminshakov/perpagent/internal/agent"
	"github.com/vadiminshakov/perpagent/internal/domain"
	"github.com/vadiminshakov/perpagent/internal/storage/balancesnapshots"
	"go.uber.org/zap"
)

const streamPollInterval = 2 * time.Second

type statusSource interface {
	Status() agent.Status
}

type decisionReader interface {
	EventsAfter(index uint64) ([]domain.CycleEventRecord, error)
}

type balanceReader interface {
	SnapshotsAfter(index uint64) ([]balancesnapshots.Record, error)
}

// Server exposes the status endpoints. Readers may be nil; their endpoints then answer 503.
type Server struct {
	addr      string
	status    statusSource
	decisions decisionReader
	balances  balanceReader
	logger    *zap.Logger
	engine    *gin.Engine
}

// NewServer creates a new web server instance.
func NewServer(addr string, status statusSource, decisions decisionReader, balances balanceReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:      addr,
		status:    status,
		decisions: decisions,
		balances:  balances,
		logger:    logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger)
	engine.GET("/", s.handleIndex)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/api/status", s.handleStatus)
	engine.GET("/api/decisions", s.handleDecisions)
	engine.GET("/api/decisions/stream", s.handleDecisionStream)
	engine.GET("/api/balance", s.handleBalance)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent not available"})
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) handleDecisions(c *gin.Context) {
	if s.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision journal not available"})
		return
	}
	after, ok := afterParam(c)
	if !ok {
		return
	}

	records, err := s.decisions.EventsAfter(after)
	if err != nil {
		s.logger.Error("failed to read decision journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load decisions"})
		return
	}
	if records == nil {
		records = []domain.CycleEventRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleBalance(c *gin.Context) {
	if s.balances == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance history not available"})
		return
	}
	after, ok := afterParam(c)
	if !ok {
		return
	}

	records, err := s.balances.SnapshotsAfter(after)
	if err != nil {
		s.logger.Error("failed to read balance history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance history"})
		return
	}
	if records == nil {
		records = []balancesnapshots.Record{}
	}
	c.JSON(http.StatusOK, records)
}

// handleDecisionStream pushes journal records as server-sent events while the client stays connected.
func (s *Server) handleDecisionStream(c *gin.Context) {
	if s.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision journal not available"})
		return
	}
	lastIndex, ok := afterParam(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()

	send := func() {
		records, err := s.decisions.EventsAfter(lastIndex)
		if err != nil {
			s.logger.Warn("decision stream poll failed", zap.Error(err))
			return
		}
		for _, r := range records {
			c.SSEvent("decision", r)
			lastIndex = r.Index
		}
	}

	first := true
	c.Stream(func(w io.Writer) bool {
		if first {
			first = false
			send()
			return true
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-poll.C:
			send()
			return true
		}
	})
}

func afterParam(c *gin.Context) (uint64, bool) {
	raw := c.Query("after")
	if raw == "" {
		return 0, true
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
		return 0, false
	}
	return after, true
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>perpagent</title>
<style>
body{font-family:monospace;background:#111;color:#ddd;margin:2em}
td,th{padding:2px 10px;text-align:left}
.ok{color:#73F59F}.fail{color:#ff6b6b}
</style></head>
<body>
<h2>perpagent</h2>
<pre id="status">loading...</pre>
<table><thead><tr><th>#</th><th>time</th><th>action</th><th>symbol</th><th>conf</th><th>outcome</th></tr></thead>
<tbody id="rows"></tbody></table>
<script>
async function status(){const r=await fetch('/api/status');document.getElementById('status').textContent=JSON.stringify(await r.json(),null,2)}
status();setInterval(status,5000);
const es=new EventSource('/api/decisions/stream');
es.addEventListener('decision',e=>{const d=JSON.parse(e.data),ev=d.event,tr=document.createElement('tr');
tr.className=ev.success?'ok':'fail';
tr.innerHTML='<td>'+d.index+'</td><td>'+ev.ts+'</td><td>'+ev.action+'</td><td>'+(ev.symbol||'')+'</td><td>'+ev.confidence+'</td><td>'+ev.outcome+'</td>';
const rows=document.getElementById('rows');rows.insertBefore(tr,rows.firstChild)});
</script>
</body>
</html>
`
