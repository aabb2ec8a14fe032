package main

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/adapter"
	"uhnw-graph/backend/internal/datafile"
	"uhnw-graph/backend/internal/frontier"
	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/internal/ingest"
	"uhnw-graph/backend/internal/record"
	apperrors "uhnw-graph/backend/pkg/errors"
)

const maxBodyBytes = 32 << 20

// server exposes the crawl step to the workflow engine. Ingest requests
// share the frontier and snapshot files, so they run one at a time.
type server struct {
	store    graph.Store
	files    ingest.Files
	opts     ingest.Options
	registry *prometheus.Registry
	log      *zap.Logger

	mu sync.Mutex
}

type nextRequest struct {
	QID string `json:"qid"`
}

type ingestResponse struct {
	Payload datafile.Snapshot `json:"payload"`
	Next    []nextRequest     `json:"next"`
	Summary ingest.Summary    `json:"summary"`
}

func nextRequests(ids []string) []nextRequest {
	out := make([]nextRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, nextRequest{QID: id})
	}
	return out
}

func (s *server) routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/frontier/pending", s.pending)
		api.POST("/wikidata/ingest", s.ingestWikidata)
	}
}

func (s *server) pending(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := frontier.Load(s.files.StatePath, s.log)
	if err != nil {
		s.log.Warn("Frontier state quarantined", zap.Error(err))
	}
	c.JSON(http.StatusOK, nextRequests(t.PendingIDs()))
}

func (s *server) ingestWikidata(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	batch, err := adapter.ParseWikidataBindings(bytes.NewReader(body), "api_"+time.Now().UTC().Format("20060102T150405Z"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := ingest.Ingest(c.Request.Context(), s.store, s.files, s.opts, []record.Batch{batch})
	if err != nil {
		s.log.Error("Failed to ingest crawl step", zap.Error(err))
		status := http.StatusInternalServerError
		if apperrors.IsRetryable(err) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "Failed to ingest crawl step"})
		return
	}

	c.JSON(http.StatusOK, ingestResponse{
		Payload: res.Run.Snapshot(),
		Next:    nextRequests(res.Summary.Pending),
		Summary: res.Summary,
	})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
