package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"FairValue/internal/advisor"
	"FairValue/internal/collector"
	"FairValue/internal/model"
	"FairValue/internal/recorder"
)

// Resolver is the part of collector.Collector the routes depend on.
type Resolver interface {
	Resolve(ctx context.Context, symbol string, opts collector.ResolveOptions) (*model.TickerData, error)
	Refresh(ctx context.Context, symbol string) (*model.TickerData, error)
}

// Server holds the dependencies of the HTTP routes.
type Server struct {
	resolver Resolver
	store    recorder.Store
	advisor  *advisor.Advisor
	logger   *zap.Logger
}

// NewServer wires the route handlers. A nil store behaves as if no database were configured.
func NewServer(resolver Resolver, store recorder.Store, adv *advisor.Advisor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = recorder.NewNoopStore()
	}
	return &Server{resolver: resolver, store: store, advisor: adv, logger: logger}
}

// Handler builds the gin engine with middleware and routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api")
	{
		v1.GET("/ticker/:symbol", s.getTicker)
		v1.POST("/ticker/:symbol", s.refreshTicker)
		v1.GET("/history", s.history)
		v1.POST("/save", s.save)
		v1.POST("/dcf", s.dcf)
		v1.POST("/dcf-advice", s.dcfAdvice)
	}
	return r
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, collector.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, collector.ErrNotCached):
		return http.StatusNotFound
	case errors.Is(err, recorder.ErrNotConfigured), errors.Is(err, advisor.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	switch kind, ok := collector.KindOf(err); {
	case !ok:
		return http.StatusBadGateway
	case kind == collector.SymbolNotFound:
		return http.StatusNotFound
	case kind == collector.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	var fe *collector.FetchError
	if errors.As(err, &fe) && fe.Detail != "" {
		msg = fe.Detail
	}
	if errors.Is(err, collector.ErrNotCached) {
		msg = "no cached data for this symbol, analyze it first or refresh it from history"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}
