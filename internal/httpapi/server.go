package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
)

type Dependencies struct {
	Logger   *zap.Logger
	Addr     string
	Ingestor *service.LocationIngestor
	Alerts   *service.AlertManager
	Query    *service.QueryService

	// RateLimit is the sustained requests per second allowed per client
	// IP, with RateBurst on top.  Zero disables limiting.
	RateLimit float64
	RateBurst int

	// MaxBatch caps samples per batch request.  Defaults to 500.
	MaxBatch int

	Now func() time.Time
}

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	logger     *zap.Logger
	ingestor   *service.LocationIngestor
	alerts     *service.AlertManager
	query      *service.QueryService
	maxBatch   int
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxBatch <= 0 {
		d.MaxBatch = 500
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLogger(d.Logger))
	if d.RateLimit > 0 {
		engine.Use(rateLimit(d.RateLimit, d.RateBurst))
	}

	s := &Server{
		engine:   engine,
		logger:   d.Logger,
		ingestor: d.Ingestor,
		alerts:   d.Alerts,
		query:    d.Query,
		maxBatch: d.MaxBatch,
		now:      d.Now,
	}

	engine.GET("/healthz", s.handleHealth)

	v1 := engine.Group("/v1")
	{
		v1.POST("/locations", s.handleRecordLocation)
		v1.POST("/locations/batch", s.handleRecordLocations)
		v1.GET("/locations/live", s.handleLiveLocations)
		v1.GET("/employees/:id/history", s.handleHistory)
		v1.GET("/stats", s.handleStats)

		v1.GET("/alerts", s.handleOpenAlerts)
		v1.GET("/alerts/by-severity", s.handleAlertsBySeverity)
		v1.GET("/alerts/:id", s.handleGetAlert)
		v1.POST("/alerts/:id/ack", s.handleAlertAction(actionAck))
		v1.POST("/alerts/:id/resolve", s.handleAlertAction(actionResolve))
		v1.POST("/alerts/:id/false-alarm", s.handleAlertAction(actionFalseAlarm))
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "server_time": s.now().Format(time.RFC3339)})
}
