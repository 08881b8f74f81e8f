// Package api exposes the pipeline over HTTP: read endpoints for
// positions, trades, and risk state, manual cycle triggers, backtests,
// and a websocket stream of bus events.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trading-agent/internal/analyzer"
	"trading-agent/internal/events"
	"trading-agent/internal/marketdata"
	"trading-agent/internal/orchestrator"
	"trading-agent/internal/risk"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/db"
)

// Deps are the collaborators the server reads from and triggers. All are
// constructed in main and injected.
type Deps struct {
	Bus          *events.Bus
	DB           *db.Database
	Risk         *risk.Manager
	Analyzer     *analyzer.Analyzer
	Orchestrator *orchestrator.Orchestrator
	Source       marketdata.Source
	Strategies   []strategy.Strategy
	LookbackDays int
	Meta         SystemMeta
	JWTSecret    string
	APIPassword  string
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	SimMode  bool     `json:"sim_mode"`
	Venue    string   `json:"venue"`
	Universe []string `json:"universe"`
	Version  string   `json:"version"`
}

// Server wires HTTP endpoints around the pipeline.
type Server struct {
	Router *gin.Engine
	Deps
}

func NewServer(deps Deps) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{Router: r, Deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		if s.JWTSecret != "" {
			protected.Use(AuthMiddleware(s.JWTSecret))
		}
		{
			protected.GET("/positions", s.getPositions)
			protected.GET("/trades", s.getTrades)
			protected.GET("/trades/open", s.getOpenTrades)
			protected.GET("/risk", s.getRiskSummary)
			protected.GET("/analysis", s.getAnalysis)

			protected.POST("/cycles/trading", s.runTradingCycle)
			protected.POST("/cycles/positions", s.runPositionCycle)
			protected.POST("/backtest", s.runBacktest)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
