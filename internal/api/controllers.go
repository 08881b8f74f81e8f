package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"trading-agent/internal/backtest"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/db"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Meta)
}

func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.DB.GetOpenPositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load positions"})
		return
	}
	if positions == nil {
		positions = []db.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (s *Server) getTrades(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	trades, err := s.DB.ListRecentTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	if trades == nil {
		trades = []db.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) getOpenTrades(c *gin.Context) {
	trades, err := s.DB.GetOpenTrades(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	if trades == nil {
		trades = []db.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (s *Server) getRiskSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.Risk.Summary())
}

func (s *Server) getAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	bars, err := s.Source.GetBars(ctx, s.Orchestrator.Universe(), s.LookbackDays)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.Analyzer.AnalyzeUniverse(bars))
}

func (s *Server) runTradingCycle(c *gin.Context) {
	summary, err := s.Orchestrator.RunTradingCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) runPositionCycle(c *gin.Context) {
	if err := s.Orchestrator.ManagePositions(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type backtestRequest struct {
	Symbols      []string `json:"symbols"`
	Strategy     string   `json:"strategy"`
	LookbackDays int      `json:"lookback_days"`
}

func (r *backtestRequest) normalize(universe []string, defaultLookback int) {
	if len(r.Symbols) == 0 {
		r.Symbols = universe
	}
	for i, sym := range r.Symbols {
		r.Symbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	if r.LookbackDays <= 0 {
		r.LookbackDays = defaultLookback
	}
}

func (s *Server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.normalize(s.Orchestrator.Universe(), s.LookbackDays)

	strategies := s.Strategies
	if req.Strategy != "" {
		strategies = nil
		for _, st := range s.Strategies {
			if strings.EqualFold(st.Name(), req.Strategy) {
				strategies = []strategy.Strategy{st}
				break
			}
		}
		if strategies == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown strategy: " + req.Strategy})
			return
		}
	}

	bars, err := s.Source.GetBars(c.Request.Context(), req.Symbols, req.LookbackDays)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}

	cfg := backtest.DefaultConfig()
	cfg.StopLossFraction = s.Risk.Config().StopLossFraction
	results, err := backtest.RunAll(strategies, bars, cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
