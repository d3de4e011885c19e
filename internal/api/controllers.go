package api

import (
	"errors"
	"net/http"
	"strconv"

	"dca-core/internal/engine"
	"dca-core/internal/strategy"

	"github.com/gin-gonic/gin"
)

type startRequest struct {
	Strategy     string `json:"strategy"`
	PaperTrading *bool  `json:"paper_trading"`
}

// startBot launches the trading loop. Defaults: configured strategy, paper
// mode on.
func (s *Server) startBot(c *gin.Context) {
	req := startRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "INVALID_PAYLOAD",
				"error": "invalid request payload",
			})
			return
		}
	}
	if req.Strategy == "" {
		req.Strategy = s.Meta.DefaultStrategy
	}
	paperTrading := true
	if req.PaperTrading != nil {
		paperTrading = *req.PaperTrading
	}

	if err := s.Engine.Start(req.Strategy, paperTrading); err != nil {
		status, code := startErrorStatus(err)
		c.JSON(status, gin.H{"code": code, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.Engine.Status())
}

func startErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrRealTradingDisabled):
		return http.StatusForbidden, "REAL_TRADING_DISABLED"
	case errors.Is(err, engine.ErrNotStopped):
		return http.StatusConflict, "ALREADY_RUNNING"
	case errors.Is(err, strategy.ErrUnknownStrategy):
		return http.StatusBadRequest, "UNKNOWN_STRATEGY"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) stopBot(c *gin.Context) {
	if err := s.Engine.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) pauseBot(c *gin.Context) {
	if err := s.Engine.Pause(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"code": "NOT_RUNNING", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) resumeBot(c *gin.Context) {
	if err := s.Engine.Resume(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"code": "NOT_PAUSED", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) getBotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) listStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.List()})
}

// getTrades returns the active paper session's trades, falling back to the
// persistent audit log when no session is live.
func (s *Server) getTrades(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	trades, err := s.Engine.TradeHistory(limit)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"trades": trades})
		return
	}
	if !errors.Is(err, engine.ErrNoPaperLedger) {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}

	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []any{}})
		return
	}
	records, err := s.DB.ListTrades(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": records})
}

func (s *Server) getPerformance(c *gin.Context) {
	perf, err := s.Engine.Performance()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "NO_PAPER_SESSION",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (s *Server) getCandles(c *gin.Context) {
	symbol := c.DefaultQuery("symbol", s.Meta.Symbol)
	timeframe := c.DefaultQuery("timeframe", s.Meta.Timeframe)
	limit := intQuery(c, "limit", 100)

	candles, err := s.Exchange.FetchCandles(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": "EXCHANGE_ERROR", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "timeframe": timeframe, "candles": candles})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getSystemMeta(c *gin.Context) {
	c.JSON(http.StatusOK, s.Meta)
}

func intQuery(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
