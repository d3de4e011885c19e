// Package api exposes the HTTP control surface: bot lifecycle, auth,
// portfolio views and the websocket event stream.
package api

import (
	"net/http"
	"time"

	"dca-core/internal/engine"
	"dca-core/internal/events"
	"dca-core/internal/monitor"
	"dca-core/pkg/db"
	"dca-core/pkg/exchange"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the engine and the event bus.
type Server struct {
	Router    *gin.Engine
	Engine    *engine.Engine
	Bus       *events.Bus
	DB        *db.Database
	Exchange  exchange.Client
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime configuration exposed to clients.
type SystemMeta struct {
	Symbol          string `json:"symbol"`
	Timeframe       string `json:"timeframe"`
	UseSimExchange  bool   `json:"use_sim_exchange"`
	TradingEnabled  bool   `json:"trading_enabled"`
	DefaultStrategy string `json:"default_strategy"`
	Version         string `json:"version"`
}

// NewServer builds the router with the full middleware stack.
func NewServer(eng *engine.Engine, bus *events.Bus, database *db.Database, client exchange.Client, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    eng,
		Bus:       bus,
		DB:        database,
		Exchange:  client,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.GET("/system/meta", s.getSystemMeta)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			bot := protected.Group("/bot")
			{
				bot.POST("/start", s.startBot)
				bot.POST("/stop", s.stopBot)
				bot.POST("/pause", s.pauseBot)
				bot.POST("/resume", s.resumeBot)
				bot.GET("/status", s.getBotStatus)
				bot.GET("/strategies", s.listStrategies)
			}

			protected.GET("/trades", s.getTrades)
			protected.GET("/portfolio/performance", s.getPerformance)
			protected.GET("/market/candles", s.getCandles)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the HTTP server.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
