package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sketchbook/internal/config"
	"sketchbook/internal/game"
)

type Server struct {
	manager *game.Manager
	hub     *Hub
	cfg     config.Config
	limiter *rateLimiter
}

// New wires the HTTP API around a manager. hub must be the broadcaster the
// manager publishes to.
func New(manager *game.Manager, hub *Hub, cfg config.Config) *Server {
	registerValidators()
	return &Server{
		manager: manager,
		hub:     hub,
		cfg:     cfg,
		limiter: newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "X-User-ID"},
		}))
	}

	api := router.Group("/api")
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms/:id", s.handleRoomStatus)
	api.POST("/rooms/:id/join", s.handleJoin)
	api.POST("/rooms/:id/prompt-selection", s.handleStartPromptSelection)
	api.POST("/rooms/:id/start", s.handleStartGame)
	api.GET("/rooms/:id/prompts", s.handleCardPrompts)
	api.POST("/rooms/:id/dice", s.handleRollDice)
	api.POST("/rooms/:id/free-prompt", s.handleFreePrompt)
	api.GET("/rooms/:id/next", s.handleNext)
	api.POST("/rooms/:id/next-round", s.handleNextRound)
	api.GET("/rooms/:id/results", s.handleResults)
	api.GET("/rooms/:id/events", s.handleEvents)
	api.GET("/rooms/:id/qr", s.handleQR)
	api.GET("/sketchbooks/:id", s.handleViewBook)
	api.POST("/sketchbooks/:id/pages", s.handleSubmitPage)

	router.GET("/ws/rooms/:id", s.handleWebsocket)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	}
}
