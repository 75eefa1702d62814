package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ageshift/internal/config"
	"ageshift/internal/gemini"
	"ageshift/internal/handler"
	"ageshift/internal/repository"
	"ageshift/internal/service"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.LoadHTMLGlob("web/templates/*")

	geminiClient := gemini.NewClient(&cfg.Gemini, log)
	historyRepo := repository.NewHistoryRepository(cfg.App.HistoryLimit, log)
	transformService := service.NewTransformService(geminiClient, historyRepo, log)

	h := handler.NewHandler(transformService, cfg, log)

	router.GET("/", h.GetUI)
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/transform", h.Transform)
		api.GET("/history", h.GetHistory)
	}

	router.Static("/static", "./web/static")

	server := &Server{
		httpServer: &http.Server{
			Addr:        cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:     router,
			ReadTimeout: 30 * time.Second,
			// Transform responses wait on three generation calls; the write
			// timeout must outlast the upstream client timeout.
			WriteTimeout:   cfg.Gemini.Timeout + 30*time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr),
		zap.String("model", s.cfg.Gemini.Model))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
