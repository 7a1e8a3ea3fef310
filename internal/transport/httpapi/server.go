// Package httpapi exposes the chat runner over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chat-food/server/internal/agent/graph"
	logx "github.com/chat-food/server/pkg/logger"
)

const (
	HealthVersion = "1.0.0"
	ServiceName   = "chat-food"
)

type Config struct {
	Port       int    `envconfig:"HTTP_PORT" default:"8080"`
	Mode       string `envconfig:"HTTP_MODE"`
	RatePerMin int    `envconfig:"HTTP_RATE_PER_MIN" default:"30"`

	// CORSOrigins lists allowed browser origins; empty allows any origin.
	CORSOrigins []string `envconfig:"HTTP_CORS_ORIGINS"`
}

// Server holds the gin engine and the chat runner it serves.
type Server struct {
	gin     *gin.Engine
	runner  graph.Runner
	limiter *rateLimiter
	port    int
}

func New(runner graph.Runner, cfg Config) (*Server, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Port == 0 {
		return nil, errors.New("port is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	gin.SetMode(cfg.Mode)

	srv := &Server{
		gin:     gin.New(),
		runner:  runner,
		limiter: newRateLimiter(cfg.RatePerMin),
		port:    cfg.Port,
	}
	srv.gin.Use(gin.Recovery(), corsMiddleware(cfg.CORSOrigins), requestLogger())
	srv.mapHandlers()
	return srv, nil
}

func (srv *Server) mapHandlers() {
	srv.gin.GET("/health", srv.healthCheck)

	api := srv.gin.Group("/api/v1")
	api.POST("/chat", srv.chat)
	api.POST("/chat/stream", srv.chatStream)
	api.DELETE("/chat/:session_id", srv.resetChat)
}

// Handler exposes the routes, mainly for tests.
func (srv *Server) Handler() http.Handler {
	return srv.gin
}

// Run serves until ctx is done, then drains in-flight requests.
func (srv *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srv.port),
		Handler:           srv.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Int("port", srv.port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logx.Info().Msg("http server stopped")
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
