// Package server is the HTTP side of the gateway: it accepts mutations
// and serves the stored collections.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/gateway"
	"taskbridge/internal/service"
)

type Server struct {
	engine    *gin.Engine
	mutations *service.MutationService
	tasks     *service.TaskService
	directory *service.DirectoryService
}

func New(mutations *service.MutationService, tasks *service.TaskService, directory *service.DirectoryService) *Server {
	s := &Server{
		engine:    gin.New(),
		mutations: mutations,
		tasks:     tasks,
		directory: directory,
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.health)
	s.engine.POST(gateway.PathExec, s.exec)
	api := s.engine.Group("/api")
	api.GET("/tasks", listHandler(s.tasks.Rows))
	api.GET("/users", listHandler(s.directory.Users))
	api.GET("/clients", listHandler(s.directory.Clients))
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("gateway listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
