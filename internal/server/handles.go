package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/gateway"
	"taskbridge/internal/service"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gateway.Status{Status: "active", Message: "task gateway is running"})
}

func (s *Server) exec(c *gin.Context) {
	var req gateway.MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		mutationResp(c, http.StatusBadRequest, err)
		return
	}
	err := s.mutations.Apply(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gateway.MutationResponse{Success: true})
	case errors.Is(err, service.ErrBadMutation):
		mutationResp(c, http.StatusBadRequest, err)
	default:
		log.WithFields(log.Fields{"operation": req.Operation, "type": req.Type}).Errorf("apply mutation: %v", err)
		mutationResp(c, http.StatusInternalServerError, err)
	}
}

func mutationResp(c *gin.Context, code int, err error) {
	c.JSON(code, gateway.MutationResponse{Success: false, Error: err.Error()})
}

func listHandler[T any](list func(ctx context.Context) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := list(c.Request.Context())
		if err != nil {
			log.Errorf("list %s: %v", c.Request.URL.Path, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if items == nil {
			items = []T{}
		}
		c.JSON(http.StatusOK, items)
	}
}
