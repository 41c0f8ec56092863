// Package gateway speaks the remote store's HTTP protocol: one mutation
// endpoint taking {operation, type, item} and one read endpoint per
// collection.
package gateway

import (
	"encoding/json"
	"errors"

	"taskbridge/internal/model"
)

const (
	PathExec    = "/exec"
	PathTasks   = "/api/tasks"
	PathUsers   = "/api/users"
	PathClients = "/api/clients"
)

// ErrRemote wraps a mutation the gateway answered with success=false.
var ErrRemote = errors.New("gateway rejected operation")

type MutationRequest struct {
	Operation model.OpKind     `json:"operation"`
	Type      model.EntityType `json:"type"`
	Item      json.RawMessage  `json:"item"`
}

type MutationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Status is the health endpoint's answer.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
