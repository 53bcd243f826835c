package handlers

import (
	"context"

	"github.com/maruel/localcrm/internal/storage"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	svc     *storage.CustomerService
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *storage.CustomerService, version string) *HealthHandler {
	return &HealthHandler{svc: svc, version: version}
}

// Health reports the server version and the number of records. It fails when the
// table can't be read.
func (h *HealthHandler) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	n, err := h.svc.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &HealthResponse{Status: "ok", Version: h.version, Records: n}, nil
}
