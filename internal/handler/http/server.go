package http

import (
	"log/slog"
	"net/http"

	"github.com/TomKentIntera/project-voxel-sub001/pkg/httputil"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/middleware"
	"github.com/TomKentIntera/project-voxel-sub001/pkg/pagination"

	"github.com/TomKentIntera/project-voxel-sub001/internal/service"
)

// ServerHandler handles the server endpoints.
type ServerHandler struct {
	service *service.ServerService
	logger  *slog.Logger
}

// NewServerHandler creates a server HTTP handler.
func NewServerHandler(svc *service.ServerService, logger *slog.Logger) *ServerHandler {
	return &ServerHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/servers (authenticated). Supports page and
// per_page query parameters.
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	params := pagination.FromRequest(r)

	result, err := h.service.ListForUser(r.Context(), userID, params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
