package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/tikrelay/tikrelay/internal/domain"
)

// Resolver is the slice of the resolution pipeline the HTTP surface
// drives. *resolver.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error)
	Package(req domain.MediaRequest, result domain.ResolutionResult) (domain.DeliveryPackage, error)
	Cleanup(requestID string)
}

// ResolveHandler handles media resolution HTTP requests.
type ResolveHandler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(res Resolver, logger *slog.Logger) *ResolveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveHandler{
		resolver: res,
		logger:   logger,
	}
}

// ResolveRequest is the JSON request body for media resolution.
type ResolveRequest struct {
	URL string `json:"url"`
}

// Resolve handles POST /api/v1/resolve. The resolved package is
// streamed back in the response body, with metadata in headers.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := domain.NewMediaRequest(body.URL)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unsupported or malformed link")
		return
	}

	logger := h.logger.With("request_id", req.ID, "kind", req.Kind)
	logger.Info("resolution requested", "link", body.URL)

	result, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrNoMediaFound) {
			h.writeError(w, http.StatusNotFound, "no media found at that link")
			return
		}
		logger.Error("resolution failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "failed to resolve media")
		return
	}

	pkg, err := h.resolver.Package(req, result)
	if err != nil {
		logger.Error("packaging failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to package media")
		return
	}
	defer h.resolver.Cleanup(req.ID)

	w.Header().Set("Content-Type", contentType(pkg))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(pkg.Path)+`"`)
	w.Header().Set("X-Resolve-ID", req.ID)
	w.Header().Set("X-Media-Kind", string(pkg.Kind))
	w.Header().Set("X-Strategy", string(pkg.Strategy))
	http.ServeFile(w, r, pkg.Path)

	logger.Info("resolution delivered", "strategy", pkg.Strategy, "assets", pkg.AssetCount)
}

func contentType(pkg domain.DeliveryPackage) string {
	if pkg.Mode == domain.PackageZipArchive {
		return "application/zip"
	}
	return "video/mp4"
}

func (h *ResolveHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
