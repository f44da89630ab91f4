package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	Service *app.Service
	Logger  *logger.Logger
}

func NewHandler(svc *app.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Service: svc,
		Logger:  log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/status", h.Status)

	r.Get("/stream", h.Stream)
	r.Get("/artwork", h.Artwork)
	r.Get("/artwork/file", h.ArtworkFile)
	r.Get("/metadata", h.Metadata)
	r.Post("/acquire", h.Acquire)
	r.Get("/index/search", h.SearchIndex)

	r.Route("/catalog/{provider}", func(r chi.Router) {
		r.Get("/search", h.SearchCatalog)
		r.Get("/albums/{id}", h.AlbumDetails)
		r.Get("/artists/{id}", h.ArtistDetails)
	})

	r.Route("/downloads", func(r chi.Router) {
		r.Get("/", h.ListDownloads)
		r.Delete("/{id}", h.DeleteDownload)
		r.Post("/{id}/verify", h.VerifyDownload)
	})
	r.Post("/admin/sweep", h.Sweep)
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAcquirable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Debug("Failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Nobody is listening.
		return
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, errorResponse{
		Error:     domain.KindOf(err),
		Message:   err.Error(),
		Retryable: domain.Retryable(err),
	})
}
