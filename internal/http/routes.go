package httpapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/http/dto"
	"github.com/cesargomez89/navistream/internal/stream"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Ready(); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Service.Status(r.Context()))
}

// Stream serves playback of a descriptor given in the query string.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	d, err := dto.DescriptorFromQuery(r.URL.Query()).ToDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := domain.ParseQuality(r.URL.Query().Get("quality"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	st, row, err := h.Service.Playback(r.Context(), d, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Track-Id", strconv.FormatInt(row.ID, 10))
	h.serveStream(w, r, st)
}

func (h *Handler) Artwork(w http.ResponseWriter, r *http.Request) {
	d, err := dto.DescriptorFromQuery(r.URL.Query()).ToDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Service.Artwork(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	h.serveStream(w, r, st)
}

func (h *Handler) ArtworkFile(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.ArtworkForFile(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.serveStream(w, r, st)
}

// serveStream writes st in chunks. Once the status line is out, failures
// can only be logged.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, st *stream.Stream) {
	w.Header().Set("Content-Type", st.ContentType)
	w.WriteHeader(http.StatusOK)
	n, err := st.WriteTo(w)
	if err == nil {
		return
	}
	if stream.IsClientGone(err) || r.Context().Err() != nil {
		h.Logger.Debug("Client went away", "path", r.URL.Path, "bytes", n)
		return
	}
	h.Logger.Warn("Stream ended with error", "path", r.URL.Path, "bytes", n, "error", err)
}

func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	md, err := h.Service.Metadata(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, md)
}

// Acquire prefetches a descriptor given as a JSON body and returns its row.
func (h *Handler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req dto.DescriptorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidRequest, err))
		return
	}
	d, err := req.ToDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	row, err := h.Service.Acquire(r.Context(), d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

func (h *Handler) SearchIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	row, err := h.Service.SearchIndex(r.Context(), q.Get("artist"), q.Get("title"), q.Get("album"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if row == nil {
		h.writeError(w, r, fmt.Errorf("%w: no local match", domain.ErrNotFound))
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.Service.ListDownloads(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*domain.DownloadedTrack{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	id, err := trackID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Service.DeleteDownload(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyDownload(w http.ResponseWriter, r *http.Request) {
	id, err := trackID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	row, err := h.Service.Verify(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	checkHash, _ := strconv.ParseBool(r.URL.Query().Get("hash"))
	report, err := h.Service.Sweep(r.Context(), checkHash)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func trackID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad track id %q", domain.ErrInvalidRequest, raw)
	}
	return id, nil
}

func (h *Handler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	records, err := h.Service.SearchCatalog(r.Context(), providerTag(r), q.Get("q"), domain.RecordKind(q.Get("type")), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *Handler) AlbumDetails(w http.ResponseWriter, r *http.Request) {
	album, err := h.Service.AlbumDetails(r.Context(), providerTag(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, album)
}

func (h *Handler) ArtistDetails(w http.ResponseWriter, r *http.Request) {
	artist, err := h.Service.ArtistDetails(r.Context(), providerTag(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, artist)
}

func providerTag(r *http.Request) domain.ProviderTag {
	return domain.ProviderTag(chi.URLParam(r, "provider"))
}
