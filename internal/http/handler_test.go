package httpapp

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/navistream/internal/acquire"
	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
	"github.com/cesargomez89/navistream/internal/store"
	"github.com/cesargomez89/navistream/internal/stream"
)

func flacStub() []byte {
	si := make([]byte, 34)
	binary.BigEndian.PutUint16(si[0:2], 4096)
	binary.BigEndian.PutUint16(si[2:4], 4096)
	binary.BigEndian.PutUint64(si[10:18], uint64(44100)<<44|uint64(1)<<41|uint64(15)<<36|uint64(441000))
	f := &flac.File{Meta: []*flac.MetaDataBlock{{Type: flac.StreamInfo, Data: si}}}
	return append(f.Marshal(), 0xFF, 0xF8, 0x69, 0x08, 0x00, 0x00, 0x12, 0x34)
}

// newTestRouter serves a Service backed by a mock primary catalog that knows
// track 12345.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio.flac" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(flacStub())
	}))
	t.Cleanup(audio.Close)

	dir := t.TempDir()
	db, err := store.NewSQLiteDB(filepath.Join(dir, "http.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Discard()
	index := library.NewIndex(db, filepath.Join(dir, "library"), library.DefaultPolicy, log)
	providers := catalog.NewRegistry(log)

	primary := catalog.NewMockProvider(domain.ProviderPrimary)
	primary.Tracks["12345"] = &domain.TrackDetails{
		ID: domain.ExternalID{Provider: domain.ProviderPrimary, Value: "12345"}, Title: "One More Time", Artist: "Daft Punk", Album: "Discovery", TrackNumber: 1,
	}
	primary.Sources["12345"] = &domain.DownloadSource{StreamURL: audio.URL + "/audio.flac", MIME: "audio/flac"}
	primary.Records = []domain.Record{
		{Kind: domain.KindSong, DisplayName: "One More Time", Artist: "Daft Punk", Album: "Discovery",
			ExternalID: domain.ExternalID{Provider: domain.ProviderPrimary, Value: "12345"}},
		{Kind: domain.KindArtist, DisplayName: "Daft Punk", Artist: "Daft Punk",
			ExternalID: domain.ExternalID{Provider: domain.ProviderPrimary, Value: "42"}},
	}
	providers.SetCatalog(primary)

	client := httpclient.NewClient(nil, httpclient.Options{RequestsPerSec: 1000, Burst: 100, Retries: 1, RetryBase: time.Millisecond})
	svc := app.New(app.Deps{
		Index:     index,
		Pipeline:  acquire.NewPipeline(index, providers, acquire.Options{HTTPClient: client}, log),
		Engine:    stream.NewEngine("/nonexistent/ffmpeg", log),
		Reader:    mediainfo.NewReader("", log),
		Providers: providers,
		Cache:     db,
		Images:    client,
	}, log)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestStream_Lossless(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/stream?id=catalog_primary:12345&quality=lossless", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/flac" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("X-Track-Id") == "" {
		t.Error("missing X-Track-Id")
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("fLaC")) {
		t.Errorf("body does not start with the FLAC marker")
	}
}

func TestStream_Errors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantKind   string
	}{
		{"empty descriptor", "/stream", http.StatusBadRequest, "invalid_request"},
		{"bad id", "/stream?id=nope", http.StatusBadRequest, "invalid_request"},
		{"bad quality", "/stream?id=catalog_primary:12345&quality=ultra", http.StatusBadRequest, "invalid_request"},
		{"unknown id", "/stream?id=catalog_primary:999", http.StatusConflict, "not_acquirable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Error != tt.wantKind {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantKind)
			}
		})
	}
}

func TestAcquireThenSearch(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/acquire", `{"artist":"Daft Punk","title":"One More Time","ids":["catalog_primary:12345"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("acquire status = %d, body %s", rec.Code, rec.Body.String())
	}
	var row domain.DownloadedTrack
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatal(err)
	}
	if row.LocalPath != "Daft Punk/Discovery/01 - One More Time.flac" {
		t.Errorf("local_path = %q", row.LocalPath)
	}

	q := url.Values{"artist": {"daft punk"}, "title": {"one more time"}}
	rec = do(t, h, http.MethodGet, "/index/search?"+q.Encode(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rec.Code, rec.Body.String())
	}
	var found domain.DownloadedTrack
	if err := json.Unmarshal(rec.Body.Bytes(), &found); err != nil {
		t.Fatal(err)
	}
	if found.ID != row.ID {
		t.Errorf("search id = %d, want %d", found.ID, row.ID)
	}

	q.Set("title", "Aerodynamic")
	rec = do(t, h, http.MethodGet, "/index/search?"+q.Encode(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("miss status = %d, want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/metadata?path="+url.QueryEscape(row.LocalPath), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata status = %d, body %s", rec.Code, rec.Body.String())
	}
	var md domain.AudioMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &md); err != nil {
		t.Fatal(err)
	}
	if md.SampleRate != 44100 {
		t.Errorf("sample_rate = %d", md.SampleRate)
	}
}

func TestAcquire_BadBody(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/acquire", `{"artist":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/acquire", `{"artist":"Daft Punk"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDownloads(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/downloads", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/acquire", `{"ids":["catalog_primary:12345"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("acquire status = %d, body %s", rec.Code, rec.Body.String())
	}
	var row domain.DownloadedTrack
	if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
		t.Fatal(err)
	}

	var rows []domain.DownloadedTrack
	rec = do(t, h, http.MethodGet, "/downloads?limit=5", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	path := fmt.Sprintf("/downloads/%d", row.ID)
	if rec := do(t, h, http.MethodPost, path+"/verify", ""); rec.Code != http.StatusOK {
		t.Errorf("verify status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/admin/sweep?hash=true", ""); rec.Code != http.StatusOK {
		t.Errorf("sweep status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, path, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, path+"/verify", ""); rec.Code != http.StatusNotFound {
		t.Errorf("verify after delete = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/downloads/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestMetadata_Traversal(t *testing.T) {
	h := newTestRouter(t)

	for _, p := range []string{"", "../etc/passwd", "/etc/passwd"} {
		rec := do(t, h, http.MethodGet, "/metadata?path="+url.QueryEscape(p), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: status = %d, want 400", p, rec.Code)
		}
	}
}

func TestHealthAndStatus(t *testing.T) {
	h := newTestRouter(t)

	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st app.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Providers.Catalogs) != 1 || st.Providers.Catalogs[0] != domain.ProviderPrimary {
		t.Errorf("catalogs = %v", st.Providers.Catalogs)
	}
	if st.Providers.Peer {
		t.Error("peer reported as configured")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrNotAcquirable, http.StatusConflict},
		{domain.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{domain.ErrTransferFailed, http.StatusBadGateway},
		{domain.ErrIntegrityFailed, http.StatusInternalServerError},
		{domain.ErrLocalIO, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCatalogBrowse(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"search songs", "/catalog/catalog_primary/search?q=daft", http.StatusOK, "One More Time"},
		{"search artists", "/catalog/catalog_primary/search?q=daft&type=artist", http.StatusOK, `"id_value":"42"`},
		{"empty query", "/catalog/catalog_primary/search?q=", http.StatusBadRequest, "invalid_request"},
		{"unknown provider", "/catalog/nope/search?q=daft", http.StatusNotFound, "not_found"},
		{"album", "/catalog/catalog_primary/albums/7", http.StatusOK, "Discovery"},
		{"artist", "/catalog/catalog_primary/artists/42", http.StatusOK, "Daft Punk"},
		{"missing artist", "/catalog/catalog_primary/artists/1", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body %s does not contain %q", rec.Body.String(), tt.want)
			}
		})
	}
}
