package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cesargomez89/navistream/internal/domain"
)

// MockProvider is an in-memory CatalogProvider for tests and offline runs.
type MockProvider struct {
	TagValue domain.ProviderTag
	Records  []domain.Record
	Tracks   map[string]*domain.TrackDetails
	Sources  map[string]*domain.DownloadSource
	// Err, when set, is returned by every call.
	Err error

	ResolveCalls atomic.Int32
	SearchCalls  atomic.Int32
}

func NewMockProvider(tag domain.ProviderTag) *MockProvider {
	return &MockProvider{
		TagValue: tag,
		Tracks:   map[string]*domain.TrackDetails{},
		Sources:  map[string]*domain.DownloadSource{},
	}
}

func (p *MockProvider) Tag() domain.ProviderTag { return p.TagValue }

func (p *MockProvider) Search(ctx context.Context, query string, kind domain.RecordKind, limit int) ([]domain.Record, error) {
	p.SearchCalls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	if kind == "" {
		kind = domain.KindSong
	}
	var out []domain.Record
	for _, r := range p.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *MockProvider) AlbumDetails(ctx context.Context, id string) (*domain.AlbumDetails, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	album := &domain.AlbumDetails{CollectionID: id, Tracks: []domain.Record{}}
	for _, r := range p.Records {
		if r.Kind == domain.KindSong && r.Album != "" {
			album.Title, album.Artist = r.Album, r.Artist
			album.Tracks = append(album.Tracks, r)
		}
	}
	if len(album.Tracks) == 0 {
		return nil, notFound("mock", "album "+id)
	}
	return album, nil
}

func (p *MockProvider) ArtistDetails(ctx context.Context, id string) (*domain.ArtistDetails, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	for _, r := range p.Records {
		if r.Kind == domain.KindArtist && r.ExternalID.Value == id {
			return &domain.ArtistDetails{Info: r}, nil
		}
	}
	return nil, notFound("mock", "artist "+id)
}

func (p *MockProvider) TrackDetails(ctx context.Context, id string) (*domain.TrackDetails, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if t, ok := p.Tracks[id]; ok {
		return t, nil
	}
	return nil, notFound("mock", "track "+id)
}

func (p *MockProvider) ResolveDownload(ctx context.Context, id string) (*domain.DownloadSource, error) {
	p.ResolveCalls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	if s, ok := p.Sources[id]; ok {
		return s, nil
	}
	return nil, notFound("mock", "track "+id)
}

func (p *MockProvider) ArtworkURL(ctx context.Context, id string) (string, error) {
	t, err := p.TrackDetails(ctx, id)
	if err != nil {
		return "", err
	}
	if t.ArtworkURL == "" {
		return "", notFound("mock", "no artwork")
	}
	return t.ArtworkURL, nil
}

var _ CatalogProvider = (*MockProvider)(nil)

// MockPeer serves fixed candidates and file contents keyed by filename.
type MockPeer struct {
	Candidates []domain.PeerCandidate
	Files      map[string][]byte
	Err        error

	mu          sync.Mutex
	Queries     []string
	Transferred []string
}

func (m *MockPeer) StartSearch(ctx context.Context, query string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	return fmt.Sprintf("search-%d", len(m.Queries)), nil
}

func (m *MockPeer) SearchResults(ctx context.Context, searchID string) ([]domain.PeerCandidate, bool, error) {
	if m.Err != nil {
		return nil, false, m.Err
	}
	return m.Candidates, true, nil
}

func (m *MockPeer) Transfer(ctx context.Context, c domain.PeerCandidate) (io.ReadCloser, error) {
	m.mu.Lock()
	m.Transferred = append(m.Transferred, c.Filename)
	m.mu.Unlock()
	data, ok := m.Files[c.Filename]
	if !ok {
		return nil, fmt.Errorf("%w: mock peer: %s", domain.ErrTransferFailed, c.Filename)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ PeerTransferProvider = (*MockPeer)(nil)
