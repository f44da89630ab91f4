package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cesargomez89/navistream/internal/domain"
)

func newSecondaryServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/track/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("app_id") != "app-1" || r.Header.Get("X-User-Auth-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"tracks":{"items":[
			{"id":9001,"title":"Song Y","track_number":4,"duration":201,"maximum_bit_depth":24,
			 "performer":{"name":"Artist X"},
			 "album":{"id":"alb1","title":"Album Z","released_at":946684800,"image":{"large":"https://img.example/z.jpg"}}},
			{"id":9002,"title":"No Artist"}
		]}}`)
	})
	mux.HandleFunc("/album/get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"alb1","title":"Album Z","release_date_original":"1999-05-01",
			"artist":{"name":"Artist X"},"image":{"small":"https://img.example/z-small.jpg"},
			"tracks":{"items":[{"id":9001,"title":"Song Y","track_number":4},{"id":9003,"title":"Song W","track_number":5}]}}`)
	})
	mux.HandleFunc("/artist/get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":77,"name":"Artist X","albums":{"items":[
			{"id":"alb1","title":"Album Z","release_type":"album","artist":{"name":"Artist X"}},
			{"id":"s1","title":"Song Y (Edit)","release_type":"single"}
		]}}`)
	})
	mux.HandleFunc("/track/get", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("track_id") != "9001" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"id":9001,"title":"Song Y","track_number":4,"performer":{"name":"Artist X"},
			"album":{"title":"Album Z","release_date_original":"1999-05-01","genre":{"name":"Rock"},
			"image":{"large":"https://img.example/z.jpg"}}}`)
	})
	mux.HandleFunc("/track/getFileUrl", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("track_id") {
		case "9001":
			fmt.Fprint(w, `{"url":"https://cdn.example/9001.flac","mime_type":"audio/flac","format_id":6}`)
		default:
			fmt.Fprint(w, `{"sample":true}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSecondaryProvider_Search(t *testing.T) {
	srv := newSecondaryServer(t)
	p := NewSecondaryProvider(srv.URL, "app-1", "tok", testClient(), nil)

	records, err := p.Search(context.Background(), "artist x song y", domain.KindSong, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.ExternalID != (domain.ExternalID{Provider: domain.ProviderSecondary, Value: "9001"}) {
		t.Errorf("ExternalID = %v", r.ExternalID)
	}
	if r.Artist != "Artist X" || r.Album != "Album Z" || r.TrackNumber != 4 || r.Year != 2000 || !r.IsLossless {
		t.Errorf("record = %+v", r)
	}
	if r.ArtworkURL != "https://img.example/z.jpg" {
		t.Errorf("ArtworkURL = %q", r.ArtworkURL)
	}
}

func TestSecondaryProvider_Unauthorized(t *testing.T) {
	srv := newSecondaryServer(t)
	p := NewSecondaryProvider(srv.URL, "app-1", "", testClient(), nil)

	_, err := p.Search(context.Background(), "x", domain.KindSong, 5)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("error = %v, want provider_unavailable", err)
	}
}

func TestSecondaryProvider_Details(t *testing.T) {
	srv := newSecondaryServer(t)
	p := NewSecondaryProvider(srv.URL, "app-1", "tok", testClient(), nil)
	ctx := context.Background()

	album, err := p.AlbumDetails(ctx, "alb1")
	if err != nil {
		t.Fatal(err)
	}
	if album.Title != "Album Z" || album.Year != 1999 || len(album.Tracks) != 2 {
		t.Fatalf("album = %+v", album)
	}
	if album.Tracks[1].Artist != "Artist X" || album.Tracks[1].ArtworkURL != "https://img.example/z-small.jpg" {
		t.Errorf("track did not inherit album fields: %+v", album.Tracks[1])
	}

	artist, err := p.ArtistDetails(ctx, "77")
	if err != nil {
		t.Fatal(err)
	}
	if len(artist.Albums) != 1 || len(artist.Singles) != 1 || artist.Singles[0].Artist != "Artist X" {
		t.Errorf("artist = %+v", artist)
	}

	td, err := p.TrackDetails(ctx, "9001")
	if err != nil {
		t.Fatal(err)
	}
	if td.Genre != "Rock" || td.Album != "Album Z" || td.Year != 1999 {
		t.Errorf("track details = %+v", td)
	}
	if _, err := p.TrackDetails(ctx, "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing track error = %v", err)
	}
}

func TestSecondaryProvider_ResolveDownload(t *testing.T) {
	srv := newSecondaryServer(t)
	p := NewSecondaryProvider(srv.URL, "app-1", "tok", testClient(), nil)
	ctx := context.Background()

	src, err := p.ResolveDownload(ctx, "9001")
	if err != nil {
		t.Fatal(err)
	}
	if src.StreamURL != "https://cdn.example/9001.flac" || src.Codec != "flac" {
		t.Errorf("source = %+v", src)
	}

	if _, err := p.ResolveDownload(ctx, "preview-only"); !errors.Is(err, domain.ErrNotAcquirable) {
		t.Errorf("error = %v, want not_acquirable", err)
	}
}
