package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/storage"
	"github.com/cesargomez89/navistream/internal/store"
)

type fixture struct {
	index   *Index
	matcher *Matcher
	root    string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewSQLiteDB(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	root := filepath.Join(dir, "library")
	log := logger.Discard()
	ix := NewIndex(db, root, DefaultPolicy, log)
	return &fixture{index: ix, matcher: NewMatcher(ix, log), root: root}
}

// add writes a file (empty when content is nil) and registers it.
func (f *fixture) add(t *testing.T, id domain.ExternalID, artist, title, album string, content []byte) *domain.DownloadedTrack {
	t.Helper()
	rel := storage.Sanitize(artist) + "/" + storage.Sanitize(album) + "/" + storage.Sanitize(title) + "-" + string(id.Provider) + "-" + id.Value + ".flac"
	abs := storage.Resolve(f.root, rel)
	if err := storage.EnsureDir(filepath.Dir(abs)); err != nil {
		t.Fatal(err)
	}
	if err := storage.WriteFile(abs, content); err != nil {
		t.Fatal(err)
	}
	row, err := f.index.Register(context.Background(), domain.Registration{
		ExternalIDs: domain.ExternalIDs{id.Provider: id.Value},
		Title:       title,
		Artist:      artist,
		Album:       album,
		LocalPath:   rel,
		SourceTag:   id.Provider,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return row
}

var audio = []byte("fLaC-data")

func TestMatch_ExternalID(t *testing.T) {
	f := setup(t)
	row := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "12345"}, "Daft Punk", "One More Time", "Discovery", audio)

	got, err := f.matcher.Match(context.Background(), domain.TrackDescriptor{
		IDs: []domain.ExternalID{{Provider: domain.ProviderPrimary, Value: "12345"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != row.ID {
		t.Fatalf("expected row %d, got %+v", row.ID, got)
	}
}

func TestMatch_AlbumDiscriminator(t *testing.T) {
	f := setup(t)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "ABBA", "Dancing Queen", "Arrival", audio)
	gold := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "2"}, "ABBA", "Dancing Queen", "Gold", audio)

	got, err := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "ABBA", Title: "Dancing queen", Album: "gold"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != gold.ID {
		t.Fatalf("expected Gold row %d, got %+v", gold.ID, got)
	}
}

func TestMatch_PrecisionCliff(t *testing.T) {
	f := setup(t)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Adele", "Hello", "25", audio)

	got, err := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "Adele", Title: "Yellow"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestMatch_ExactTitleNeverReturnsOtherRow(t *testing.T) {
	f := setup(t)
	hello := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Adele", "Hello", "", audio)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "2"}, "Adele", "Yellow", "", audio)

	got, err := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "adele", Title: "HELLO"})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != hello.ID {
		t.Fatalf("expected Hello row, got %+v", got)
	}

	// Once Hello's file is gone, Yellow still must not be returned for "Hello".
	if err := os.Remove(f.index.AbsPath(hello)); err != nil {
		t.Fatal(err)
	}
	got, err = f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "Adele", Title: "Hello"})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestMatch_TitleThresholdBoundary(t *testing.T) {
	f := setup(t)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "20"}, "Artist", "abcdefghijklmnopqrst", "", audio)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "25"}, "Artist", "abcdefghijklmnopqrstuvwxy", "", audio)

	ctx := context.Background()
	got, _ := f.matcher.Match(ctx, domain.TrackDescriptor{Artist: "Artist", Title: "xyzdefghijklmnopqrst"})
	if got == nil || got.ExternalIDs[domain.ProviderPrimary] != "20" {
		t.Errorf("score 85 must accept, got %+v", got)
	}

	got, _ = f.matcher.Match(ctx, domain.TrackDescriptor{Artist: "Artist", Title: "1234efghijklmnopqrstuvwxy"})
	if got != nil {
		t.Errorf("score 84 must reject, got %+v", got)
	}
}

func TestMatch_AlbumThresholdBoundary(t *testing.T) {
	f := setup(t)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Artist", "Song", "abcdefghij", audio)
	f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "2"}, "Other", "Song", "abcdefghijklm", audio)

	ctx := context.Background()
	got, _ := f.matcher.Match(ctx, domain.TrackDescriptor{Artist: "Artist", Title: "Song", Album: "xyzdefghij"})
	if got == nil {
		t.Error("album score 70 must accept")
	}

	got, _ = f.matcher.Match(ctx, domain.TrackDescriptor{Artist: "Other", Title: "Song", Album: "wxyzefghijklm"})
	if got != nil {
		t.Errorf("album score 69 must reject, got %+v", got)
	}
}

func TestMatch_TieBreaksOnLowestID(t *testing.T) {
	f := setup(t)
	first := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Artist", "Song", "", audio)
	f.add(t, domain.ExternalID{Provider: domain.ProviderSecondary, Value: "1"}, "Artist", "Song", "", audio)

	got, _ := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "Artist", Title: "Song"})
	if got == nil || got.ID != first.ID {
		t.Errorf("expected earliest row %d, got %+v", first.ID, got)
	}
}

func TestMatch_ArtistSubstring(t *testing.T) {
	f := setup(t)
	row := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Simon & Garfunkel", "The Boxer", "", audio)

	got, _ := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "Garfunkel", Title: "The Boxer"})
	if got == nil || got.ID != row.ID {
		t.Errorf("expected substring artist match, got %+v", got)
	}
}

func TestMatch_ZeroByteFileIsMissAndStale(t *testing.T) {
	f := setup(t)
	row := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "Artist", "Song", "", nil)

	ctx := context.Background()
	got, err := f.matcher.Match(ctx, domain.TrackDescriptor{
		Artist: "Artist", Title: "Song",
		IDs: []domain.ExternalID{{Provider: domain.ProviderPrimary, Value: "1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected miss for zero-byte file, got %+v", got)
	}

	stale, _ := f.index.Get(ctx, row.ID)
	if !stale.Stale {
		t.Error("expected row marked stale")
	}
	if r, _ := f.index.LookupByExternal(ctx, domain.ProviderPrimary, "1"); r != nil {
		t.Error("stale rows are excluded from external lookup")
	}
}

func TestMatch_InvalidDescriptor(t *testing.T) {
	f := setup(t)
	_, err := f.matcher.Match(context.Background(), domain.TrackDescriptor{Artist: "Only"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected invalid_request, got %v", err)
	}
}

func TestIndex_RegisterIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reg := domain.Registration{
		ExternalIDs: domain.ExternalIDs{domain.ProviderPrimary: "12345"},
		Title:       "One More Time",
		Artist:      "Daft Punk",
		Album:       "Discovery",
		LocalPath:   "Daft Punk/Discovery/01 - One More Time.flac",
		SourceTag:   domain.ProviderPrimary,
	}
	a, err := f.index.Register(ctx, reg)
	if err != nil {
		t.Fatal(err)
	}
	reg.LocalPath = "Daft Punk/Discovery/01 - One More Time (2).flac"
	b, err := f.index.Register(ctx, reg)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID || b.LocalPath != reg.LocalPath {
		t.Errorf("expected single updated row, got %d/%d %q", a.ID, b.ID, b.LocalPath)
	}
	if b.TitleNorm != "one more time" || b.ArtistNorm != "daft punk" {
		t.Errorf("expected normalized keys, got %q %q", b.TitleNorm, b.ArtistNorm)
	}
}

func TestIndex_RegisterValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bad := []domain.Registration{
		{Title: "x", LocalPath: "x.flac"},
		{ExternalIDs: domain.ExternalIDs{"bogus": "1"}, LocalPath: "x.flac"},
		{ExternalIDs: domain.ExternalIDs{domain.ProviderPrimary: "1"}, LocalPath: "/abs/x.flac"},
		{ExternalIDs: domain.ExternalIDs{domain.ProviderPrimary: "1"}, LocalPath: "../x.flac"},
		{ExternalIDs: domain.ExternalIDs{domain.ProviderPrimary: "1"}},
	}
	for i, reg := range bad {
		if _, err := f.index.Register(ctx, reg); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("case %d: expected invalid_request, got %v", i, err)
		}
	}
}

func TestIndex_VerifyAndSweep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	good := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "1"}, "A", "Good", "", audio)
	gone := f.add(t, domain.ExternalID{Provider: domain.ProviderPrimary, Value: "2"}, "A", "Gone", "", audio)

	row, err := f.index.Verify(ctx, good.ID, true)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if row.ContentHash == "" {
		t.Error("expected content hash filled in")
	}

	// Tamper with the file: the stored hash no longer matches.
	if err := os.WriteFile(f.index.AbsPath(good), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.index.Verify(ctx, good.ID, true); !errors.Is(err, domain.ErrIntegrityFailed) {
		t.Errorf("expected integrity_failed on mismatch, got %v", err)
	}

	_ = os.Remove(f.index.AbsPath(gone))
	report, err := f.index.Sweep(ctx, false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if report.Checked != 1 || report.MarkedStale != 1 || report.Deleted != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	report, err = f.index.Sweep(ctx, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.Deleted != 2 {
		t.Errorf("expected both stale rows deleted, got %+v", report)
	}

	if _, err := f.index.Verify(ctx, 999, false); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
