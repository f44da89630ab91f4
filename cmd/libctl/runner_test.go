package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/cesargomez89/navistream/internal/acquire"
	"github.com/cesargomez89/navistream/internal/app"
	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
	"github.com/cesargomez89/navistream/internal/store"
	"github.com/cesargomez89/navistream/internal/stream"
)

// setup returns a runner over a library holding one registered track and
// no configured providers.
func setup(t *testing.T) (*Runner, *bytes.Buffer, *domain.DownloadedTrack) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewSQLiteDB(filepath.Join(dir, "libctl.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Discard()
	root := filepath.Join(dir, "library")
	index := library.NewIndex(db, root, library.DefaultPolicy, log)
	providers := catalog.NewRegistry(log)

	rel := "Air/Moon Safari/01 - La Femme d'Argent.mp3"
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	row, err := index.Register(context.Background(), domain.Registration{
		ExternalIDs: domain.ExternalIDs{domain.ProviderPrimary: "777"},
		Title:       "La Femme d'Argent",
		Artist:      "Air",
		Album:       "Moon Safari",
		LocalPath:   rel,
		SourceTag:   domain.ProviderPrimary,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	svc := app.New(app.Deps{
		Index:     index,
		Pipeline:  acquire.NewPipeline(index, providers, acquire.Options{}, log),
		Engine:    stream.NewEngine("/nonexistent/ffmpeg", log),
		Reader:    mediainfo.NewReader("", log),
		Providers: providers,
		Cache:     db,
	}, log)

	var out bytes.Buffer
	return NewRunner(svc, &out), &out, row
}

func run(r *Runner, args ...string) error {
	cmd := &cli.Command{Name: "libctl", Commands: r.register()}
	return cmd.Run(context.Background(), append([]string{"libctl"}, args...))
}

func TestSearch(t *testing.T) {
	r, out, row := setup(t)

	if err := run(r, "search", "--artist", "air", "--title", "la femme d'argent"); err != nil {
		t.Fatalf("search: %v", err)
	}
	var got domain.DownloadedTrack
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if got.ID != row.ID {
		t.Errorf("id = %d, want %d", got.ID, row.ID)
	}

	err := run(r, "search", "--artist", "Air", "--title", "Kelly Watch the Stars")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("miss err = %v, want not_found", err)
	}
}

func TestVerifyAndSweep(t *testing.T) {
	r, out, row := setup(t)

	if err := run(r, "verify", "--id", strconv.FormatInt(row.ID, 10)); err != nil {
		t.Fatalf("verify: %v", err)
	}
	var verified domain.DownloadedTrack
	if err := json.Unmarshal(out.Bytes(), &verified); err != nil {
		t.Fatal(err)
	}
	if verified.ContentHash == "" {
		t.Error("verify did not fill content_hash")
	}

	out.Reset()
	if err := run(r, "sweep", "--hash"); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var report domain.SweepReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Checked != 1 || report.MarkedStale != 0 {
		t.Errorf("report = %+v", report)
	}

	if err := run(r, "verify", "--id", "9999"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id err = %v, want not_found", err)
	}
}

func TestAcquire(t *testing.T) {
	r, out, row := setup(t)

	// Already indexed: served without any provider.
	if err := run(r, "acquire", "--id", "catalog_primary:777"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	var got domain.DownloadedTrack
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != row.ID {
		t.Errorf("id = %d, want %d", got.ID, row.ID)
	}

	if err := run(r, "acquire", "--artist", "Air"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want invalid_request", err)
	}
	if err := run(r, "acquire", "--artist", "Air", "--title", "Sexy Boy"); !errors.Is(err, domain.ErrNotAcquirable) {
		t.Errorf("err = %v, want not_acquirable", err)
	}
}
