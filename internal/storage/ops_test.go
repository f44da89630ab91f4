package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Normal Name", "Normal Name"},
		{"Slash/Name", "Slash_Name"},
		{"Back\\Slash", "Back_Slash"},
		{"Colon:Name", "ColonName"},
		{"Trailing Dot.", "Trailing Dot"},
		{"AC/DC", "AC_DC"},
		{"<Invalid>", "Invalid"},
		{"..", ""},
		{"  padded  ", "padded"},
	}

	for _, tt := range tests {
		got := Sanitize(tt.input)
		if got != tt.expected {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSanitizeTrimsOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", constants.MaxPathComponentLength)
	got := Sanitize(long)
	if len(got) > constants.MaxPathComponentLength {
		t.Errorf("expected at most %d bytes, got %d", constants.MaxPathComponentLength, len(got))
	}
	if !strings.HasPrefix(long, got) || !isValidUTF8(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
}

func isValidUTF8(s string) bool {
	return strings.ToValidUTF8(s, "?") == s
}

func TestHashAndVerifyFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.bin")
	if err := WriteFile(p, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	hash, err := HashFile(p)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("hello")
	if hash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected hash %s", hash)
	}
	ok, err := VerifyFile(p, hash)
	if err != nil || !ok {
		t.Errorf("VerifyFile = %v, %v", ok, err)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.flac")
	_ = WriteFile(empty, nil)
	if _, err := CheckFile(empty); !errors.Is(err, domain.ErrIntegrityFailed) {
		t.Errorf("empty file: got %v, want integrity_failed", err)
	}

	if _, err := CheckFile(filepath.Join(dir, "missing.flac")); !errors.Is(err, domain.ErrIntegrityFailed) {
		t.Errorf("missing file: got %v, want integrity_failed", err)
	}

	if _, err := CheckFile(dir); !errors.Is(err, domain.ErrIntegrityFailed) {
		t.Errorf("directory: got %v, want integrity_failed", err)
	}

	ok := filepath.Join(dir, "ok.flac")
	_ = WriteFile(ok, []byte{1})
	if info, err := CheckFile(ok); err != nil || info.Size() != 1 {
		t.Errorf("valid file: got %v, %v", info, err)
	}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "Artist", "Album", "01 - Song.flac")
	tmp := TempPath(final, "a1b2c3d4")
	if tmp == TempPath(final, "e5f6a7b8") || !strings.HasSuffix(tmp, constants.ExtTmp) {
		t.Fatalf("unexpected staging path %q", tmp)
	}

	if err := EnsureDir(filepath.Dir(final)); err != nil {
		t.Fatal(err)
	}
	_ = WriteFile(final, []byte("old"))
	_ = WriteFile(tmp, []byte("new"))

	if err := Publish(tmp, final); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	data, _ := os.ReadFile(final)
	if string(data) != "new" {
		t.Errorf("expected replaced content, got %q", data)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("expected tmp file gone")
	}
}

func TestPublishMissingTmp(t *testing.T) {
	dir := t.TempDir()
	err := Publish(filepath.Join(dir, "nope.tmp"), filepath.Join(dir, "nope"))
	if !errors.Is(err, domain.ErrLocalIO) {
		t.Errorf("expected local_io_failed, got %v", err)
	}
}

func TestSweepTempFiles(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "A", "B")
	_ = EnsureDir(nested)

	oldTmp := filepath.Join(nested, "01 - x.flac.tmp")
	newTmp := filepath.Join(root, "fresh.mp3.tmp")
	keep := filepath.Join(root, "kept.flac")
	for _, p := range []string{oldTmp, newTmp, keep} {
		_ = WriteFile(p, []byte("x"))
	}
	past := time.Now().Add(-time.Hour)
	_ = os.Chtimes(oldTmp, past, past)

	removed, err := SweepTempFiles(root, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != oldTmp {
		t.Errorf("unexpected removals %v", removed)
	}
	if _, err := os.Stat(newTmp); err != nil {
		t.Error("fresh tmp must survive")
	}
	if _, err := os.Stat(filepath.Join(root, "A")); !os.IsNotExist(err) {
		t.Error("expected empty directories pruned")
	}
}

func TestSweepTempFilesMissingRoot(t *testing.T) {
	removed, err := SweepTempFiles(filepath.Join(t.TempDir(), "absent"), time.Now())
	if err != nil || len(removed) != 0 {
		t.Errorf("got %v, %v", removed, err)
	}
}
