package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
)

// Sanitize makes s safe to use as a single path component.
// Separators become underscores and the result is trimmed to a
// filesystem-safe byte length on a rune boundary.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case strings.ContainsRune("<>:\"|?*", r):
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)

	mapped = strings.TrimSpace(mapped)
	mapped = strings.TrimRight(mapped, ". ")
	mapped = truncateBytes(mapped, constants.MaxPathComponentLength)
	mapped = strings.TrimRight(mapped, ". ")

	return mapped
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, constants.FilePermissions)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}

func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func VerifyFile(path, expectedHash string) (bool, error) {
	hash, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return hash == expectedHash, nil
}

// CheckFile requires path to be a regular file with at least one byte.
func CheckFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Wrap(domain.ErrIntegrityFailed, err)
		}
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", domain.ErrIntegrityFailed, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrIntegrityFailed, path)
	}
	return info, nil
}

// TempPath is where bytes for finalPath are staged before publish. token
// keeps concurrent stagings of the same path apart.
func TempPath(finalPath, token string) string {
	if token == "" {
		return finalPath + constants.ExtTmp
	}
	return finalPath + "." + token + constants.ExtTmp
}

// Publish replaces finalPath with tmpPath in a single rename.
// On failure the staged file is removed.
func Publish(tmpPath, finalPath string) error {
	if err := EnsureDir(filepath.Dir(finalPath)); err != nil {
		_ = os.Remove(tmpPath)
		return domain.Wrap(domain.ErrLocalIO, err)
	}
	if err := os.Remove(finalPath); err != nil && !os.IsNotExist(err) {
		_ = os.Remove(tmpPath)
		return domain.Wrap(domain.ErrLocalIO, fmt.Errorf("failed to remove existing %s: %w", finalPath, err))
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return domain.Wrap(domain.ErrLocalIO, fmt.Errorf("failed to move %s to %s: %w", tmpPath, finalPath, err))
	}
	return nil
}

// SweepTempFiles removes staged files under root last modified before cutoff
// and returns their paths. Directories left empty are pruned.
func SweepTempFiles(root string, cutoff time.Time) ([]string, error) {
	var removed []string
	dirs := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), constants.ExtTmp) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)
		dirs[filepath.Dir(path)] = struct{}{}
		return nil
	})

	for dir := range dirs {
		for dir != root && strings.HasPrefix(dir, root) {
			if err := DeleteFolderIfEmpty(dir); err != nil {
				break
			}
			dir = filepath.Dir(dir)
		}
	}

	return removed, err
}
