package storage

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"text/template"
)

// PathTemplateData holds the data for path template execution
type PathTemplateData struct {
	Artist      string
	Album       string
	Title       string
	Track       string // two-digit track number, empty when unknown
	TrackPrefix string // "NN - " or empty
	Year        int
}

// BuildPath executes the template and returns the relative path (without extension)
func BuildPath(templateStr string, data *PathTemplateData) (string, error) {
	tmpl, err := template.New("layout").Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// BuildPathTemplateData creates PathTemplateData from track metadata
func BuildPathTemplateData(artist, album, title string, trackNum, year int) *PathTemplateData {
	data := &PathTemplateData{
		Artist: orDefault(Sanitize(artist), "Unknown Artist"),
		Album:  orDefault(Sanitize(album), "Unknown Album"),
		Title:  orDefault(Sanitize(title), "Unknown Title"),
		Year:   year,
	}
	if trackNum > 0 {
		data.Track = FormatTrackNumber(trackNum)
		data.TrackPrefix = data.Track + " - "
	}
	return data
}

// BuildRelativePath renders the layout for data and appends ext. The result
// uses forward slashes and never escapes the library root.
func BuildRelativePath(templateStr string, data *PathTemplateData, ext string) (string, error) {
	rel, err := BuildPath(templateStr, data)
	if err != nil {
		return "", err
	}

	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if rel == "." || strings.HasPrefix(rel, "../") || rel == ".." || path.IsAbs(rel) {
		return "", fmt.Errorf("template produced a path outside the library: %q", rel)
	}

	return rel + ParseExtension(ext), nil
}

// Resolve joins a library-relative path onto root.
func Resolve(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// ParseExtension parses an extension string, ensuring it starts with a dot
func ParseExtension(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// FormatTrackNumber formats a track number with zero-padding
func FormatTrackNumber(n int) string {
	return fmt.Sprintf("%02d", n)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
