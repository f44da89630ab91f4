// Package mediainfo reads technical and artistic metadata from local audio files.
package mediainfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
	"github.com/tidwall/gjson"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
)

// Tags are the artistic fields found in a file.
type Tags struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Year        int
	TrackNumber int
	Cover       *Cover
}

// Cover is an embedded picture.
type Cover struct {
	MIME string
	Data []byte
}

// Reader probes files. Technical fields come from ffprobe when available;
// FLAC files fall back to their STREAMINFO block.
type Reader struct {
	ffprobePath string
	logger      *logger.Logger
}

func NewReader(ffprobePath string, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.Default()
	}
	return &Reader{ffprobePath: ffprobePath, logger: log.WithComponent("mediainfo")}
}

// Read returns the combined record for path. A missing title falls back to
// the filename stem.
func (r *Reader) Read(ctx context.Context, path string) (*domain.AudioMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", domain.ErrInvalidRequest, path)
	}

	md := &domain.AudioMetadata{
		Path:   path,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}

	tags, err := ReadTags(path)
	if err != nil {
		r.logger.Debug("No readable tags", "path", path, "error", err)
	} else {
		md.Title = tags.Title
		md.Artist = tags.Artist
		md.Album = tags.Album
		md.Genre = tags.Genre
		md.TrackNumber = tags.TrackNumber
		md.HasCover = tags.Cover != nil
		if tags.Year > 0 {
			md.Date = strconv.Itoa(tags.Year)
		}
	}
	if md.Title == "" {
		md.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := r.probe(ctx, path, md); err != nil {
		r.logger.Debug("ffprobe unavailable, using container fallback", "path", path, "error", err)
		if err := streamInfo(path, info.Size(), md); err != nil {
			r.logger.Debug("No technical metadata", "path", path, "error", err)
		}
	}
	return md, nil
}

// probe fills technical fields from ffprobe's JSON output.
func (r *Reader) probe(ctx context.Context, path string, md *domain.AudioMetadata) error {
	if r.ffprobePath == "" {
		return errors.New("ffprobe disabled")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.MetadataTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffprobe failed: %v - %s", err, stderr.String())
	}

	out := stdout.Bytes()
	if !gjson.ValidBytes(out) {
		return errors.New("ffprobe returned invalid JSON")
	}
	stream := gjson.GetBytes(out, "streams.0")
	if !stream.Exists() {
		return errors.New("no audio stream found")
	}
	format := gjson.GetBytes(out, "format")

	md.Codec = stream.Get("codec_name").String()
	md.SampleRate = int(stream.Get("sample_rate").Int())
	md.Channels = int(stream.Get("channels").Int())
	md.BitRate = int(firstNonZero(stream.Get("bit_rate"), format.Get("bit_rate")).Int())
	md.Duration = firstNonZero(stream.Get("duration"), format.Get("duration")).Float()
	return nil
}

func firstNonZero(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if r.Float() != 0 {
			return r
		}
	}
	return gjson.Result{}
}

// streamInfo decodes the FLAC STREAMINFO block. Bitrate is averaged over
// the file size.
func streamInfo(path string, size int64, md *domain.AudioMetadata) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, err := flac.ParseMetadata(f)
	if err != nil {
		return err
	}
	si, err := meta.GetStreamInfo()
	if err != nil {
		return err
	}

	md.Codec = "flac"
	md.SampleRate = si.SampleRate
	md.Channels = si.ChannelCount
	if si.SampleRate > 0 && si.SampleCount > 0 {
		md.Duration = float64(si.SampleCount) / float64(si.SampleRate)
		md.BitRate = int(float64(size*8) / md.Duration)
	}
	return nil
}

// ReadTags reads the artistic tags embedded in path.
func ReadTags(path string) (*Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}

	t := &Tags{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
		Genre:  strings.TrimSpace(m.Genre()),
		Year:   m.Year(),
	}
	t.TrackNumber, _ = m.Track()
	if p := m.Picture(); p != nil && len(p.Data) > 0 {
		mime := p.MIMEType
		if mime == "" {
			mime = constants.MimeTypeJPEG
		}
		t.Cover = &Cover{MIME: mime, Data: p.Data}
	}
	return t, nil
}

// ReadCover returns the embedded cover of path, or not_found.
func ReadCover(path string) (*Cover, error) {
	t, err := ReadTags(path)
	if err != nil {
		var pathErr *fs.PathError
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		case errors.As(err, &pathErr):
			return nil, domain.Wrap(domain.ErrLocalIO, err)
		}
		// Unparseable tags carry no cover.
		return nil, fmt.Errorf("%w: no cover embedded in %s", domain.ErrNotFound, filepath.Base(path))
	}
	if t.Cover == nil {
		return nil, fmt.Errorf("%w: no cover embedded in %s", domain.ErrNotFound, filepath.Base(path))
	}
	return t.Cover, nil
}
