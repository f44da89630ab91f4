// Package stream serves published files to playback clients, transcoding
// through ffmpeg when a lossy tier is requested.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/mediainfo"
	"github.com/cesargomez89/navistream/internal/storage"
)

const maxStderr = 4 << 10

var bitrates = map[domain.Quality]string{
	domain.QualityLow:    constants.BitrateLow,
	domain.QualityMedium: constants.BitrateMedium,
	domain.QualityHigh:   constants.BitrateHigh,
}

var contentTypes = map[string]string{
	constants.ExtFLAC: constants.MimeTypeFLAC,
	constants.ExtMP3:  constants.MimeTypeMP3,
	constants.ExtM4A:  constants.MimeTypeMP4,
	constants.ExtMP4:  constants.MimeTypeMP4,
	constants.ExtOGG:  constants.MimeTypeOGG,
	constants.ExtWAV:  constants.MimeTypeWAV,
}

// Flusher is implemented by writers that buffer, such as http.ResponseWriter.
type Flusher interface {
	Flush()
}

// Stream is a lazy, finite byte sequence. It can be consumed once.
type Stream struct {
	ContentType string
	body        io.ReadCloser
}

// FromBytes wraps data already in memory.
func FromBytes(contentType string, data []byte) *Stream {
	return &Stream{ContentType: contentType, body: io.NopCloser(bytes.NewReader(data))}
}

func (s *Stream) Read(p []byte) (int, error) { return s.body.Read(p) }

// Close releases the source. For transcodes it kills the child process and
// waits for it.
func (s *Stream) Close() error { return s.body.Close() }

// WriteTo copies the stream to w in fixed chunks, flushing after each one,
// and closes the stream. A failed write (client gone) ends the copy.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, constants.StreamChunkSize)
	flusher, _ := w.(Flusher)

	var total int64
	var copyErr error
	for {
		n, rerr := io.ReadFull(s.body, buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				copyErr = werr
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			copyErr = rerr
			break
		}
	}

	closeErr := s.Close()
	if copyErr != nil {
		return total, copyErr
	}
	return total, closeErr
}

// Engine opens playback and cover streams.
type Engine struct {
	ffmpegPath string
	logger     *logger.Logger
}

func NewEngine(ffmpegPath string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	if ffmpegPath == "" {
		ffmpegPath = constants.DefaultFFmpegPath
	}
	return &Engine{ffmpegPath: ffmpegPath, logger: log.WithComponent("stream")}
}

// Transcode opens path at quality q. Lossless passes the original bytes
// through; other tiers are re-encoded to MP3. Cancelling ctx or closing the
// stream terminates the encoder.
func (e *Engine) Transcode(ctx context.Context, path string, q domain.Quality) (*Stream, error) {
	if _, err := storage.CheckFile(path); err != nil {
		return nil, err
	}

	if q == domain.QualityLossless {
		f, err := os.Open(path)
		if err != nil {
			return nil, domain.Wrap(domain.ErrLocalIO, err)
		}
		return &Stream{ContentType: ContentTypeFor(path), body: f}, nil
	}

	bitrate, ok := bitrates[q]
	if !ok {
		return nil, fmt.Errorf("%w: unknown quality %q", domain.ErrInvalidRequest, q)
	}

	body, err := e.start(ctx,
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:a:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		"pipe:1",
	)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Transcode started", "path", path, "quality", q, "bitrate", bitrate)
	return &Stream{ContentType: constants.MimeTypeMP3, body: body}, nil
}

// Cover opens the embedded artwork of path as JPEG. Embedded JPEGs are
// served as stored; other picture formats are converted by ffmpeg.
func (e *Engine) Cover(ctx context.Context, path string) (*Stream, error) {
	cover, err := mediainfo.ReadCover(path)
	if err != nil {
		return nil, err
	}
	if cover.MIME == constants.MimeTypeJPEG {
		return FromBytes(constants.MimeTypeJPEG, cover.Data), nil
	}

	body, err := e.start(ctx,
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-an",
		"-c:v", "mjpeg",
		"-frames:v", "1",
		"-f", "image2pipe",
		"pipe:1",
	)
	if err != nil {
		return nil, err
	}
	return &Stream{ContentType: constants.MimeTypeJPEG, body: body}, nil
}

// start runs ffmpeg with stdout piped back. The process is bound to ctx.
func (e *Engine) start(ctx context.Context, args ...string) (*process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = constants.ProcessWaitDelay

	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", filepath.Base(e.ffmpegPath), err)
	}
	return &process{cmd: cmd, stdout: stdout, stderr: stderr, cancel: cancel, logger: e.logger}, nil
}

// process is the read side of a running encoder.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *limitedBuffer
	cancel context.CancelFunc
	logger *logger.Logger

	once    sync.Once
	waitErr error
	eof     bool
}

func (p *process) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err == io.EOF {
		p.eof = true
	}
	return n, err
}

// Close kills the encoder unless it already finished and reaps it. An exit
// failure is reported only when the output was read to the end.
func (p *process) Close() error {
	p.once.Do(func() {
		finished := p.eof
		if !finished {
			p.cancel()
		}
		err := p.cmd.Wait()
		p.cancel()
		if finished && err != nil {
			p.waitErr = fmt.Errorf("ffmpeg failed: %v - %s", err, strings.TrimSpace(p.stderr.String()))
			return
		}
		if !finished {
			p.logger.Debug("Encoder stopped before end of output", "pid", p.cmd.Process.Pid)
		}
	})
	return p.waitErr
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ContentTypeFor maps a file extension to its MIME type.
func ContentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsClientGone reports whether err came from the consumer going away rather
// than from the source.
func IsClientGone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrDeadlineExceeded)
}
