package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
)

// fetcher streams remote audio and artwork.
type fetcher struct {
	client         *httpclient.Client
	artworkTimeout time.Duration
}

// open starts a GET of rawURL. The caller closes the body.
func (f *fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad stream url: %v", domain.ErrTransferFailed, err)
	}
	req.Header.Set("User-Agent", constants.UserAgent)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.Wrap(domain.ErrTransferFailed, err)
	}
	return resp.Body, nil
}

// image downloads artwork within the artwork timeout.
func (f *fetcher) image(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.artworkTimeout)
	defer cancel()
	return f.client.Image(ctx, rawURL)
}

// trackedReader stops on cancellation and remembers read-side failures so
// they can be told apart from disk errors.
type trackedReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// writeTemp copies src into f and closes it. Any failure removes the
// partial file.
func writeTemp(ctx context.Context, f *os.File, src io.Reader) (int64, error) {
	tmpPath := f.Name()
	tr := &trackedReader{ctx: ctx, r: src}
	n, copyErr := io.Copy(f, tr)
	closeErr := f.Close()

	switch {
	case copyErr != nil && tr.err != nil:
		_ = os.Remove(tmpPath)
		if errors.Is(copyErr, context.Canceled) {
			return n, copyErr
		}
		return n, fmt.Errorf("%w: aborted after %d bytes: %v", domain.ErrTransferFailed, n, copyErr)
	case copyErr != nil:
		_ = os.Remove(tmpPath)
		return n, domain.Wrap(domain.ErrLocalIO, copyErr)
	case closeErr != nil:
		_ = os.Remove(tmpPath)
		return n, domain.Wrap(domain.ErrLocalIO, closeErr)
	case n == 0:
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: source was empty", domain.ErrTransferFailed)
	}
	return n, nil
}
