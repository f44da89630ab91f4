package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
)

// maxResponseBytes bounds JSON bodies read from providers.
const maxResponseBytes = 16 << 20

// base is the HTTP plumbing shared by every adapter.
type base struct {
	client  *httpclient.Client
	logger  *logger.Logger
	header  http.Header
	name    string
	baseURL string

	searchTimeout  time.Duration
	detailsTimeout time.Duration
}

func newBase(name, baseURL string, client *httpclient.Client, log *logger.Logger) base {
	if client == nil {
		client = httpclient.NewClient(nil, httpclient.Options{})
	}
	if log == nil {
		log = logger.Default()
	}
	return base{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  log.WithComponent(name),
		header:  http.Header{},

		searchTimeout:  constants.SearchTimeout,
		detailsTimeout: constants.DetailsTimeout,
	}
}

// SetTimeouts overrides the per-call search and details deadlines.
// Zero values keep the current setting.
func (b *base) SetTimeouts(search, details time.Duration) {
	if search > 0 {
		b.searchTimeout = search
	}
	if details > 0 {
		b.detailsTimeout = details
	}
}

func (b *base) do(ctx context.Context, timeout time.Duration, method, u string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.header {
		req.Header[k] = v
	}

	b.logger.Debug("API request", "method", method, "url", u)
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, classify(b.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(b.name, err)
	}
	return data, nil
}

// getBytes fetches u and returns the raw body.
func (b *base) getBytes(ctx context.Context, timeout time.Duration, u string) ([]byte, error) {
	return b.do(ctx, timeout, http.MethodGet, u, nil)
}

// getJSON decodes the body of u into target, keeping numbers as json.Number.
func (b *base) getJSON(ctx context.Context, timeout time.Duration, u string, target any) error {
	data, err := b.getBytes(ctx, timeout, u)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return classify(b.name, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (b *base) postJSON(ctx context.Context, timeout time.Duration, u string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return b.do(ctx, timeout, http.MethodPost, u, body)
}
