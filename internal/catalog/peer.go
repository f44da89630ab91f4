package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/logger"
)

// PeerProvider drives a peer-to-peer daemon over its REST API. Finished
// transfers land in downloadsDir, which must be readable from this host.
type PeerProvider struct {
	base
	downloadsDir    string
	pollInterval    time.Duration
	transferTimeout time.Duration
}

func NewPeerProvider(baseURL, apiKey, downloadsDir string, pollInterval time.Duration, client *httpclient.Client, log *logger.Logger) *PeerProvider {
	if pollInterval <= 0 {
		pollInterval = constants.DefaultPeerPollInterval
	}
	p := &PeerProvider{
		base:            newBase("peer", baseURL, client, log),
		downloadsDir:    downloadsDir,
		pollInterval:    pollInterval,
		transferTimeout: constants.TransferTimeout,
	}
	if apiKey != "" {
		p.header.Set("X-API-Key", apiKey)
	}
	return p
}

func (p *PeerProvider) StartSearch(ctx context.Context, query string) (string, error) {
	id := uuid.NewString()
	payload := map[string]string{"id": id, "searchText": query}
	if _, err := p.postJSON(ctx, p.searchTimeout, p.baseURL+"/api/v0/searches", payload); err != nil {
		return "", err
	}
	p.logger.Debug("Peer search started", "search_id", id, "query", query)
	return id, nil
}

func (p *PeerProvider) SearchResults(ctx context.Context, searchID string) ([]domain.PeerCandidate, bool, error) {
	u := fmt.Sprintf("%s/api/v0/searches/%s?includeResponses=true", p.baseURL, url.PathEscape(searchID))
	data, err := p.getBytes(ctx, p.searchTimeout, u)
	if err != nil {
		return nil, false, err
	}
	if !gjson.ValidBytes(data) {
		return nil, false, fmt.Errorf("%w: %s: malformed search response", domain.ErrProviderUnavailable, p.name)
	}
	res := gjson.ParseBytes(data)

	complete := res.Get("isComplete").Bool() || strings.HasPrefix(res.Get("state").String(), "Completed")

	var candidates []domain.PeerCandidate
	for _, resp := range res.Get("responses").Array() {
		username := resp.Get("username").String()
		queue := int(resp.Get("queueLength").Int())
		if username == "" {
			continue
		}
		for _, file := range resp.Get("files").Array() {
			name := file.Get("filename").String()
			if name == "" {
				continue
			}
			candidates = append(candidates, domain.PeerCandidate{
				Username:    username,
				Filename:    name,
				Extension:   peerExtension(file.Get("extension").String(), name),
				Size:        file.Get("size").Int(),
				BitRate:     int(file.Get("bitRate").Int()),
				QueueLength: queue,
			})
		}
	}
	return candidates, complete, nil
}

// Transfer enqueues the download, polls until the daemon reports a final
// state and opens the finished file.
func (p *PeerProvider) Transfer(ctx context.Context, c domain.PeerCandidate) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, p.transferTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/api/v0/transfers/downloads/%s", p.baseURL, url.PathEscape(c.Username))
	payload := []map[string]any{{"filename": c.Filename, "size": c.Size}}
	if _, err := p.postJSON(ctx, p.detailsTimeout, u, payload); err != nil {
		return nil, err
	}

	log := p.logger.With("username", c.Username, "filename", c.Filename)
	log.Info("Peer transfer requested")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		state, err := p.transferState(ctx, u, c.Filename)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		switch {
		case strings.Contains(state, "Succeeded"):
			log.Info("Peer transfer completed")
			return p.openDownloaded(c.Filename)
		case peerTransferFailed(state):
			return nil, fmt.Errorf("%w: %s: transfer of %s ended as %q", domain.ErrTransferFailed, p.name, c.Filename, state)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s: transfer of %s timed out", domain.ErrTransferFailed, p.name, c.Filename)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// transferState returns the daemon's state string for filename, or "" while
// the transfer is not yet listed.
func (p *PeerProvider) transferState(ctx context.Context, u, filename string) (string, error) {
	data, err := p.getBytes(ctx, p.detailsTimeout, u)
	if err != nil {
		return "", err
	}
	res := gjson.ParseBytes(data)
	for _, dir := range res.Get("directories").Array() {
		for _, file := range dir.Get("files").Array() {
			if file.Get("filename").String() == filename {
				return file.Get("state").String(), nil
			}
		}
	}
	return "", nil
}

func peerTransferFailed(state string) bool {
	for _, s := range []string{"Errored", "Cancelled", "Rejected", "TimedOut", "Failed"} {
		if strings.Contains(state, s) {
			return true
		}
	}
	return false
}

// openDownloaded finds the file the daemon wrote. Remote names use
// backslashes; the daemon keeps the last remote directory.
func (p *PeerProvider) openDownloaded(remote string) (io.ReadCloser, error) {
	parts := strings.Split(strings.ReplaceAll(remote, `\`, "/"), "/")
	parts = lo.Filter(parts, func(s string, _ int) bool { return s != "" })
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s: empty remote filename", domain.ErrTransferFailed, p.name)
	}
	name := parts[len(parts)-1]

	paths := []string{filepath.Join(p.downloadsDir, name)}
	if len(parts) > 1 {
		paths = append([]string{filepath.Join(p.downloadsDir, parts[len(parts)-2], name)}, paths...)
	}
	for _, candidate := range paths {
		f, err := os.Open(candidate)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrLocalIO, err)
		}
	}
	return nil, fmt.Errorf("%w: %s: finished file %s not found under %s", domain.ErrTransferFailed, p.name, name, p.downloadsDir)
}

// peerExtension lowercases ext, or derives it from the remote filename.
func peerExtension(ext, filename string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext != "" {
		return ext
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/"))), ".")
}

var _ PeerTransferProvider = (*PeerProvider)(nil)
