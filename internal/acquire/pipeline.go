// Package acquire turns a track descriptor into a published, indexed file.
// Concurrent requests for the same track share one job.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cesargomez89/navistream/internal/catalog"
	"github.com/cesargomez89/navistream/internal/constants"
	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
	"github.com/cesargomez89/navistream/internal/library"
	"github.com/cesargomez89/navistream/internal/logger"
	"github.com/cesargomez89/navistream/internal/storage"
)

// Options configure a Pipeline. Zero values take the defaults in constants.
type Options struct {
	PathTemplate   string
	WorkerPoolSize int
	PollTimeout    time.Duration
	PollInterval   time.Duration
	ArtworkTimeout time.Duration
	HTTPClient     *httpclient.Client
}

// Pipeline is the only writer of the library root.
type Pipeline struct {
	index     *library.Index
	matcher   *library.Matcher
	providers *catalog.Registry
	fetch     *fetcher
	pool      *semaphore.Weighted
	logger    *logger.Logger

	pathTemplate string
	pollTimeout  time.Duration
	pollInterval time.Duration

	// layout serializes staging, publishing and removal under the root
	// so directory pruning never races a writer.
	layout sync.Mutex

	mu   sync.Mutex
	jobs map[string]*job
	live map[*job]struct{}
}

// job is one in-flight acquisition. Fields other than requesters and
// committed are written only by the running goroutine before done closes.
type job struct {
	id          string
	fingerprint string
	started     time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	// guarded by Pipeline.mu
	state      domain.JobState
	requesters int
	committed  bool

	row *domain.DownloadedTrack
	err error
}

// JobInfo is a snapshot of an in-flight job.
type JobInfo struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	State       domain.JobState `json:"state"`
	Requesters  int             `json:"requesters"`
	StartedAt   time.Time       `json:"started_at"`
}

func NewPipeline(index *library.Index, providers *catalog.Registry, opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	if opts.PathTemplate == "" {
		opts.PathTemplate = constants.DefaultPathTemplate
	}
	if opts.WorkerPoolSize < 1 {
		opts.WorkerPoolSize = constants.DefaultWorkerPoolSize
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = constants.DefaultPeerPollTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.DefaultPeerPollInterval
	}
	if opts.ArtworkTimeout <= 0 {
		opts.ArtworkTimeout = constants.ArtworkTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.NewClient(nil, httpclient.Options{})
	}

	return &Pipeline{
		index:        index,
		matcher:      library.NewMatcher(index, log),
		providers:    providers,
		fetch:        &fetcher{client: opts.HTTPClient, artworkTimeout: opts.ArtworkTimeout},
		pool:         semaphore.NewWeighted(int64(opts.WorkerPoolSize)),
		logger:       log.WithComponent("acquire"),
		pathTemplate: opts.PathTemplate,
		pollTimeout:  opts.PollTimeout,
		pollInterval: opts.PollInterval,
		jobs:         make(map[string]*job),
		live:         make(map[*job]struct{}),
	}
}

// Recover removes staged files left by a previous process. Call it before
// the first Acquire.
func (p *Pipeline) Recover() (int, error) {
	removed, err := storage.SweepTempFiles(p.index.Root(), time.Now())
	for _, path := range removed {
		p.logger.Info("Removed interrupted transfer", "path", path)
	}
	if err != nil {
		return len(removed), domain.Wrap(domain.ErrLocalIO, err)
	}
	return len(removed), nil
}

// Acquire returns the row serving d, downloading it first when the library
// has no usable copy. Cancelling ctx detaches this caller only; the job
// keeps running while others wait or once tagging has begun.
func (p *Pipeline) Acquire(ctx context.Context, d domain.TrackDescriptor) (*domain.DownloadedTrack, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	row, err := p.matcher.Match(ctx, d)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	j := p.attach(d)

	select {
	case <-j.done:
		return j.row, j.err
	case <-ctx.Done():
		p.detach(j)
		return nil, ctx.Err()
	}
}

// Jobs lists in-flight jobs, oldest first.
func (p *Pipeline) Jobs() []JobInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]JobInfo, 0, len(p.jobs))
	for _, j := range p.jobs {
		out = append(out, JobInfo{
			ID:          j.id,
			Fingerprint: j.fingerprint,
			State:       j.state,
			Requesters:  j.requesters,
			StartedAt:   j.started,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	return out
}

func (p *Pipeline) attach(d domain.TrackDescriptor) *job {
	fp := Fingerprint(d)

	p.mu.Lock()
	defer p.mu.Unlock()

	if j, ok := p.jobs[fp]; ok {
		// A job whose last requester left is already cancelled and only
		// unwinding. Start over instead of inheriting its error.
		if j.requesters > 0 || j.committed {
			j.requesters++
			p.logger.Debug("Joined in-flight job", "fingerprint", fp, "job_id", j.id, "requesters", j.requesters)
			return j
		}
		p.logger.Debug("Replacing cancelled job", "fingerprint", fp, "job_id", j.id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:          uuid.NewString(),
		fingerprint: fp,
		started:     time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       domain.JobResolving,
		requesters:  1,
	}
	p.jobs[fp] = j
	p.live[j] = struct{}{}
	go p.run(ctx, j, d)
	return j
}

// detach drops one requester. The last one leaving cancels the job unless
// tagging already started.
func (p *Pipeline) detach(j *job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j.requesters--
	if j.requesters <= 0 && !j.committed {
		p.logger.Info("Last requester left, cancelling job", "fingerprint", j.fingerprint, "job_id", j.id)
		j.cancel()
	}
}

func (p *Pipeline) setState(j *job, s domain.JobState) {
	p.mu.Lock()
	j.state = s
	p.mu.Unlock()
}

// commit moves j into tagging, after which it finishes regardless of its
// requesters. It fails once every requester has left.
func (p *Pipeline) commit(j *job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j.requesters <= 0 {
		return context.Canceled
	}
	j.state = domain.JobTagging
	j.committed = true
	return nil
}

func (p *Pipeline) run(ctx context.Context, j *job, d domain.TrackDescriptor) {
	log := p.logger.WithFingerprint(j.fingerprint, j.id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in job", "panic", r)
			j.row, j.err = nil, fmt.Errorf("acquisition panicked: %v", r)
		}
		state := domain.JobDone
		if j.err != nil {
			state = domain.JobFailed
		}
		p.mu.Lock()
		j.state = state
		if p.jobs[j.fingerprint] == j {
			delete(p.jobs, j.fingerprint)
		}
		delete(p.live, j)
		p.mu.Unlock()
		j.cancel()
		close(j.done)
	}()

	log.Info("Acquisition started", "artist", d.Artist, "title", d.Title)
	j.row, j.err = p.acquire(ctx, j, d, log)
	if j.err != nil {
		log.Warn("Acquisition failed", "kind", domain.KindOf(j.err), "error", j.err)
		return
	}
	log.Info("Acquisition completed", "track_id", j.row.ID, "local_path", j.row.LocalPath)
}

func (p *Pipeline) acquire(ctx context.Context, j *job, d domain.TrackDescriptor, log *logger.Logger) (row *domain.DownloadedTrack, err error) {
	// A job for the same fingerprint may have published between the
	// caller's match and this job starting.
	if row, err := p.matcher.Match(ctx, d); err == nil && row != nil {
		return row, nil
	}

	src, err := p.resolve(ctx, d, log)
	if err != nil {
		return nil, err
	}

	info := mergeInfo(d, src.details)
	rel, err := storage.BuildRelativePath(p.pathTemplate,
		storage.BuildPathTemplateData(info.Artist, info.Album, info.Title, info.TrackNumber, info.Year),
		src.ext)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	finalPath := storage.Resolve(p.index.Root(), rel)
	tmpPath := storage.TempPath(finalPath, j.id[:8])
	tmp, err := p.stage(tmpPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := storage.RemoveFile(tmpPath); rmErr != nil && !storage.IsNotExist(rmErr) {
			log.Warn("Failed to remove staged file", "path", tmpPath, "error", rmErr)
		}
		p.layout.Lock()
		p.pruneDirs(filepath.Dir(finalPath))
		p.layout.Unlock()
	}()

	p.setState(j, domain.JobStreaming)
	body, err := src.open(ctx)
	if err != nil {
		_ = tmp.Close()
		return nil, err
	}
	n, err := writeTemp(ctx, tmp, body)
	_ = body.Close()
	if err != nil {
		return nil, err
	}
	log.Info("Transfer finished", "provider", src.tag, "bytes", n, "path", tmpPath)

	// Past this point the job finishes even if every requester leaves.
	if err := p.commit(j); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	p.tag(ctx, tmpPath, strings.TrimPrefix(src.ext, "."), d, info, log)

	hash, hashErr := storage.HashFile(tmpPath)
	if hashErr != nil {
		log.Warn("Failed to hash staged file", "path", tmpPath, "error", hashErr)
	}

	p.setState(j, domain.JobPublishing)
	row, err = p.publish(ctx, tmpPath, finalPath, domain.Registration{
		ExternalIDs: registrationIDs(d, src, j.fingerprint),
		Title:       info.Title,
		Artist:      info.Artist,
		Album:       info.Album,
		LocalPath:   rel,
		SourceTag:   src.tag,
		ContentHash: hash,
	}, log)
	return row, err
}

// stage creates the staging file and the directories above it.
func (p *Pipeline) stage(tmpPath string) (*os.File, error) {
	p.layout.Lock()
	defer p.layout.Unlock()
	if err := storage.EnsureDir(filepath.Dir(tmpPath)); err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return nil, domain.Wrap(domain.ErrLocalIO, err)
	}
	return f, nil
}

// publish moves the staged file into place and indexes it. Remove holds the
// same lock, so a row is never dropped while its file is being replaced.
func (p *Pipeline) publish(ctx context.Context, tmpPath, finalPath string, reg domain.Registration, log *logger.Logger) (*domain.DownloadedTrack, error) {
	p.layout.Lock()
	defer p.layout.Unlock()

	if err := storage.Publish(tmpPath, finalPath); err != nil {
		return nil, err
	}
	row, err := p.index.Register(ctx, reg)
	if err != nil {
		// An unindexed file must not stay in the library.
		if rmErr := storage.RemoveFile(finalPath); rmErr != nil && !storage.IsNotExist(rmErr) {
			log.Error("Failed to remove unregistered file", "path", finalPath, "error", rmErr)
		}
		return nil, err
	}
	return row, nil
}

// pruneDirs removes dir and its parents below the library root while they
// are empty. Callers hold p.layout.
func (p *Pipeline) pruneDirs(dir string) {
	root := filepath.Clean(p.index.Root())
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := storage.DeleteFolderIfEmpty(dir); err != nil {
			break
		}
	}
}

// trackInfo is what the layout and the tagger need.
type trackInfo struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	ArtworkURL  string
	TrackNumber int
	Year        int
}

// mergeInfo prefers the descriptor's text and fills gaps from catalog details.
func mergeInfo(d domain.TrackDescriptor, details *domain.TrackDetails) trackInfo {
	info := trackInfo{Title: d.Title, Artist: d.Artist, Album: d.Album}
	if details == nil {
		return info
	}
	if info.Title == "" {
		info.Title = details.Title
	}
	if info.Artist == "" {
		info.Artist = details.Artist
	}
	if info.Album == "" {
		info.Album = details.Album
	}
	info.Genre = details.Genre
	info.ArtworkURL = details.ArtworkURL
	info.TrackNumber = details.TrackNumber
	info.Year = details.Year
	return info
}

// registrationIDs carries every id the descriptor named plus the one the
// source was resolved with. Peer files without any id are keyed by the
// fingerprint so repeated acquisitions upsert one row.
func registrationIDs(d domain.TrackDescriptor, src *source, fingerprint string) domain.ExternalIDs {
	ids := domain.ExternalIDs{}
	for _, id := range d.IDs {
		ids[id.Provider] = id.Value
	}
	if src.id != "" {
		ids[src.tag] = src.id
	}
	if len(ids) == 0 {
		ids[domain.ProviderPeer] = fingerprint
	}
	return ids
}

// Remove deletes a row's file, prunes the directories it leaves empty and
// drops the row.
func (p *Pipeline) Remove(ctx context.Context, id int64) error {
	p.layout.Lock()
	defer p.layout.Unlock()

	row, err := p.index.Get(ctx, id)
	if err != nil {
		return err
	}

	abs := p.index.AbsPath(row)
	if err := storage.RemoveFile(abs); err != nil && !storage.IsNotExist(err) {
		return domain.Wrap(domain.ErrLocalIO, fmt.Errorf("failed to delete file: %w", err))
	}
	p.pruneDirs(filepath.Dir(abs))

	if err := p.index.Delete(ctx, id); err != nil {
		return err
	}
	p.logger.Info("Removed track", "track_id", id, "local_path", row.LocalPath)
	return nil
}

// Wait blocks until no job is in flight or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		var pending *job
		for j := range p.live {
			pending = j
			break
		}
		p.mu.Unlock()
		if pending == nil {
			return nil
		}
		select {
		case <-pending.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var errNoProviders = errors.New("no providers configured")

// Ready reports whether at least one acquisition strategy is configured.
func (p *Pipeline) Ready() error {
	if len(p.providers.Catalogs()) == 0 && p.providers.Peer() == nil {
		return fmt.Errorf("%w: %w", domain.ErrNotAcquirable, errNoProviders)
	}
	return nil
}
