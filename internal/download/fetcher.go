package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/ytget/mf-downloader/internal/config"
	"github.com/ytget/mf-downloader/internal/platform"
)

// Fetch settings
const (
	// ChunkSize is the buffer used to stream a response body to disk
	ChunkSize = 512 * 1024

	// maxPageSize caps how much of a confirmation page is read
	maxPageSize = 8 << 20

	// sniffSize is how many leading bytes are kept for content type detection
	sniffSize = 3072
)

// Options configures a Fetcher
type Options struct {
	// Quiet disables the "Downloading" lines and the progress bar
	Quiet bool

	// MaxHops bounds the requests issued to resolve one link
	MaxHops int

	// Timeout is the per-request response header timeout
	Timeout time.Duration

	UserAgent string

	// RequestsPerSecond paces requests across the batch; 0 means unlimited
	RequestsPerSecond float64

	// Progress receives the progress bar; defaults to os.Stderr
	Progress io.Writer

	Logger log.Interface

	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// Result describes a file that was written to the output folder
type Result struct {
	Path        string
	Name        string
	ResolvedURL string
	ContentType string
	Bytes       int64
	Total       int64 // -1 when unknown
	Hops        int
}

var _ Downloader = (*Fetcher)(nil)

// Fetcher downloads share links into one output folder
type Fetcher struct {
	fs        billy.Filesystem
	opts      Options
	logger    log.Interface
	limiter   *rate.Limiter
	transport http.RoundTripper
	newID     func() string
}

// NewFetcher creates a fetcher writing into fs
func NewFetcher(fs billy.Filesystem, opts Options) *Fetcher {
	if opts.MaxHops <= 0 {
		opts.MaxHops = config.DefaultMaxHops
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout
	}
	if opts.Progress == nil {
		opts.Progress = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.Log
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.Timeout
		transport = t
	}

	return &Fetcher{
		fs:        fs,
		opts:      opts,
		logger:    opts.Logger,
		limiter:   rate.NewLimiter(limit, 1),
		transport: transport,
		newID:     uuid.NewString,
	}
}

// Fetch resolves rawURL to a file and saves it in the output folder.
// It returns the saved file's details, or a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	// One jar per link: the confirmation page sets the cookies the download host checks.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, newFetchError(KindInternal, rawURL, err)
	}
	client := &http.Client{Transport: f.transport, Jar: jar}

	resp, hops, err := f.resolve(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	name := outputName(resp)
	result := &Result{
		Path:        f.fs.Join(f.fs.Root(), name),
		Name:        name,
		ResolvedURL: resp.Request.URL.String(),
		Total:       resp.ContentLength,
		Hops:        hops,
	}

	if !f.opts.Quiet {
		f.logger.WithFields(log.Fields{
			"from": rawURL,
			"to":   result.Path,
		}).Info("downloading")
	}

	if err := f.save(rawURL, resp, result); err != nil {
		return nil, err
	}

	return result, nil
}

// resolve follows confirmation pages until a response carries the file
func (f *Fetcher) resolve(ctx context.Context, client *http.Client, origin string) (*http.Response, int, error) {
	current := origin

	for hop := 1; hop <= f.opts.MaxHops; hop++ {
		resp, err := f.get(ctx, client, current)
		if err != nil {
			return nil, hop, newFetchError(KindNetwork, origin, err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			resp.Body.Close()
			return nil, hop, newFetchError(KindNetwork, origin,
				fmt.Errorf("server responded with %s for %s", resp.Status, current))
		}

		if isDirectFile(resp.Header) {
			return resp, hop, nil
		}

		page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
		resp.Body.Close()
		if err != nil {
			return nil, hop, newFetchError(KindNetwork, origin, fmt.Errorf("failed to read page %s: %w", current, err))
		}

		link, ok := ExtractDownloadLink(string(page))
		if !ok {
			return nil, hop, newFetchError(KindPermissionDenied, origin,
				errors.New("no download link found, maybe the link needs 'Anyone with the link' access"))
		}

		f.logger.WithFields(log.Fields{
			"hop":  hop,
			"link": link,
		}).Debug("following download link")
		current = link
	}

	return nil, f.opts.MaxHops, newFetchError(KindTooManyHops, origin,
		fmt.Errorf("no file after %d requests", f.opts.MaxHops))
}

func (f *Fetcher) get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set(headerUserAgent, f.opts.UserAgent)
	}

	return client.Do(req)
}

// save streams resp into a temp file and renames it to result.Name.
// The temp file is removed on every path except a successful rename.
func (f *Fetcher) save(origin string, resp *http.Response, result *Result) error {
	tmpName := platform.TempFileName(result.Name, f.newID())

	file, err := f.fs.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, platform.DefaultFilePermissions)
	if err != nil {
		return newFetchError(KindIO, origin, fmt.Errorf("failed to create temp file: %w", err))
	}

	renamed := false
	closed := false
	defer func() {
		if renamed {
			return
		}
		if !closed {
			file.Close()
		}
		if err := f.fs.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.WithError(err).WithField("file", tmpName).Warn("failed to remove temp file")
		}
	}()

	var bar *progressBar
	if !f.opts.Quiet {
		bar = newProgressBar(f.opts.Progress, resp.ContentLength)
	}

	head := make([]byte, 0, sniffSize)
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := file.Write(chunk); err != nil {
				return newFetchError(KindIO, origin, fmt.Errorf("failed to write %s: %w", tmpName, err))
			}
			result.Bytes += int64(n)
			if room := sniffSize - len(head); room > 0 {
				head = append(head, chunk[:min(room, n)]...)
			}
			if bar != nil {
				bar.Write(chunk)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if bar != nil {
				fmt.Fprintln(f.opts.Progress)
			}
			return newFetchError(KindNetwork, origin, fmt.Errorf("failed to read body: %w", readErr))
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if resp.ContentLength >= 0 && result.Bytes != resp.ContentLength {
		return newFetchError(KindNetwork, origin,
			fmt.Errorf("body ended after %d of %d bytes", result.Bytes, resp.ContentLength))
	}

	closed = true
	if err := file.Close(); err != nil {
		return newFetchError(KindIO, origin, fmt.Errorf("failed to close %s: %w", tmpName, err))
	}

	if err := f.fs.Rename(tmpName, result.Name); err != nil {
		return newFetchError(KindIO, origin, fmt.Errorf("failed to move %s to %s: %w", tmpName, result.Name, err))
	}
	renamed = true

	result.ContentType = mimetype.Detect(head).String()
	return nil
}
