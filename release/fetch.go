// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/alpack/lib/atomicfile"
	"github.com/bureau-foundation/alpack/lib/checksum"
	"github.com/bureau-foundation/alpack/lib/clock"
	"github.com/bureau-foundation/alpack/lib/netutil"
	"github.com/bureau-foundation/alpack/lib/version"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// Config holds configuration for a Fetcher.
type Config struct {
	// CacheDir is the root of the archive cache. Required.
	CacheDir string

	// HTTPClient is used for all mirror requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides retry backoff waits. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Attempts bounds the number of tries per request. Defaults to 3.
	Attempts int

	// Backoff is the linear backoff step: attempt n waits n*Backoff
	// before attempt n+1. Defaults to one second.
	Backoff time.Duration
}

// FetchOptions modify a single Fetch.
type FetchOptions struct {
	// Refresh skips the cache lookup and downloads again.
	Refresh bool
}

// Archive is a verified minirootfs archive in the cache.
type Archive struct {
	Path    string
	SHA256  string
	Version string
	Release Release
}

// Fetcher resolves and downloads release archives.
type Fetcher struct {
	cacheDir   string
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger
	attempts   int
	backoff    time.Duration
}

// NewFetcher creates a Fetcher from the given configuration.
func NewFetcher(config Config) (*Fetcher, error) {
	if config.CacheDir == "" {
		return nil, fmt.Errorf("release: CacheDir is required")
	}
	fetcher := &Fetcher{
		cacheDir:   config.CacheDir,
		httpClient: config.HTTPClient,
		clock:      config.Clock,
		logger:     config.Logger,
		attempts:   config.Attempts,
		backoff:    config.Backoff,
	}
	if fetcher.httpClient == nil {
		fetcher.httpClient = http.DefaultClient
	}
	if fetcher.clock == nil {
		fetcher.clock = clock.Real()
	}
	if fetcher.logger == nil {
		fetcher.logger = slog.Default()
	}
	if fetcher.attempts <= 0 {
		fetcher.attempts = defaultAttempts
	}
	if fetcher.backoff <= 0 {
		fetcher.backoff = defaultBackoff
	}
	return fetcher, nil
}

// Fetch returns a verified archive for rel, from the cache when
// possible.
func (f *Fetcher) Fetch(ctx context.Context, rel Release, options FetchOptions) (Archive, error) {
	if err := rel.Validate(); err != nil {
		return Archive{}, err
	}
	logger := f.logger.With("arch", rel.Arch, "version", rel.Version)

	if !options.Refresh {
		archive, ok, err := f.lookupCache(rel)
		if err != nil {
			return Archive{}, err
		}
		if ok {
			logger.Info("using cached archive", "path", archive.Path, "resolved", archive.Version)
			return archive, nil
		}
	}

	resolved, err := f.resolve(ctx, rel)
	if err != nil {
		return Archive{}, err
	}
	logger.Info("resolved release", "resolved", resolved.Version, "url", resolved.URL)

	path, err := f.download(ctx, rel, resolved)
	if err != nil {
		return Archive{}, err
	}
	return Archive{Path: path, SHA256: resolved.SHA256, Version: resolved.Version, Release: rel}, nil
}

// resolve finds the archive URL and expected digest for rel.
func (f *Fetcher) resolve(ctx context.Context, rel Release) (artifact, error) {
	indexURL := rel.IndexURL()

	var resolved artifact
	if rel.Explicit() {
		version := rel.version()
		resolved = artifact{Version: version, File: rel.ArchiveName(version)}
	} else {
		data, err := f.get(ctx, indexURL+"latest-releases.yaml")
		if err == nil {
			resolved, err = parseLatestReleases(data, rel.Arch)
			if err != nil {
				f.logger.Warn("release index unusable, scanning directory listing", "error", err)
			}
		} else if !IsNotFound(err) {
			return artifact{}, err
		}
		if err != nil {
			listing, listErr := f.get(ctx, indexURL)
			if listErr != nil {
				return artifact{}, listErr
			}
			resolved, err = scanListing(listing, rel.Arch)
			if err != nil {
				return artifact{}, fmt.Errorf("release: resolving %s: %w", rel, err)
			}
		}
	}
	resolved.URL = indexURL + resolved.File

	if resolved.SHA256 == "" {
		data, err := f.get(ctx, resolved.URL+".sha256")
		if err != nil {
			return artifact{}, err
		}
		digest, err := checksum.ParseSumFile(data, resolved.File)
		if err != nil {
			return artifact{}, fmt.Errorf("release: %s.sha256: %w", resolved.URL, err)
		}
		resolved.SHA256 = digest
	} else {
		digest, err := checksum.Normalize(resolved.SHA256)
		if err != nil {
			return artifact{}, fmt.Errorf("release: index digest for %s: %w", resolved.File, err)
		}
		resolved.SHA256 = digest
	}
	return resolved, nil
}

// download streams resolved into the cache directory for rel,
// verifying the digest before the file becomes visible under its
// final name.
func (f *Fetcher) download(ctx context.Context, rel Release, resolved artifact) (string, error) {
	directory := f.cacheDirectory(rel)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", fmt.Errorf("release: creating cache directory: %w", err)
	}

	temporary, err := os.CreateTemp(directory, ".download-*")
	if err != nil {
		return "", fmt.Errorf("release: creating download file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer func() {
		temporary.Close()
		os.Remove(temporaryPath)
	}()

	var actual string
	err = f.retry(ctx, func() error {
		if _, err := temporary.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := temporary.Truncate(0); err != nil {
			return err
		}
		response, err := f.request(ctx, resolved.URL)
		if err != nil {
			return err
		}
		defer response.Body.Close()

		if response.ContentLength > 0 {
			f.logger.Info("downloading archive", "file", resolved.File, "size", humanize.Bytes(uint64(response.ContentLength)))
		}
		writer := checksum.NewWriter(temporary)
		if _, err := io.Copy(writer, response.Body); err != nil {
			return &NetworkError{URL: resolved.URL, Err: err}
		}
		actual = writer.Sum()
		return nil
	})
	if err != nil {
		return "", err
	}

	if !checksum.Equal(actual, resolved.SHA256) {
		return "", &IntegrityError{URL: resolved.URL, Expected: resolved.SHA256, Actual: actual}
	}
	if err := temporary.Sync(); err != nil {
		return "", fmt.Errorf("release: syncing download: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return "", fmt.Errorf("release: closing download: %w", err)
	}

	final := filepath.Join(directory, cacheFileName(resolved.SHA256, resolved.Version))
	if err := os.Rename(temporaryPath, final); err != nil {
		return "", fmt.Errorf("release: moving download into cache: %w", err)
	}
	atomicfile.SyncDir(directory)
	return final, nil
}

// get fetches a small document with retries.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry(ctx, func() error {
		response, err := f.request(ctx, url)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		body, err = netutil.ReadResponse(response.Body)
		if err != nil {
			return &NetworkError{URL: url, Err: err}
		}
		return nil
	})
	return body, err
}

// request issues one GET. Non-2xx responses become a *NetworkError.
func (f *Fetcher) request(ctx context.Context, url string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("release: creating request: %w", err)
	}
	request.Header.Set("User-Agent", "alpack/"+version.Short())

	response, err := f.httpClient.Do(request)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body := netutil.ErrorBody(response.Body)
		response.Body.Close()
		return nil, &NetworkError{URL: url, StatusCode: response.StatusCode, Body: body}
	}
	return response, nil
}

// retry runs operation up to f.attempts times. Only temporary network
// errors are retried, waiting attempt*backoff between tries.
func (f *Fetcher) retry(ctx context.Context, operation func() error) error {
	var err error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		var networkError *NetworkError
		if !errors.As(err, &networkError) || !networkError.Temporary() || attempt == f.attempts || ctx.Err() != nil {
			return err
		}
		wait := time.Duration(attempt) * f.backoff
		f.logger.Warn("mirror request failed, retrying",
			"url", networkError.URL,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
		select {
		case <-f.clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
