// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hub talks to the remote model registry holding pretrained
// artifacts. It exposes the three operations the toolkit consumes:
// downloading a repository file, creating a repository and uploading a
// file into one.
package hub

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// RepoType is the resource type of a hub repository.
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
	RepoTypeSpace   RepoType = "space"
)

// DefaultRevision is the revision files are fetched from and uploaded to.
const DefaultRevision = "main"

// DownloadOptions control a single Download call.
type DownloadOptions struct {
	RepoType RepoType
	Revision string
}

// CreateRepoOptions control a single CreateRepo call.
type CreateRepoOptions struct {
	RepoType RepoType
	Private  bool
	// ExistOK makes creating an already existing repository a no-op
	// instead of an error.
	ExistOK bool
}

// UploadOptions control a single UploadFile call.
type UploadOptions struct {
	RepoType      RepoType
	Revision      string
	CommitMessage string
}

// Client is the remote registry collaborator. All operations block the
// calling goroutine; retry and timeout policy belong to the caller or to
// the underlying HTTP client configuration.
type Client interface {
	// Download fetches a repository file into the local cache directory
	// and returns its local path. Files already present in the cache are
	// not downloaded again.
	Download(ctx context.Context, repoID, filename string, opts DownloadOptions) (string, error)
	// CreateRepo creates a repository on the hub.
	CreateRepo(ctx context.Context, repoID string, opts CreateRepoOptions) error
	// UploadFile uploads a local file to the given path inside a repository.
	UploadFile(ctx context.Context, localPath, pathInRepo, repoID string, opts UploadOptions) error
}

// TransportError reports a failed hub operation. It is propagated as-is,
// with no built-in retry.
type TransportError struct {
	Op   string
	Repo string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hub %s for repo %q: %v", e.Op, e.Repo, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPClient is the Client implementation speaking the hub's HTTP API.
// File resolution follows the "{endpoint}/{repo_id}/resolve/{revision}/{filename}"
// URL layout.
type HTTPClient struct {
	endpoint string
	token    string
	cacheDir string
	client   *http.Client
}

// NewHTTPClient returns an HTTPClient configured from the given settings.
func NewHTTPClient(settings Settings) *HTTPClient {
	return &HTTPClient{
		endpoint: settings.Endpoint,
		token:    settings.Token,
		cacheDir: settings.CacheDir,
		client:   http.DefaultClient,
	}
}

// Download implements Client. The cache directory is keyed by repository
// identifier and filename, so repeated downloads of the same artifact are
// resolved locally. The body is written to a temporary file and renamed
// into the cache only once fully read, so a failed transfer never leaves
// a partial file behind. Concurrent first-time downloads of the same file
// are not synchronized against each other: the last writer wins.
func (c *HTTPClient) Download(ctx context.Context, repoID, filename string, opts DownloadOptions) (string, error) {
	localPath := filepath.Join(c.cacheDir, filepath.FromSlash(repoID), filepath.FromSlash(filename))
	if info, err := os.Stat(localPath); err == nil && !info.IsDir() {
		log.Debug().Str("file", localPath).Msg("file already cached, skipping download")
		return localPath, nil
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("creating cache path %q: %w", filepath.Dir(localPath), err)
	}

	fileURL := c.resolveURL(repoID, filename, opts)
	log.Debug().Str("url", fileURL).Str("destination", localPath).Msg("downloading")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", &TransportError{Op: "download", Repo: repoID, Err: err}
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "download", Repo: repoID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Op: "download", Repo: repoID, Err: fmt.Errorf("%q responded with %s", fileURL, resp.Status)}
	}

	f, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file for %q: %w", localPath, err)
	}
	defer os.Remove(f.Name())

	bar := progressbar.DefaultBytes(resp.ContentLength, filename)
	if _, err := io.Copy(io.MultiWriter(f, bar), resp.Body); err != nil {
		f.Close()
		return "", &TransportError{Op: "download", Repo: repoID, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing file %q: %w", f.Name(), err)
	}
	if err := os.Rename(f.Name(), localPath); err != nil {
		return "", fmt.Errorf("moving downloaded file into place: %w", err)
	}
	return localPath, nil
}

type createRepoRequest struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Private bool   `json:"private"`
}

// CreateRepo implements Client. When ExistOK is set, an already existing
// repository is not an error.
func (c *HTTPClient) CreateRepo(ctx context.Context, repoID string, opts CreateRepoOptions) error {
	body, err := json.Marshal(createRepoRequest{
		ID:      repoID,
		Type:    string(repoTypeOrDefault(opts.RepoType)),
		Private: opts.Private,
	})
	if err != nil {
		return fmt.Errorf("encoding create-repo request: %w", err)
	}

	createURL := c.endpoint + "/api/repos/create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, createURL, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "create repo", Repo: repoID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "create repo", Repo: repoID, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict && opts.ExistOK:
		log.Debug().Str("repo", repoID).Msg("repo already exists")
		return nil
	default:
		return &TransportError{Op: "create repo", Repo: repoID, Err: fmt.Errorf("%q responded with %s", createURL, resp.Status)}
	}
}

// UploadFile implements Client.
func (c *HTTPClient) UploadFile(ctx context.Context, localPath, pathInRepo, repoID string, opts UploadOptions) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening file %q: %w", localPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", path.Base(pathInRepo))
	if err != nil {
		return fmt.Errorf("preparing upload of %q: %w", localPath, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("preparing upload of %q: %w", localPath, err)
	}
	if opts.CommitMessage != "" {
		if err := mw.WriteField("commit_message", opts.CommitMessage); err != nil {
			return fmt.Errorf("preparing upload of %q: %w", localPath, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("preparing upload of %q: %w", localPath, err)
	}

	uploadURL := c.uploadURL(repoID, pathInRepo, opts)
	log.Debug().Str("url", uploadURL).Str("file", localPath).Msg("uploading")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return &TransportError{Op: "upload", Repo: repoID, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: "upload", Repo: repoID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: "upload", Repo: repoID, Err: fmt.Errorf("%q responded with %s", uploadURL, resp.Status)}
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *HTTPClient) resolveURL(repoID, filename string, opts DownloadOptions) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		c.endpoint,
		repoPath(repoID, repoTypeOrDefault(opts.RepoType)),
		revisionOrDefault(opts.Revision),
		filename,
	)
}

func (c *HTTPClient) uploadURL(repoID, pathInRepo string, opts UploadOptions) string {
	return fmt.Sprintf("%s/api/%ss/%s/upload/%s/%s",
		c.endpoint,
		repoTypeOrDefault(opts.RepoType),
		repoID,
		revisionOrDefault(opts.Revision),
		pathInRepo,
	)
}

// repoPath prefixes non-model repositories with their resource type, the
// way the hub lays out its URL namespace.
func repoPath(repoID string, t RepoType) string {
	if t == RepoTypeModel {
		return repoID
	}
	return path.Join(string(t)+"s", repoID)
}

func repoTypeOrDefault(t RepoType) RepoType {
	if t == "" {
		return RepoTypeModel
	}
	return t
}

func revisionOrDefault(rev string) string {
	if rev == "" {
		return DefaultRevision
	}
	return rev
}
