// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/modelkit-ai/modelkit/hub"
)

// Store orchestrates config load, save and push operations, composing the
// registry, the serializer and the hub client. Each operation stands on
// its own; a Store keeps no state across calls.
type Store struct {
	registry *Registry
	hub      hub.Client
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRegistry makes the store resolve concrete types against the given
// registry instead of the process-wide default.
func WithRegistry(r *Registry) StoreOption {
	return func(s *Store) { s.registry = r }
}

// WithHub makes the store use the given hub client for remote resolution.
func WithHub(c hub.Client) StoreOption {
	return func(s *Store) { s.hub = c }
}

// NewStore returns a Store backed by the default registry and a hub client
// built from the process settings, unless overridden by options.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	if s.hub == nil {
		s.hub = hub.NewHTTPClient(hub.LoadSettings())
	}
	return s
}

// Hub returns the hub client the store resolves remote locations with.
func (s *Store) Hub() hub.Client { return s.hub }

type loadOptions struct {
	filename  string
	subfolder string
	repoType  hub.RepoType
	overrides map[string]any
	strict    bool
}

// LoadOption configures a single Load call.
type LoadOption func(*loadOptions)

// WithFilename overrides the well-known config filename.
func WithFilename(name string) LoadOption {
	return func(o *loadOptions) { o.filename = name }
}

// WithSubfolder looks the file up under a subfolder of the location.
func WithSubfolder(subfolder string) LoadOption {
	return func(o *loadOptions) { o.subfolder = subfolder }
}

// WithRepoType hints the hub resource type when the location is remote.
func WithRepoType(t hub.RepoType) LoadOption {
	return func(o *loadOptions) { o.repoType = t }
}

// WithOverrides shallow-merges the given parameters over the stored ones:
// a top-level key in the overrides replaces the stored value entirely,
// nested mappings are not merged.
func WithOverrides(overrides map[string]any) LoadOption {
	return func(o *loadOptions) { o.overrides = overrides }
}

// WithStrict makes unknown keys in the stored document an error instead of
// a warning.
func WithStrict() LoadOption {
	return func(o *loadOptions) { o.strict = true }
}

// Load reads a config from a local directory or a hub repository and
// materializes it as the concrete registered type.
//
// The location is tried locally first. If it is an existing local
// directory missing the expected file, Load fails with a ResolutionError
// without contacting the hub. Remote failures are propagated as they are,
// with no retry.
func (s *Store) Load(ctx context.Context, location string, opts ...LoadOption) (Config, error) {
	o := loadOptions{filename: DefaultFilename, repoType: hub.RepoTypeModel}
	for _, opt := range opts {
		opt(&o)
	}

	configPath, err := s.ResolveFile(ctx, location, o.filename, o.subfolder, o.repoType)
	if err != nil {
		return nil, err
	}

	raw, err := readDocument(configPath)
	if err != nil {
		return nil, err
	}

	name, typ, err := discriminator(raw, configPath)
	if err != nil {
		return nil, err
	}
	factory, err := s.registry.Resolve(name, typ)
	if err != nil {
		return nil, err
	}

	for k, v := range o.overrides {
		raw[k] = v
	}

	cfg := factory()
	if err := FromMap(raw, cfg, o.strict); err != nil {
		return nil, err
	}
	log.Debug().Str("name", name).Str("config_type", string(typ)).Str("path", configPath).Msg("config loaded")
	return cfg, nil
}

// ResolveFile locates a file belonging to the given location, which is
// either a local directory or a hub repository identifier, and returns a
// concrete local path to it.
//
// The decision is local-first: an existing composed local path wins; an
// existing local directory without the file is a ResolutionError; anything
// else is treated as a repository identifier and the file is downloaded
// into the process-wide cache directory (already cached files are not
// downloaded again).
func (s *Store) ResolveFile(ctx context.Context, location, filename, subfolder string, repoType hub.RepoType) (string, error) {
	composed := filepath.Join(location, subfolder, filename)
	if info, err := os.Stat(composed); err == nil && !info.IsDir() {
		return composed, nil
	}
	if info, err := os.Stat(location); err == nil && info.IsDir() {
		return "", &ResolutionError{Location: location, Filename: filename}
	}
	return s.hub.Download(ctx, location, path.Join(subfolder, filename), hub.DownloadOptions{
		RepoType: repoType,
	})
}

type saveOptions struct {
	subfolder string
}

// SaveOption configures a single Save call.
type SaveOption func(*saveOptions)

// WithSaveSubfolder saves the file under a subfolder of the directory.
func WithSaveSubfolder(subfolder string) SaveOption {
	return func(o *saveOptions) { o.subfolder = subfolder }
}

// Save writes the config as a YAML document to directory/subfolder/filename,
// creating missing directories, and returns the written path. Top-level
// null fields are left out of the document.
func (s *Store) Save(cfg Config, directory, filename string, opts ...SaveOption) (string, error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := marshalDocument(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(directory, o.subfolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %q: %w", dir, err)
	}
	savePath := filepath.Join(dir, filename)
	if err := os.WriteFile(savePath, doc, 0644); err != nil {
		return "", fmt.Errorf("writing config file %q: %w", savePath, err)
	}
	return savePath, nil
}

type pushOptions struct {
	filename      string
	subfolder     string
	repoType      hub.RepoType
	private       bool
	commitMessage string
}

// PushOption configures a single Push call.
type PushOption func(*pushOptions)

// WithPushFilename overrides the filename written to the repository.
func WithPushFilename(name string) PushOption {
	return func(o *pushOptions) { o.filename = name }
}

// WithPushSubfolder places the file under a subfolder of the repository.
func WithPushSubfolder(subfolder string) PushOption {
	return func(o *pushOptions) { o.subfolder = subfolder }
}

// WithPushRepoType sets the hub resource type of the target repository.
func WithPushRepoType(t hub.RepoType) PushOption {
	return func(o *pushOptions) { o.repoType = t }
}

// WithPrivate creates the repository as private if it does not exist yet.
func WithPrivate() PushOption {
	return func(o *pushOptions) { o.private = true }
}

// WithCommitMessage sets the upload commit message.
func WithCommitMessage(msg string) PushOption {
	return func(o *pushOptions) { o.commitMessage = msg }
}

// Push uploads the config to a hub repository, creating the repository if
// it does not exist. There is no transactional guarantee across the steps:
// if the upload fails after the repository was created, the repository
// stays behind empty and the caller must retry the whole operation.
func (s *Store) Push(ctx context.Context, cfg Config, repoID string, opts ...PushOption) error {
	o := pushOptions{filename: DefaultFilename, repoType: hub.RepoTypeModel}
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.hub.CreateRepo(ctx, repoID, hub.CreateRepoOptions{
		RepoType: o.repoType,
		Private:  o.private,
		ExistOK:  true,
	}); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "modelkit-push-*")
	if err != nil {
		return fmt.Errorf("creating temporary push directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	localPath, err := s.Save(cfg, tmpDir, o.filename, WithSaveSubfolder(o.subfolder))
	if err != nil {
		return err
	}

	pathInRepo := path.Join(o.subfolder, o.filename)
	commitMessage := o.commitMessage
	if commitMessage == "" {
		commitMessage = fmt.Sprintf("Upload %s", o.filename)
	}
	if err := s.hub.UploadFile(ctx, localPath, pathInRepo, repoID, hub.UploadOptions{
		RepoType:      o.repoType,
		CommitMessage: commitMessage,
	}); err != nil {
		return err
	}
	log.Info().Str("name", cfg.Name()).Str("repo", repoID).Str("path", pathInRepo).Msg("config uploaded")
	return nil
}

// readDocument reads a YAML config file into a plain mapping.
func readDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	m := make(map[string]any)
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return m, nil
}

// discriminator extracts the reserved (name, config_type) pair from a raw
// mapping.
func discriminator(m map[string]any, path string) (string, Type, error) {
	name, ok := m[FieldName].(string)
	if !ok || name == "" {
		return "", "", fmt.Errorf("config file %q has no %q key", path, FieldName)
	}
	typ, ok := m[FieldType].(string)
	if !ok || typ == "" {
		return "", "", fmt.Errorf("config file %q has no %q key", path, FieldType)
	}
	return name, Type(typ), nil
}
