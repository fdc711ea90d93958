// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit-ai/modelkit/hub"
)

// fakeHub records hub calls. Its Download serves files from a local
// directory standing in for the remote registry.
type fakeHub struct {
	repoDir   string
	cacheDir  string
	downloads int
	creates   int
	uploads   []string
}

func (f *fakeHub) Download(_ context.Context, repoID, filename string, _ hub.DownloadOptions) (string, error) {
	f.downloads++
	data, err := os.ReadFile(filepath.Join(f.repoDir, filepath.FromSlash(filename)))
	if err != nil {
		return "", &hub.TransportError{Op: "download", Repo: repoID, Err: err}
	}
	localPath := filepath.Join(f.cacheDir, filepath.FromSlash(repoID), filepath.FromSlash(filename))
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return "", err
	}
	return localPath, nil
}

func (f *fakeHub) CreateRepo(context.Context, string, hub.CreateRepoOptions) error {
	f.creates++
	return nil
}

func (f *fakeHub) UploadFile(_ context.Context, localPath, pathInRepo, _ string, _ hub.UploadOptions) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.uploads = append(f.uploads, pathInRepo)
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeHub) {
	t.Helper()
	h := &fakeHub{repoDir: t.TempDir(), cacheDir: t.TempDir()}
	return NewStore(WithHub(h)), h
}

func TestStoreSaveLoadEndToEnd(t *testing.T) {
	t.Parallel()

	store, h := newTestStore(t)
	dir := t.TempDir()

	cfg := NewTrainerConfig()
	cfg.Task = "text_classification"
	cfg.BatchSize = intPtr(32)

	savePath, err := store.Save(cfg, dir, "train_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "train_config.yaml"), savePath)

	loaded, err := store.Load(context.Background(), dir, WithFilename("train_config.yaml"))
	require.NoError(t, err)

	trainer, ok := loaded.(*TrainerConfig)
	require.True(t, ok)
	assert.Equal(t, "text_classification", trainer.Task)
	require.NotNil(t, trainer.BatchSize)
	assert.Equal(t, 32, *trainer.BatchSize)
	// untouched default survives the round trip
	assert.Equal(t, "cuda", trainer.Device)
	assert.Zero(t, h.downloads)
}

func TestStoreLoadNullFieldYieldsDefault(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	dir := t.TempDir()

	cfg := NewTrainerConfig()
	cfg.Device = "" // zero values are persisted, only nulls are dropped
	cfg.BatchSize = nil

	_, err := store.Save(cfg, dir, "train_config.yaml")
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), dir, WithFilename("train_config.yaml"))
	require.NoError(t, err)

	trainer := loaded.(*TrainerConfig)
	assert.Nil(t, trainer.BatchSize, "null stays null when the default is null")
	assert.Equal(t, "", trainer.Device)

	// a dropped field falls back to the declared default
	scheduler := NewLRSchedulerConfig()
	scheduler.WarmupSteps = 100
	_, err = store.Save(scheduler, dir, "scheduler.yaml")
	require.NoError(t, err)
	reloaded, err := store.Load(context.Background(), dir, WithFilename("scheduler.yaml"))
	require.NoError(t, err)
	assert.True(t, reloaded.(*LRSchedulerConfig).Verbose)
}

func TestStoreLoadLocalDirMissingFile(t *testing.T) {
	t.Parallel()

	store, h := newTestStore(t)
	dir := t.TempDir() // exists, but holds no config file

	_, err := store.Load(context.Background(), dir)
	var resolution *ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, dir, resolution.Location)
	assert.Equal(t, DefaultFilename, resolution.Filename)
	assert.Zero(t, h.downloads, "a local directory match must not trigger a hub fetch")
}

func TestStoreLoadFromHub(t *testing.T) {
	t.Parallel()

	store, h := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.repoDir, DefaultFilename), []byte(
		"name: trainer\nconfig_type: trainer\ntask: ner\nseed: 7\n",
	), 0644))

	loaded, err := store.Load(context.Background(), "someorg/somemodel")
	require.NoError(t, err)

	trainer := loaded.(*TrainerConfig)
	assert.Equal(t, "ner", trainer.Task)
	assert.Equal(t, 7, trainer.Seed)
	assert.Equal(t, "cuda", trainer.Device)
	assert.Equal(t, 1, h.downloads)
}

func TestStoreLoadOverridesWin(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	dir := t.TempDir()

	cfg := NewTrainerConfig()
	cfg.Task = "text_classification"
	cfg.Metrics = []string{"accuracy"}
	_, err := store.Save(cfg, dir, DefaultFilename)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), dir, WithOverrides(map[string]any{
		"task":    "sentiment_analysis",
		"metrics": []string{"f1"},
	}))
	require.NoError(t, err)

	trainer := loaded.(*TrainerConfig)
	assert.Equal(t, "sentiment_analysis", trainer.Task)
	// shallow merge: the override replaces the stored value entirely
	assert.Equal(t, []string{"f1"}, trainer.Metrics)
}

func TestStoreLoadUnregisteredType(t *testing.T) {
	t.Parallel()

	store := NewStore(WithRegistry(NewRegistry()), WithHub(&fakeHub{}))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte(
		"name: mystery\nconfig_type: model\n",
	), 0644))

	_, err := store.Load(context.Background(), dir)
	var notRegistered *NotRegisteredError
	require.ErrorAs(t, err, &notRegistered)
}

func TestStoreLoadMissingDiscriminator(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFilename), []byte(
		"task: ner\n",
	), 0644))

	_, err := store.Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), FieldName)
}

func TestStoreSaveCreatesSubfolder(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	dir := t.TempDir()

	savePath, err := store.Save(NewTrainerConfig(), dir, DefaultFilename, WithSaveSubfolder("nested/deep"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "deep", DefaultFilename), savePath)

	_, err = os.Stat(savePath)
	assert.NoError(t, err)
}

func TestStorePush(t *testing.T) {
	t.Parallel()

	store, h := newTestStore(t)

	cfg := NewTrainerConfig()
	cfg.Task = "ner"

	err := store.Push(context.Background(), cfg, "someorg/somemodel",
		WithPushFilename("train_config.yaml"),
		WithPushSubfolder("train"),
		WithCommitMessage("initial trainer config"),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, h.creates)
	assert.Equal(t, []string{"train/train_config.yaml"}, h.uploads)
}
