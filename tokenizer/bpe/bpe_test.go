// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bpe

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit-ai/modelkit/config"
	"github.com/modelkit-ai/modelkit/tokenizer"
)

var corpus = []string{
	"the quick brown fox jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
	"how vexingly quick daft zebras jump",
	"the five boxing wizards jump quickly",
	"sphinx of black quartz judge my vow",
}

func trainedTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	cfg := NewConfig()
	cfg.Train.VocabSize = 500
	cfg.Train.MinFrequency = 1
	cfg.Train.ShowProgress = false

	tk, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, tk.TrainFromCorpus(corpus, nil))
	return tk
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	assert.Equal(t, "bpe_tokenizer", cfg.Name())
	assert.Equal(t, config.TypePreprocessor, cfg.Type())
	assert.Equal(t, "no_truncation", cfg.TruncationStrategy)
	assert.Equal(t, "no_padding", cfg.PaddingStrategy)
	assert.Equal(t, "<pad>", cfg.PadToken)
	assert.Contains(t, cfg.SpecialTokens, "<|endoftext|>")
	assert.Equal(t, 30000, cfg.Train.VocabSize)
	assert.Equal(t, 2, cfg.Train.MinFrequency)
}

func TestConfigSerializationRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Train.InitialAlphabet = []string{"é", "ü"}
	m, err := config.ToMap(cfg)
	require.NoError(t, err)
	assert.Equal(t, "bpe_tokenizer", m[config.FieldName])
	assert.Equal(t, "preprocessor", m[config.FieldType])

	nested, ok := m["train_config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 30000, nested["vocab_size"])

	reloaded := NewConfig()
	require.NoError(t, config.FromMap(m, reloaded, true))
	assert.Equal(t, cfg, reloaded)
}

func TestTrainAndTokenize(t *testing.T) {
	t.Parallel()

	tk := trainedTokenizer(t)

	ids, err := tk.Tokenize("the quick brown fox")
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	text, err := tk.ReconstructText(ids)
	require.NoError(t, err)
	assert.Contains(t, text, "quick brown fox")

	assert.NotEmpty(t, tk.Vocab())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	tk := trainedTokenizer(t)
	ids, err := tk.Tokenize("the lazy dog")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, tk.Save(dir))
	require.FileExists(t, filepath.Join(dir, tokenizer.DefaultSubfolder, VocabFilename))
	require.FileExists(t, filepath.Join(dir, tokenizer.DefaultSubfolder, MergesFilename))
	require.FileExists(t, filepath.Join(dir, tokenizer.DefaultSubfolder, tokenizer.DefaultConfigFilename))

	loaded, err := Load(context.Background(), dir)
	require.NoError(t, err)

	loadedIDs, err := loaded.Tokenize("the lazy dog")
	require.NoError(t, err)
	assert.Equal(t, ids, loadedIDs)
	assert.Equal(t, "no_truncation", loaded.Config().TruncationStrategy)
}

func TestGenericLoaderDispatch(t *testing.T) {
	t.Parallel()

	tk := trainedTokenizer(t)
	dir := t.TempDir()
	require.NoError(t, tk.Save(dir))

	generic, err := tokenizer.Load(context.Background(), dir)
	require.NoError(t, err)

	ids, err := generic.Tokenize("sphinx of black quartz")
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	text, err := generic.ReconstructText(ids)
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, "quartz"))
}

func TestLoadMissingTokenizerFile(t *testing.T) {
	t.Parallel()

	store := config.NewStore()
	dir := t.TempDir()

	cfg := NewConfig()
	_, err := store.Save(cfg, dir, tokenizer.DefaultConfigFilename, config.WithSaveSubfolder(tokenizer.DefaultSubfolder))
	require.NoError(t, err)

	// config resolves, model files are missing from the local directory
	_, err = Load(context.Background(), dir)
	var resolution *config.ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, VocabFilename, resolution.Filename)
}

func TestTokenizeUnseenBytes(t *testing.T) {
	t.Parallel()

	// every pangram in the corpus is plain ASCII
	tk := trainedTokenizer(t)

	ids, err := tk.Tokenize("café ~ №")
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	text, err := tk.ReconstructText(ids)
	require.NoError(t, err)
	assert.Contains(t, text, "café")
}
