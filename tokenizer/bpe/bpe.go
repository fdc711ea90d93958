// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bpe wraps a byte-level byte-pair-encoding tokenizer. Training
// and tokenization are fully delegated to github.com/sugarme/tokenizer;
// this package only owns configuration, file layout and hub resolution.
package bpe

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"
	tk "github.com/sugarme/tokenizer"
	bpemodel "github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/pretokenizer"

	"github.com/modelkit-ai/modelkit/config"
	"github.com/modelkit-ai/modelkit/hub"
	"github.com/modelkit-ai/modelkit/tokenizer"
)

// ConfigName is the registered name of the BPE tokenizer config.
const ConfigName = "bpe_tokenizer"

// A trained model is persisted as a vocabulary and a merge list, next to
// the tokenizer config under the preprocessor subfolder.
const (
	VocabFilename  = "vocab.json"
	MergesFilename = "merges.txt"
)

// TrainConfig holds the parameters handed to the BPE trainer.
type TrainConfig struct {
	VocabSize       int      `yaml:"vocab_size"`
	MinFrequency    int      `yaml:"min_frequency"`
	LimitAlphabet   int      `yaml:"limit_alphabet"`
	InitialAlphabet []string `yaml:"initial_alphabet"`
	ShowProgress    bool     `yaml:"show_progress"`
}

// Config holds the parameters of a byte-level BPE tokenizer.
type Config struct {
	tokenizer.Config `yaml:",inline"`

	SpecialTokens           []string    `yaml:"special_tokens"`
	UnkToken                string      `yaml:"unk_token"`
	PadToken                string      `yaml:"pad_token"`
	PadTokenID              int         `yaml:"pad_token_id"`
	Dropout                 *float64    `yaml:"dropout"`
	ContinuingSubwordPrefix string      `yaml:"continuing_subword_prefix"`
	EndOfWordSuffix         string      `yaml:"end_of_word_suffix"`
	Train                   TrainConfig `yaml:"train_config"`
}

func (Config) Name() string { return ConfigName }

// NewConfig returns a Config with the declared defaults.
func NewConfig() *Config {
	return &Config{
		Config: tokenizer.Config{
			TruncationStrategy: "no_truncation",
			PaddingStrategy:    "no_padding",
		},
		SpecialTokens: []string{
			"<s>", "<pad>", "</s>", "<unk>", "<mask>",
			"<|endoftext|>", "<|startoftext|>", "<nl>", "<hs>",
			"<sep>", "<cls>",
		},
		PadToken: "<pad>",
		Train:    *NewTrainConfig(),
	}
}

// NewTrainConfig returns a TrainConfig with the declared defaults.
func NewTrainConfig() *TrainConfig {
	return &TrainConfig{
		VocabSize:     30000,
		MinFrequency:  2,
		LimitAlphabet: 1000,
		ShowProgress:  true,
	}
}

// Tokenizer is a byte-level BPE tokenizer. The underlying engine instance
// is owned exclusively by the wrapper and never shared.
type Tokenizer struct {
	engine *tk.Tokenizer
	config *Config
}

// New builds a fresh, untrained tokenizer from the given config.
func New(cfg *Config) (*Tokenizer, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	engine, err := newEngine(cfg, "", "")
	if err != nil {
		return nil, err
	}
	return &Tokenizer{engine: engine, config: cfg}, nil
}

// newEngine assembles a byte-level BPE engine from the config, reading the
// model from vocab and merges files when given.
func newEngine(cfg *Config, vocabFile, mergesFile string) (*tk.Tokenizer, error) {
	builder := bpemodel.NewBpeBuilder()
	if vocabFile != "" {
		builder.Files(vocabFile, mergesFile)
	}
	if cfg.Dropout != nil {
		builder.Dropout(float32(*cfg.Dropout))
	}
	if cfg.UnkToken != "" {
		builder.UnkToken(cfg.UnkToken)
	}
	if cfg.ContinuingSubwordPrefix != "" {
		builder.ContinuingSubwordPrefix(cfg.ContinuingSubwordPrefix)
	}
	if cfg.EndOfWordSuffix != "" {
		builder.EndOfWordSuffix(cfg.EndOfWordSuffix)
	}
	model, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building BPE model: %w", err)
	}

	// ByteLevel is both the pre-tokenizer and the decoder: it maps every
	// byte to a printable character on the way in and back on the way out.
	byteLevel := pretokenizer.NewByteLevel()
	engine := tk.NewTokenizer(model)
	engine.WithPreTokenizer(byteLevel)
	engine.WithDecoder(byteLevel)
	engine.AddSpecialTokens(specialTokens(cfg.SpecialTokens))
	return engine, nil
}

// Load reads a trained tokenizer from a local directory or hub repository,
// resolving the model files with the same local-first policy used for
// configs.
func Load(ctx context.Context, location string, opts ...config.StoreOption) (*Tokenizer, error) {
	store := config.NewStore(opts...)
	loaded, err := store.Load(ctx, location,
		config.WithFilename(tokenizer.DefaultConfigFilename),
		config.WithSubfolder(tokenizer.DefaultSubfolder),
	)
	if err != nil {
		return nil, err
	}
	cfg, ok := loaded.(*Config)
	if !ok {
		return nil, fmt.Errorf("location %q holds a %q tokenizer config, not a BPE one", location, loaded.Name())
	}
	return loadWithConfig(ctx, store, location, cfg)
}

func loadWithConfig(ctx context.Context, store *config.Store, location string, cfg *Config) (*Tokenizer, error) {
	vocabPath, err := store.ResolveFile(ctx, location, VocabFilename, tokenizer.DefaultSubfolder, hub.RepoTypeModel)
	if err != nil {
		return nil, err
	}
	mergesPath, err := store.ResolveFile(ctx, location, MergesFilename, tokenizer.DefaultSubfolder, hub.RepoTypeModel)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg, vocabPath, mergesPath)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer model from %q: %w", location, err)
	}
	log.Debug().Str("vocab", vocabPath).Str("merges", mergesPath).Msg("tokenizer loaded")
	return &Tokenizer{engine: engine, config: cfg}, nil
}

// Config returns the tokenizer parameters.
func (t *Tokenizer) Config() *Config { return t.config }

// Train trains the underlying BPE model on the given text files. The
// byte-level alphabet is always part of the initial alphabet, so any byte
// sequence stays encodable even when it never occurred in the corpus.
func (t *Tokenizer) Train(files []string, trainConfig *TrainConfig) error {
	if trainConfig == nil {
		trainConfig = &t.config.Train
	}
	trainer := bpemodel.NewBpeTrainer(trainConfig.MinFrequency, trainConfig.VocabSize)
	trainer.ShowProgress = trainConfig.ShowProgress
	trainer.SpecialTokens = specialTokens(t.config.SpecialTokens)
	if trainConfig.LimitAlphabet > 0 {
		limit := trainConfig.LimitAlphabet
		trainer.LimitAlphabet = &limit
	}

	alphabet := pretokenizer.NewByteLevel().Alphabet()
	for _, c := range trainConfig.InitialAlphabet {
		alphabet[c] = struct{}{}
	}
	trainer.InitialAlphabet = alphabet

	if err := t.engine.Train(trainer, files); err != nil {
		return fmt.Errorf("training BPE tokenizer: %w", err)
	}
	return nil
}

// TrainFromCorpus trains the underlying BPE model on in-memory lines of
// text, spooling them through a temporary file.
func (t *Tokenizer) TrainFromCorpus(lines []string, trainConfig *TrainConfig) (err error) {
	f, err := os.CreateTemp("", "modelkit-corpus-*.txt")
	if err != nil {
		return fmt.Errorf("creating corpus file: %w", err)
	}
	defer func() {
		if e := os.Remove(f.Name()); e != nil && err == nil {
			err = e
		}
	}()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing corpus file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing corpus file: %w", err)
	}
	return t.Train([]string{f.Name()}, trainConfig)
}

// Tokenize implements tokenizer.Tokenizer.
func (t *Tokenizer) Tokenize(text string) ([]int, error) {
	encoding, err := t.engine.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenizing text: %w", err)
	}
	ids := make([]int, len(encoding.Ids))
	copy(ids, encoding.Ids)
	return ids, nil
}

// ReconstructText implements tokenizer.Tokenizer. Special tokens are
// stripped from the output.
func (t *Tokenizer) ReconstructText(ids []int) (string, error) {
	return t.engine.Decode(ids, true), nil
}

// Vocab returns the trained vocabulary including added special tokens.
func (t *Tokenizer) Vocab() map[string]int {
	return t.engine.GetVocab(true)
}

// Save writes the model files and the tokenizer config under the
// preprocessor subfolder of the given directory.
func (t *Tokenizer) Save(directory string) error {
	store := config.NewStore()
	if _, err := store.Save(t.config, directory, tokenizer.DefaultConfigFilename,
		config.WithSaveSubfolder(tokenizer.DefaultSubfolder),
	); err != nil {
		return err
	}
	return t.saveModel(filepath.Join(directory, tokenizer.DefaultSubfolder))
}

// saveModel persists the vocabulary and merge list into the directory.
func (t *Tokenizer) saveModel(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}
	if err := t.engine.GetModel().Save(dir); err != nil {
		return fmt.Errorf("saving tokenizer model into %q: %w", dir, err)
	}
	return nil
}

// PushOptions control a Push call.
type PushOptions struct {
	Private       bool
	CommitMessage string
}

// Push uploads the model files and the tokenizer config to a hub
// repository, creating the repository if needed. As with configs, there is
// no transactional guarantee across the uploaded files.
func (t *Tokenizer) Push(ctx context.Context, repoID string, opts PushOptions, storeOpts ...config.StoreOption) error {
	store := config.NewStore(storeOpts...)

	pushOpts := []config.PushOption{
		config.WithPushFilename(tokenizer.DefaultConfigFilename),
		config.WithPushSubfolder(tokenizer.DefaultSubfolder),
		config.WithCommitMessage(opts.CommitMessage),
	}
	if opts.Private {
		pushOpts = append(pushOpts, config.WithPrivate())
	}
	if err := store.Push(ctx, t.config, repoID, pushOpts...); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "modelkit-push-*")
	if err != nil {
		return fmt.Errorf("creating temporary push directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := t.saveModel(tmpDir); err != nil {
		return err
	}

	for _, name := range []string{VocabFilename, MergesFilename} {
		commitMessage := opts.CommitMessage
		if commitMessage == "" {
			commitMessage = fmt.Sprintf("Upload %s", name)
		}
		err := store.Hub().UploadFile(ctx,
			filepath.Join(tmpDir, name),
			path.Join(tokenizer.DefaultSubfolder, name),
			repoID,
			hub.UploadOptions{RepoType: hub.RepoTypeModel, CommitMessage: commitMessage},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func specialTokens(tokens []string) []tk.AddedToken {
	added := make([]tk.AddedToken, 0, len(tokens))
	for _, s := range tokens {
		added = append(added, tk.NewAddedToken(s, true))
	}
	return added
}

func init() {
	config.Register(ConfigName, config.TypePreprocessor, func() config.Config { return NewConfig() })
	tokenizer.RegisterLoader(ConfigName, func(ctx context.Context, location string, cfg config.Config) (tokenizer.Tokenizer, error) {
		bpeConfig, ok := cfg.(*Config)
		if !ok {
			return nil, fmt.Errorf("unexpected config type %q for BPE tokenizer", cfg.Name())
		}
		return loadWithConfig(ctx, config.NewStore(), location, bpeConfig)
	})
}
