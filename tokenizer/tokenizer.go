// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tokenizer defines the common tokenizer contract and the generic
// loader that picks the concrete implementation from a serialized
// tokenizer config.
package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelkit-ai/modelkit/config"
)

// Well-known location of a serialized tokenizer config. The config and
// the model files of the concrete implementation live under the
// preprocessor subfolder of a config-bearing directory or repository.
const (
	DefaultConfigFilename = "tokenizer_config.yaml"
	DefaultSubfolder      = "preprocessor"
)

// Tokenizer is the interface that wraps the basic tokenizer methods.
type Tokenizer interface {
	// Tokenize returns the sequence of token IDs for the given text.
	Tokenize(text string) ([]int, error)
	// ReconstructText returns the text corresponding to the given sequence
	// of token IDs.
	ReconstructText(ids []int) (string, error)
}

// Config holds the parameters shared by every tokenizer implementation.
// Concrete tokenizer configs embed it inline.
type Config struct {
	config.PreprocessorConfig `yaml:"-"`

	MaxLength          *int   `yaml:"max_length"`
	TruncationStrategy string `yaml:"truncation_strategy"`
	TruncationSide     string `yaml:"truncation_side"`
	PaddingStrategy    string `yaml:"padding_strategy"`
	PaddingSide        string `yaml:"padding_side"`
	Stride             int    `yaml:"stride"`
	PadToMultipleOf    *int   `yaml:"pad_to_multiple_of"`
}

// LoaderFunc builds a concrete tokenizer from its already loaded config.
// The location is the same local directory or hub repository the config
// was resolved from.
type LoaderFunc func(ctx context.Context, location string, cfg config.Config) (Tokenizer, error)

var (
	loadersMu sync.RWMutex
	loaders   = make(map[string]LoaderFunc)
)

// RegisterLoader associates a registered tokenizer config name with the
// loader of its concrete implementation.
func RegisterLoader(name string, fn LoaderFunc) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[name] = fn
}

// Load reads the tokenizer config from the given local directory or hub
// repository and builds the tokenizer implementation it names.
func Load(ctx context.Context, location string, opts ...config.StoreOption) (Tokenizer, error) {
	store := config.NewStore(opts...)
	cfg, err := store.Load(ctx, location,
		config.WithFilename(DefaultConfigFilename),
		config.WithSubfolder(DefaultSubfolder),
	)
	if err != nil {
		return nil, err
	}

	loadersMu.RLock()
	fn, ok := loaders[cfg.Name()]
	loadersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no tokenizer implementation registered for %q", cfg.Name())
	}
	return fn(ctx, location, cfg)
}
