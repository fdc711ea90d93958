// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package imageprocessor holds the configuration of the composable image
// transform pipeline (resize, rescale, normalize). The numeric transforms
// themselves run inside the model runtime; this package owns the
// parameters, their serialization and their hub round trip.
package imageprocessor

import (
	"context"
	"fmt"

	"github.com/modelkit-ai/modelkit/config"
)

// ConfigName is the registered name of the image processor config.
const ConfigName = "image_processor"

// Well-known location of a serialized image processor config.
const (
	DefaultConfigFilename = "image_processor_config.yaml"
	DefaultSubfolder      = "preprocessor"
)

// Config holds the parameters of the image transform pipeline. Nil fields
// switch the corresponding transform off.
type Config struct {
	config.PreprocessorConfig `yaml:"-"`

	// Mean and Std are the per-channel normalization parameters.
	Mean []float64 `yaml:"mean"`
	Std  []float64 `yaml:"std"`
	// Rescale is the scale factor applied to raw pixel values.
	Rescale *float64 `yaml:"rescale"`
	// Resample selects the resampling filter used when resizing.
	Resample *int `yaml:"resample"`
	// Size is the (width, height) pair images are resized to.
	Size []int `yaml:"size"`
}

func (Config) Name() string { return ConfigName }

// NewConfig returns a Config with every transform switched off.
func NewConfig() *Config {
	return &Config{}
}

// Validate checks the structural constraints of the config.
func (c *Config) Validate() error {
	if len(c.Size) != 0 && len(c.Size) != 2 {
		return fmt.Errorf("size must be a (width, height) pair, got %d values", len(c.Size))
	}
	if (len(c.Mean) == 0) != (len(c.Std) == 0) {
		return fmt.Errorf("mean and std must be set together")
	}
	return nil
}

// Load reads an image processor config from a local directory or hub
// repository, with the same local-first policy used for every config.
func Load(ctx context.Context, location string, opts ...config.StoreOption) (*Config, error) {
	store := config.NewStore(opts...)
	loaded, err := store.Load(ctx, location,
		config.WithFilename(DefaultConfigFilename),
		config.WithSubfolder(DefaultSubfolder),
	)
	if err != nil {
		return nil, err
	}
	cfg, ok := loaded.(*Config)
	if !ok {
		return nil, fmt.Errorf("location %q holds a %q config, not an image processor one", location, loaded.Name())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image processor config at %q: %w", location, err)
	}
	return cfg, nil
}

// Save writes the config under the preprocessor subfolder of the given
// directory and returns the written path.
func (c *Config) Save(directory string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	store := config.NewStore()
	return store.Save(c, directory, DefaultConfigFilename, config.WithSaveSubfolder(DefaultSubfolder))
}

// Push uploads the config to a hub repository, creating it if needed.
func (c *Config) Push(ctx context.Context, repoID string, pushOpts []config.PushOption, storeOpts ...config.StoreOption) error {
	if err := c.Validate(); err != nil {
		return err
	}
	store := config.NewStore(storeOpts...)
	pushOpts = append([]config.PushOption{
		config.WithPushFilename(DefaultConfigFilename),
		config.WithPushSubfolder(DefaultSubfolder),
	}, pushOpts...)
	return store.Push(ctx, c, repoID, pushOpts...)
}

func init() {
	config.Register(ConfigName, config.TypePreprocessor, func() config.Config { return NewConfig() })
}
