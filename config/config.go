// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config implements the parameter containers used throughout the
// toolkit, along with their serialization and hub resolution machinery.
//
// Every module of the toolkit (models, preprocessors, trainers, datasets,
// ...) takes its parameters as a value implementing Config. Concrete
// configs are plain structs with yaml tags; they declare their registered
// name explicitly and obtain their category from an embedded category
// marker, so both discriminators are fixed at type-definition time.
package config

// Type is the category a config belongs to. Every concrete Config type
// belongs to exactly one category, declared by the marker struct it embeds.
type Type string

const (
	TypeBase         Type = "base"
	TypeModel        Type = "model"
	TypePreprocessor Type = "preprocessor"
	TypeTrainer      Type = "trainer"
	TypeDataset      Type = "dataset"
	TypeEmbedding    Type = "embedding"
	TypeCriterion    Type = "criterion"
	TypeOptimizer    Type = "optimizer"
	TypeLRScheduler  Type = "lr_scheduler"
	TypeMetric       Type = "metric"
)

// Reserved top-level keys of every persisted config document. They carry
// the (name, category) discriminator pair consumed by the registry on load
// and are derived from the instance, never stored as struct fields.
const (
	FieldName = "name"
	FieldType = "config_type"
)

// DefaultFilename is the well-known name of a model config file inside a
// config-bearing directory or hub repository.
const DefaultFilename = "model_config.yaml"

// Config is the contract every parameter container implements.
//
// Name returns the lower-snake-case identifier the type is registered
// under; Type returns its category. Together they form the discriminator
// pair written to, and read back from, persisted documents.
type Config interface {
	Name() string
	Type() Type
}

// Category markers. Embedding one of these gives a concrete config its
// category; the concrete type only has to provide Name.

// ModelConfig marks a config as belonging to the model category.
type ModelConfig struct{}

func (ModelConfig) Type() Type { return TypeModel }

// PreprocessorConfig marks a config as belonging to the preprocessor category.
type PreprocessorConfig struct{}

func (PreprocessorConfig) Type() Type { return TypePreprocessor }

// EmbeddingConfig marks a config as belonging to the embedding category.
type EmbeddingConfig struct{}

func (EmbeddingConfig) Type() Type { return TypeEmbedding }

// MetricConfig marks a config as belonging to the metric category.
type MetricConfig struct{}

func (MetricConfig) Type() Type { return TypeMetric }

// DatasetConfig is the base container for dataset parameters.
type DatasetConfig struct {
	// Task is the name of the task(s) this dataset is built for.
	Task string `yaml:"task"`
	// Path is the local path or hub identifier of the dataset.
	Path string `yaml:"path"`
	// MaxSize optionally caps the number of examples.
	MaxSize *int `yaml:"max_size"`
}

func (DatasetConfig) Name() string { return "dataset" }
func (DatasetConfig) Type() Type   { return TypeDataset }

// CriterionConfig is the base container for loss function parameters.
type CriterionConfig struct {
	Reduction   string `yaml:"reduction"`
	IgnoreIndex int    `yaml:"ignore_index"`
}

func (CriterionConfig) Name() string { return "criterion" }
func (CriterionConfig) Type() Type   { return TypeCriterion }

// LRSchedulerConfig is the base container for learning rate scheduler
// parameters.
type LRSchedulerConfig struct {
	WarmupSteps int  `yaml:"warmup_steps"`
	Verbose     bool `yaml:"verbose"`
}

func (LRSchedulerConfig) Name() string { return "lr_scheduler" }
func (LRSchedulerConfig) Type() Type   { return TypeLRScheduler }

// OptimizerConfig is the base container for optimizer parameters.
type OptimizerConfig struct {
	LR          *float64           `yaml:"lr"`
	WeightDecay float64            `yaml:"weight_decay"`
	Scheduler   *LRSchedulerConfig `yaml:"scheduler"`
}

func (OptimizerConfig) Name() string { return "optimizer" }
func (OptimizerConfig) Type() Type   { return TypeOptimizer }

// TrainerConfig holds the framework-level training parameters.
type TrainerConfig struct {
	Task                 string           `yaml:"task"`
	Device               string           `yaml:"device"`
	InitWeightsFrom      string           `yaml:"init_weights_from"`
	Dataset              *DatasetConfig   `yaml:"dataset_config"`
	NumDataloaderWorkers int              `yaml:"num_dataloader_workers"`
	Seed                 int              `yaml:"seed"`
	Optimizer            *OptimizerConfig `yaml:"optimizer"`
	BatchSize            *int             `yaml:"batch_size"`
	UseAMP               bool             `yaml:"use_amp"`
	Metrics              []string         `yaml:"metrics"`
	NumEpochs            *int             `yaml:"num_epochs"`
	SaveFreq             int              `yaml:"save_freq"`
	CheckpointsDir       string           `yaml:"checkpoints_dir"`
	LogDir               string           `yaml:"log_dir"`
}

func (TrainerConfig) Name() string { return "trainer" }
func (TrainerConfig) Type() Type   { return TypeTrainer }

// NewTrainerConfig returns a TrainerConfig with the declared defaults.
func NewTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		Device:   "cuda",
		Seed:     42,
		SaveFreq: 1,
	}
}

// NewCriterionConfig returns a CriterionConfig with the declared defaults.
func NewCriterionConfig() *CriterionConfig {
	return &CriterionConfig{IgnoreIndex: -100}
}

// NewLRSchedulerConfig returns an LRSchedulerConfig with the declared defaults.
func NewLRSchedulerConfig() *LRSchedulerConfig {
	return &LRSchedulerConfig{Verbose: true}
}

func init() {
	Register("trainer", TypeTrainer, func() Config { return NewTrainerConfig() })
	Register("dataset", TypeDataset, func() Config { return new(DatasetConfig) })
	Register("optimizer", TypeOptimizer, func() Config { return new(OptimizerConfig) })
	Register("lr_scheduler", TypeLRScheduler, func() Config { return NewLRSchedulerConfig() })
	Register("criterion", TypeCriterion, func() Config { return NewCriterionConfig() })
}
