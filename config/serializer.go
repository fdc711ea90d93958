// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ToMap flattens a config into a plain mapping of field name to value.
// Nested configs become nested mappings. The reserved discriminator keys
// are injected from the instance so the result is loadable generically.
func ToMap(cfg Config) (map[string]any, error) {
	m, err := rawMap(cfg)
	if err != nil {
		return nil, err
	}
	m[FieldName] = cfg.Name()
	m[FieldType] = string(cfg.Type())
	return m, nil
}

// FromMap overlays the mapping onto the target config, touching only the
// keys that exist as declared fields of the target's type. The reserved
// discriminator keys are ignored.
//
// In non-strict mode, unknown keys are dropped and each one is reported
// with a warning. In strict mode an unknown key is an error.
func FromMap(m map[string]any, target Config, strict bool) error {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k == FieldName || k == FieldType {
			continue
		}
		fields[k] = v
	}

	raw, err := yaml.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(strict)
	if err := dec.Decode(target); err != nil && err != io.EOF {
		return fmt.Errorf("decoding mapping into %q config: %w", target.Name(), err)
	}

	if !strict {
		unknown, err := unknownKeys(fields, target)
		if err != nil {
			return err
		}
		for _, k := range unknown {
			log.Warn().Str("name", target.Name()).Str("field", k).Msg("config does not take this parameter, dropping it")
		}
	}
	return nil
}

// rawMap converts a config struct to a mapping without the discriminators.
func rawMap(cfg any) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	m := make(map[string]any)
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding config mapping: %w", err)
	}
	return m, nil
}

// unknownKeys returns the top-level keys of m that are not declared fields
// of the target's type, sorted for stable reporting.
func unknownKeys(m map[string]any, target any) ([]string, error) {
	declared, err := rawMap(target)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for k := range m {
		if k == FieldName || k == FieldType {
			continue
		}
		if _, ok := declared[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// marshalDocument renders a config as a YAML document preserving the
// declared field order, with the discriminator pair first and top-level
// null fields left out. Round-trip is therefore lossy for null fields:
// reloading yields the declared default of each omitted field.
func marshalDocument(cfg Config) ([]byte, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding %q config: %w", cfg.Name(), err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("re-reading %q config document: %w", cfg.Name(), err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %q does not encode to a mapping", cfg.Name())
	}

	mapping := doc.Content[0]
	content := make([]*yaml.Node, 0, len(mapping.Content)+4)
	content = append(content,
		scalarNode(FieldName), scalarNode(cfg.Name()),
		scalarNode(FieldType), scalarNode(string(cfg.Type())),
	)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if value.Tag == "!!null" {
			continue
		}
		content = append(content, key, value)
	}
	mapping.Content = content

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %q config document: %w", cfg.Name(), err)
	}
	return out, nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}
