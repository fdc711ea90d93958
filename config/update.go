// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// PatchResult reports the outcome of Apply. Extra holds the patch entries
// that are no declared field of the config's type: the config itself never
// gains undeclared fields, unknown parameters are handed back to the
// caller instead.
type PatchResult struct {
	// Applied lists the declared fields that were overwritten, sorted.
	Applied []string
	// Extra maps each unknown patch key to its value.
	Extra map[string]any
}

// Apply overlays the patch onto the config in place, field by field, and
// returns which keys were applied and which were unknown. Inline overrides
// are merged into the patch first, winning on key collision.
//
// An unknown key is not an error: it is reported with a single warning and
// collected in the result's Extra mapping.
func Apply(cfg Config, patch map[string]any, inline ...map[string]any) (*PatchResult, error) {
	merged := make(map[string]any, len(patch))
	for k, v := range patch {
		merged[k] = v
	}
	for _, m := range inline {
		for k, v := range m {
			merged[k] = v
		}
	}

	unknown, err := unknownKeys(merged, cfg)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{Extra: make(map[string]any, len(unknown))}
	for _, k := range unknown {
		log.Warn().Str("name", cfg.Name()).Str("field", k).Msg("config does not take this parameter")
		result.Extra[k] = merged[k]
		delete(merged, k)
	}

	if err := FromMap(merged, cfg, false); err != nil {
		return nil, err
	}
	for k := range merged {
		if k == FieldName || k == FieldType {
			continue
		}
		result.Applied = append(result.Applied, k)
	}
	sort.Strings(result.Applied)
	return result, nil
}
