// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings := LoadSettings()
	assert.Equal(t, DefaultEndpoint, settings.Endpoint)
	assert.NotEmpty(t, settings.CacheDir)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("MODELKIT_ENDPOINT", "https://hub.example.com")
	t.Setenv("MODELKIT_TOKEN", "secret")
	t.Setenv("MODELKIT_CACHE_DIR", "/tmp/modelkit-test-cache")

	settings := LoadSettings()
	assert.Equal(t, "https://hub.example.com", settings.Endpoint)
	assert.Equal(t, "secret", settings.Token)
	assert.Equal(t, "/tmp/modelkit-test-cache", settings.CacheDir)
}
