// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hub

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultEndpoint is the hub instance used when no other is configured.
const DefaultEndpoint = "https://huggingface.co"

// Settings are the process-wide hub parameters. They are read once from
// the environment and an optional settings file; the values are plain data
// afterwards, so tests can build their own.
type Settings struct {
	// Endpoint is the base URL of the hub.
	Endpoint string `mapstructure:"endpoint"`
	// Token is the access token sent as a bearer credential, if any.
	Token string `mapstructure:"token"`
	// CacheDir is the directory downloaded artifacts are kept in. It is
	// created lazily on first download and lives for as long as the user
	// keeps it.
	CacheDir string `mapstructure:"cache_dir"`
}

// LoadSettings reads the hub settings from MODELKIT_* environment
// variables and, when present, a settings.yaml under the user config
// directory. A missing settings file is not an error; defaults apply.
func LoadSettings() Settings {
	v := viper.New()
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("token", "")
	v.SetDefault("cache_dir", defaultCacheDir())

	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "modelkit"))
	}

	v.SetEnvPrefix("modelkit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("failed to read hub settings file, falling back to defaults")
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		log.Warn().Err(err).Msg("failed to decode hub settings, falling back to defaults")
		return Settings{Endpoint: DefaultEndpoint, CacheDir: defaultCacheDir()}
	}
	return settings
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "modelkit")
	}
	return filepath.Join(os.TempDir(), "modelkit-cache")
}
