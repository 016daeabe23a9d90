// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves API keys for the analysis service. A key can be
// set in the config file, in an environment variable, or as a file in the
// .secrets/ directory named after the key (anthropic-api-key,
// openai-api-key) holding the value.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Key file names read by the analysis stage.
const (
	AnthropicAPIKey = "anthropic-api-key"
	OpenAIAPIKey    = "openai-api-key"
)

// Lookup returns the first non-empty value among the configured value,
// the environment variable env, and the secret file name in s.
func Lookup(s map[string]string, configured, env, name string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	if env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return s[name]
}

// Load reads the key files in dir. A missing directory yields an empty map.
// Dotfiles, subdirectories and blank files are ignored; a file that cannot
// be read is logged and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	return load(os.DirFS(dir), dir, log)
}

func load(fsys fs.FS, dir string, log zerolog.Logger) (map[string]string, error) {
	keys := make(map[string]string)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keys, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unreadable secret")
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			keys[name] = v
		}
	}
	return keys, nil
}
