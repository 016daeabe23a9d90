// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-intake/pkg/types"
)

const envPrefix = "PAPER_INTAKE"

// newViper returns a viper instance seeded with the defaults, so every key
// is known and can be overridden from the environment.
func newViper() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	// Omitted from the encoded defaults when empty.
	for _, key := range []string{"analysis.api_key", "analysis.base_url", "metrics.textfile"} {
		v.SetDefault(key, "")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// loadConfig merges defaults, the config file, PAPER_INTAKE_* variables and
// the persistent log flags, then validates the result.
func loadConfig(cmd *cobra.Command) (types.IntakeConfig, error) {
	var c types.IntakeConfig

	v, err := newViper()
	if err != nil {
		return c, err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("paper-intake")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "paper-intake"))
		}
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return c, fmt.Errorf("reading config: %w", err)
		}
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		v.Set("logging.level", lvl)
	}
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		v.Set("logging.format", f)
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
	return c, nil
}
