// Package config loads the application configuration and the JSON lookup
// tables that drive extraction, verification and promotion.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factgate/internal/model"
)

// EnvPrefix prefixes environment overrides, e.g. FACTGATE_DATABASE_PATH
const EnvPrefix = "FACTGATE"

// initHint is attached to every missing-file error
const initHint = "run `factgate config init` to write the default configuration and tables"

// DefaultDir returns ~/.factgate, or .factgate when there is no home directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".factgate"
	}
	return filepath.Join(home, ".factgate")
}

// Load builds the configuration: defaults, then the config file (if any),
// then FACTGATE_* environment variables. An explicit file that cannot be
// read is an error; a missing default file is not.
func Load(v *viper.Viper, file string) (*model.Config, error) {
	dir := DefaultDir()
	defaults := model.DefaultConfig(dir)

	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, errors.Wrap(err, "marshal default config")
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "load default config")
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.WithHint(errors.Wrapf(err, "read config file %s", file), initHint)
		}
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys omitted from the default YAML are unknown to AutomaticEnv
	for _, key := range []string{"assay.api_key", "assay.base_url", "http.http_proxy", "http.https_proxy", "http.no_proxy"} {
		_ = v.BindEnv(key)
	}

	cfg := model.DefaultConfig(dir)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if cfg.Assay.APIKey == "" && cfg.Assay.Provider == "openai" {
		cfg.Assay.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}

// WriteConfig writes cfg as YAML to path. An existing file is only
// replaced when overwrite is set.
func WriteConfig(path string, cfg *model.Config, overwrite bool) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	var buf bytes.Buffer
	buf.WriteString("# factgate configuration\n")
	buf.WriteString("#\n")
	buf.WriteString("# Priority (highest first): CLI flags, FACTGATE_* environment variables,\n")
	buf.WriteString("# this file, built-in defaults.\n\n")
	buf.Write(data)
	buf.WriteString("\n# Live assay API key (prefer the environment):\n")
	buf.WriteString("#   export OPENAI_API_KEY=sk-...\n")

	return writeFile(path, buf.Bytes(), overwrite)
}

func writeFile(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
