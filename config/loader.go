package config

// loader.go - configuration loading from the environment and YAML files.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (FAKESSH_*)
//   3. YAML config file  (--config)
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every supported environment variable, e.g.
// FAKESSH_LISTEN_ADDR or FAKESSH_BACKEND_TIMEOUT=90s.
const EnvPrefix = "FAKESSH"

// LoadFromEnv overlays FAKESSH_* environment variables onto cfg.  Unset
// variables leave the existing value alone.  Call it after LoadFile and
// before CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// LoadFile overlays the YAML document at path onto cfg.  Keys missing
// from the file keep their current value; unknown keys are an error so
// that typos do not go unnoticed.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// Dump renders cfg as YAML, the same shape LoadFile accepts.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
