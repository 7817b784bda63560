// Package config loads the outer configuration for kashk's cmd binaries
// (data path, listen address, compaction threshold) from a YAML file
// overlaid with .env values. This is unrelated to the engine's own
// persistence, which takes no config files or environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds settings for the cmd/kashkd and cmd/kashk-cli binaries.
type Config struct {
	DataPath  string `yaml:"data_path"`
	Addr      string `yaml:"addr"`
	Threshold int64  `yaml:"threshold"`
}

func defaults() Config {
	return Config{
		DataPath:  "kashk.data",
		Addr:      ":8080",
		Threshold: 1 << 20,
	}
}

// Load reads .env (if present, ignored if missing) then a YAML file at
// path (if present) on top of the defaults. A missing YAML file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	// .env is optional; godotenv's own error doesn't reliably satisfy
	// os.IsNotExist once wrapped, so a missing file is just not an error
	// we care about here.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
