// Package config loads the optional driver configuration file. The
// file is TOML and carries a schema version checked against the range
// this build understands.
package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
)

// SchemaConstraint is the config schema range this build accepts.
const SchemaConstraint = ">= 1.0.0, < 2.0.0"

// Config are the driver defaults a minicc.toml can set; command line
// flags win over all of them.
type Config struct {
	Schema        string `toml:"schema"`
	Target        string `toml:"target"`
	Optimize      bool   `toml:"optimize"`
	PrintAfterAll bool   `toml:"print_after_all"`
	Verbose       bool   `toml:"verbose"`
}

// Default returns the built in configuration.
func Default() Config {
	return Config{Schema: "1.0.0", Target: "aarch64"}
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := checkSchema(cfg.Schema); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func checkSchema(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("bad schema version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("schema version %s is outside the supported range %q", version, SchemaConstraint)
	}
	return nil
}
