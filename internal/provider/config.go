package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the on-disk provider configuration. API keys are referenced
// by environment variable name, never stored in the file.
type ConfigFile struct {
	Providers []ProfileConfig `yaml:"providers"`
}

type ProfileConfig struct {
	Profile   `yaml:",inline"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// LoadRegistry parses a YAML provider config and resolves API keys from the
// environment. Missing keys are left empty; whether that is fatal is the
// provider endpoint's call, not the loader's.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(b)
}

// ParseRegistry builds a Registry from raw YAML config bytes.
func ParseRegistry(b []byte) (*Registry, error) {
	var cfg ConfigFile
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}
	profiles := make([]Profile, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p := pc.Profile
		if env := strings.TrimSpace(pc.APIKeyEnv); env != "" && p.APIKey == "" {
			p.APIKey = strings.TrimSpace(os.Getenv(env))
		}
		profiles = append(profiles, p)
	}
	return NewRegistry(profiles)
}
