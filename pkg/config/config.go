// Package config loads klint.yaml files and resolves them into task settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"klint/pkg/buildcache"
)

// FileName is the configuration file looked up in the project directory and its parents
const FileName = "klint.yaml"

// Config represents the merged configuration from all klint.yaml files
type Config struct {
	// Version is the ktlint version
	Version string `yaml:"version"`
	// MinVersion overrides the version gate floor
	MinVersion string `yaml:"minVersion"`
	// Reporters are reporter names such as PLAIN or CHECKSTYLE
	Reporters []string `yaml:"reporters" validate:"omitempty,dive,required"`
	// Filter holds include and exclude glob patterns
	Filter Filter `yaml:"filter"`
	// SourceSets adds directories to source sets, keyed by source set name
	SourceSets map[string]SourceSet `yaml:"sourceSets" validate:"omitempty,dive"`
	// ReportsDir is relative to the project unless absolute
	ReportsDir      string `yaml:"reportsDir"`
	IgnoreFailures  *bool  `yaml:"ignoreFailures"`
	OutputToConsole *bool  `yaml:"outputToConsole"`
	// KtlintBinary is the ktlint executable to run
	KtlintBinary string     `yaml:"ktlintBinary"`
	Records      Records    `yaml:"records"`
	BuildCache   BuildCache `yaml:"buildCache"`

	// Files are the configuration files that were merged, root first
	Files []string `yaml:"-"`
}

// Filter holds glob patterns matched against paths relative to source roots
type Filter struct {
	Include []string `yaml:"include" validate:"omitempty,dive,required"`
	Exclude []string `yaml:"exclude" validate:"omitempty,dive,required"`
}

// SourceSet configures one source set
type SourceSet struct {
	// SrcDirs are extra source directories relative to the project
	SrcDirs []string `yaml:"srcDirs" validate:"omitempty,dive,required"`
}

// Records selects where task records are stored
type Records struct {
	Backend string `yaml:"backend" validate:"omitempty,oneof=file badger"`
}

// BuildCache configures the shared build cache. At most one backend is used:
// s3, then gcs, then a local directory.
type BuildCache struct {
	Enabled bool                  `yaml:"enabled"`
	Dir     string                `yaml:"dir"`
	S3      *buildcache.S3Config  `yaml:"s3" validate:"omitempty"`
	GCS     *buildcache.GCSConfig `yaml:"gcs" validate:"omitempty"`
}

// LoadConfiguration loads and merges all klint.yaml files from the directory
// hierarchy. Files nearer to startDir override their parents.
func LoadConfiguration(startDir string) (*Config, error) {
	config := &Config{}

	// Walk up the directory hierarchy looking for klint.yaml files
	currentDir := startDir
	var configFiles []string

	for {
		configPath := filepath.Join(currentDir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			configFiles = append(configFiles, configPath)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	// Process config files from root to leaf (so leaf configs override parent configs)
	for i := len(configFiles) - 1; i >= 0; i-- {
		if err := config.mergeConfigFile(configFiles[i]); err != nil {
			return nil, fmt.Errorf("failed to merge config file %s: %w", configFiles[i], err)
		}
		config.Files = append(config.Files, configFiles[i])
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeConfigFile merges a single config file into the current configuration
func (c *Config) mergeConfigFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	c.merge(&fileConfig)
	return nil
}

// merge overlays every value set in other onto c. Lists are replaced, source
// sets are merged by name.
func (c *Config) merge(other *Config) {
	if other.Version != "" {
		c.Version = other.Version
	}
	if other.MinVersion != "" {
		c.MinVersion = other.MinVersion
	}
	if other.Reporters != nil {
		c.Reporters = other.Reporters
	}
	if other.Filter.Include != nil {
		c.Filter.Include = other.Filter.Include
	}
	if other.Filter.Exclude != nil {
		c.Filter.Exclude = other.Filter.Exclude
	}
	for name, set := range other.SourceSets {
		if c.SourceSets == nil {
			c.SourceSets = make(map[string]SourceSet)
		}
		c.SourceSets[name] = set
	}
	if other.ReportsDir != "" {
		c.ReportsDir = other.ReportsDir
	}
	if other.IgnoreFailures != nil {
		c.IgnoreFailures = other.IgnoreFailures
	}
	if other.OutputToConsole != nil {
		c.OutputToConsole = other.OutputToConsole
	}
	if other.KtlintBinary != "" {
		c.KtlintBinary = other.KtlintBinary
	}
	if other.Records.Backend != "" {
		c.Records.Backend = other.Records.Backend
	}
	if other.BuildCache.Enabled {
		c.BuildCache.Enabled = true
	}
	if other.BuildCache.Dir != "" {
		c.BuildCache.Dir = other.BuildCache.Dir
	}
	if other.BuildCache.S3 != nil {
		c.BuildCache.S3 = other.BuildCache.S3
	}
	if other.BuildCache.GCS != nil {
		c.BuildCache.GCS = other.BuildCache.GCS
	}
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
