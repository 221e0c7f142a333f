// Package config loads jbeans configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/daimatz/jbeans/pkg/vm"
)

// Config is the top-level configuration.
type Config struct {
	// Classpath lists directories holding <name>.class files.
	Classpath []string `yaml:"classpath"`
	// Jmod is the path of java.base.jmod. Empty means discover it.
	Jmod      string          `yaml:"jmod"`
	Log       LogConfig       `yaml:"log"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// EvaluatorConfig configures statement evaluation.
type EvaluatorConfig struct {
	ForceAccess    bool `yaml:"force_access"`
	IteratorParity bool `yaml:"iterator_parity"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log:       LogConfig{Level: "info"},
		Evaluator: EvaluatorConfig{ForceAccess: true},
	}
}

// Load reads path over the defaults. A missing file, or an empty path,
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if cp := os.Getenv("JBEANS_CLASSPATH"); cp != "" {
		c.Classpath = filepath.SplitList(cp)
	}
	if level := os.Getenv("JBEANS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// JmodPath returns the configured jmod, or the first of JAVA_BASE_JMOD,
// $JAVA_HOME/jmods/java.base.jmod and an installed OpenJDK that exists.
// It returns "" when none is found.
func (c *Config) JmodPath() string {
	if c.Jmod != "" {
		return c.Jmod
	}
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// ClassSource returns the classpath directories followed by the jmod, or
// nil when neither is available.
func (c *Config) ClassSource() vm.ClassSource {
	var chain vm.ChainSource
	for _, dir := range c.Classpath {
		chain = append(chain, vm.NewDirSource(dir))
	}
	if jmod := c.JmodPath(); jmod != "" {
		chain = append(chain, vm.NewJmodSource(jmod))
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}
