package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/daimatz/jbeans/pkg/vm"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jbeans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JBEANS_CLASSPATH", "")
	t.Setenv("JBEANS_LOG_LEVEL", "")

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
			t.Errorf("Load(%q) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("JBEANS_CLASSPATH", "")
	t.Setenv("JBEANS_LOG_LEVEL", "")
	path := writeConfig(t, `
classpath: [build/classes, lib]
jmod: /opt/jdk/jmods/java.base.jmod
log:
  level: debug
evaluator:
  force_access: false
  iterator_parity: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	want := &Config{
		Classpath: []string{"build/classes", "lib"},
		Jmod:      "/opt/jdk/jmods/java.base.jmod",
		Log:       LogConfig{Level: "debug"},
		Evaluator: EvaluatorConfig{ForceAccess: false, IteratorParity: true},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, zapcore.DebugLevel, cfg.Level())
	assert.Equal(t, "/opt/jdk/jmods/java.base.jmod", cfg.JmodPath())
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Setenv("JBEANS_CLASSPATH", "")
	t.Setenv("JBEANS_LOG_LEVEL", "")
	cfg, err := Load(writeConfig(t, "classpath: [a]\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Evaluator.ForceAccess)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JBEANS_CLASSPATH", "x"+string(os.PathListSeparator)+"y")
	t.Setenv("JBEANS_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "classpath: [a]\nlog: {level: debug}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, cfg.Classpath)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level())
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("JBEANS_CLASSPATH", "")
	t.Setenv("JBEANS_LOG_LEVEL", "")

	_, err := Load(writeConfig(t, "classpath: {not: a list}\n"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "log: {level: loud}\n"))
	assert.ErrorContains(t, err, "invalid log.level")
}

func TestJmodPath(t *testing.T) {
	home := t.TempDir()
	jmod := filepath.Join(home, "jmods", "java.base.jmod")
	require.NoError(t, os.MkdirAll(filepath.Dir(jmod), 0o755))
	require.NoError(t, os.WriteFile(jmod, nil, 0o644))

	cfg := DefaultConfig()
	t.Setenv("JAVA_BASE_JMOD", "/explicit/java.base.jmod")
	t.Setenv("JAVA_HOME", home)
	assert.Equal(t, "/explicit/java.base.jmod", cfg.JmodPath())

	t.Setenv("JAVA_BASE_JMOD", "")
	assert.Equal(t, jmod, cfg.JmodPath())

	cfg.Jmod = "/configured.jmod"
	assert.Equal(t, "/configured.jmod", cfg.JmodPath())
}

func TestClassSource(t *testing.T) {
	t.Setenv("JAVA_BASE_JMOD", "")
	t.Setenv("JAVA_HOME", "")

	cfg := DefaultConfig()
	cfg.Classpath = []string{t.TempDir()}
	src := cfg.ClassSource()
	require.NotNil(t, src)
	_, err := src.LoadClass("demo/Missing")
	assert.ErrorIs(t, err, vm.ErrClassNotFound)

	cfg.Jmod = "/configured.jmod"
	chain, ok := cfg.ClassSource().(vm.ChainSource)
	require.True(t, ok)
	assert.Len(t, chain, 2)
}
