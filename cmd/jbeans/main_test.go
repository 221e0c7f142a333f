package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("JBEANS_CLASSPATH", "")
	t.Setenv("JBEANS_LOG_LEVEL", "error")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: list
  class: java.util.ArrayList
  new: true
- on: list
  call: add
  args: [a]
- id: size
  on: list
  call: size
- id: out
  class: java.lang.System
  field: out
- on: out
  call: println
  args: [{ref: list}]
`), 0o644))

	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[a]\n")
	assert.Contains(t, out, "size = 1\n")
}

func TestRunFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: n
  class: java.lang.Integer
  call: valueOf
  args: ["4"]
- class: java.lang.Integer
  call: parseInt
  args: [x]
`), 0o644))

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node 1")
	assert.Contains(t, out, "n = 4\n", "values before the failure are still printed")
}

func TestMethods(t *testing.T) {
	out, err := execute(t, "methods", "java.util.ArrayList")
	require.NoError(t, err)
	assert.Contains(t, out, "java.util.ArrayList.size()")

	_, err = execute(t, "methods", "demo.Missing")
	assert.Error(t, err)
}

func TestRunNeedsScript(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}
