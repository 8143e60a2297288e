package harness

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/language/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadInterpreter returns the CPython WASI build named by WASIPY_PYTHON_WASM
// (with its stdlib in WASIPY_PYTHON_HOME), or skips the test.
func loadInterpreter(t *testing.T) *python.Python {
	t.Helper()
	path := os.Getenv("WASIPY_PYTHON_WASM")
	if path == "" {
		t.Skip("WASIPY_PYTHON_WASM not set")
	}
	var opts []python.Option
	if home := os.Getenv("WASIPY_PYTHON_HOME"); home != "" {
		opts = append(opts, python.WithHome(home))
	}
	py, err := python.Load(path, opts...)
	require.NoError(t, err)
	return py
}

func runPython(t *testing.T, py *python.Python, source, pkg string) (Outcome, string) {
	t.Helper()
	exec, err := executor.New(executor.WithDiskCache())
	require.NoError(t, err)
	t.Cleanup(func() { exec.Close() })

	testFile := filepath.Join(t.TempDir(), "test.py")
	require.NoError(t, os.WriteFile(testFile, []byte(source), 0644))

	var out bytes.Buffer
	outcome, err := Run(context.Background(), exec, py, Config{
		TestFile:   testFile,
		PackageDir: pkg,
		Stdout:     &out,
		Stderr:     &out,
	}, nil)
	require.NoError(t, err)
	return outcome, out.String()
}

func TestPythonSuccessExitsZero(t *testing.T) {
	py := loadInterpreter(t)
	outcome, out := runPython(t, py, "print('hello')\n", t.TempDir())
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, "hello\n", out)
}

func TestPythonUnhandledExceptionExitsNonZero(t *testing.T) {
	py := loadInterpreter(t)
	outcome, out := runPython(t, py, "raise RuntimeError('boom')\n", t.TempDir())
	assert.Equal(t, 1, outcome.ExitCode)
	assert.Contains(t, out, "RuntimeError: boom")
}

func TestPythonSystemExitStatus(t *testing.T) {
	py := loadInterpreter(t)
	outcome, _ := runPython(t, py, "import sys\nsys.exit(5)\n", t.TempDir())
	assert.Equal(t, 5, outcome.ExitCode)
}

func TestPythonSeesMountedPackage(t *testing.T) {
	py := loadInterpreter(t)
	pkg := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "marker.txt"), []byte("present"), 0644))

	source := strings.Join([]string{
		"import os",
		"print(sorted(os.listdir('/package_dir')))",
		"print(open('/package_dir/marker.txt').read())",
		"open('/package_dir/written.txt', 'w').write('from guest')",
	}, "\n") + "\n"

	outcome, out := runPython(t, py, source, pkg)
	require.Equal(t, 0, outcome.ExitCode, out)
	assert.Contains(t, out, "['marker.txt']")
	assert.Contains(t, out, "present")

	written, err := os.ReadFile(filepath.Join(pkg, "written.txt"))
	require.NoError(t, err)
	assert.Equal(t, "from guest", string(written))
}
