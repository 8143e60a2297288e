package python

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caffeineduck/wasipy/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "python.wasm")
	require.NoError(t, os.WriteFile(path, []byte("\x00asm"), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00asm"), p.Module())
	assert.Equal(t, "python", p.Name())

	_, err = Load(filepath.Join(dir, "missing.wasm"))
	assert.Error(t, err)
}

func TestArgs(t *testing.T) {
	p := New(nil)
	args := p.Args("print(1)")
	assert.Equal(t, []string{"python", "-c", "print(1)"}, args)
}

func TestInteractiveArgs(t *testing.T) {
	args := New(nil).InteractiveArgs()
	require.NotEmpty(t, args)
	assert.Equal(t, "python", args[0])
	assert.Contains(t, args, "-i")
	assert.Contains(t, args, "-u")
}

func TestEnvWithoutHome(t *testing.T) {
	env := New(nil).Env()
	assert.Equal(t, "1", env["PYTHONDONTWRITEBYTECODE"])
	_, ok := env["PYTHONHOME"]
	assert.False(t, ok)
	assert.Empty(t, New(nil).Mounts())
}

func TestEnvWithHome(t *testing.T) {
	p := New(nil, WithHome("/opt/python"), WithEnv("PYTHONPATH", "/package_dir"))

	env := p.Env()
	assert.Equal(t, GuestHome, env["PYTHONHOME"])
	assert.Equal(t, "/package_dir", env["PYTHONPATH"])

	mounts := p.Mounts()
	require.Len(t, mounts, 1)
	assert.Equal(t, mount.Mount{GuestPath: "/", HostPath: "/opt/python", Mode: mount.ReadOnly}, mounts[0])
	assert.Equal(t, "/opt/python", p.Home())
}

func TestProbes(t *testing.T) {
	assert.Contains(t, PythonVersion.Code, "sys.version_info[:2]")
	assert.Contains(t, PlatformVersion.Code, `platform.platform().split("-")[1]`)

	for name, probe := range Probes {
		assert.Equal(t, name, probe.Name)
		assert.True(t, strings.HasSuffix(probe.Code, "\n"))
	}
}
