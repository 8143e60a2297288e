// Package python provides the CPython (WASI build) adapter for wasipy.
package python

import (
	"fmt"
	"os"

	"github.com/caffeineduck/wasipy/mount"
)

// GuestHome is where the interpreter's home directory appears in the sandbox.
const GuestHome = "/"

// Python implements the executor.Language interface for a WASI build of
// CPython.
type Python struct {
	module []byte
	home   string
	env    map[string]string
}

// Option configures the adapter.
type Option func(*Python)

// WithHome mounts dir read-only as the interpreter's home. It must contain
// the standard library (lib/pythonX.Y).
func WithHome(dir string) Option {
	return func(p *Python) {
		p.home = dir
	}
}

// WithEnv adds a variable to the interpreter's environment.
func WithEnv(key, value string) Option {
	return func(p *Python) {
		p.env[key] = value
	}
}

// New returns an adapter around an interpreter module already in memory.
func New(module []byte, opts ...Option) *Python {
	p := &Python{module: module, env: make(map[string]string)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads the interpreter module from path.
func Load(path string, opts ...Option) (*Python, error) {
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load interpreter: %w", err)
	}
	return New(module, opts...), nil
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Module returns the interpreter WASM binary.
func (p *Python) Module() []byte {
	return p.module
}

// Home returns the host directory mounted as the interpreter's home.
func (p *Python) Home() string {
	return p.home
}

// Args returns the command-line arguments that run code as __main__.
func (p *Python) Args(code string) []string {
	return []string{"python", "-c", code}
}

// InteractiveArgs starts the interpreter's own read-eval-print loop with
// unbuffered output and without prompts, leaving prompting to the host.
func (p *Python) InteractiveArgs() []string {
	return []string{"python", "-u", "-i", "-q", "-c", "import sys; sys.ps1 = sys.ps2 = ''"}
}

// Env returns the interpreter's environment. Bytecode writing is always
// off because the home mount is read-only.
func (p *Python) Env() map[string]string {
	env := map[string]string{
		"PYTHONDONTWRITEBYTECODE": "1",
	}
	if p.home != "" {
		env["PYTHONHOME"] = GuestHome
	}
	for k, v := range p.env {
		env[k] = v
	}
	return env
}

// Mounts returns the home mount, if any.
func (p *Python) Mounts() []mount.Mount {
	if p.home == "" {
		return nil
	}
	return []mount.Mount{{GuestPath: GuestHome, HostPath: p.home, Mode: mount.ReadOnly}}
}
