package executor

import "github.com/caffeineduck/wasipy/mount"

// Language defines the interface for a WASM-compiled interpreter.
type Language interface {
	// Name returns a unique identifier for this interpreter (e.g., "python").
	// Used as the cache key for compiled modules.
	Name() string

	// Module returns the WASM binary for the interpreter.
	Module() []byte

	// Args returns the command-line arguments that make the interpreter
	// execute code, including argv[0].
	Args(code string) []string

	// Env returns environment variables the interpreter needs to start.
	Env() map[string]string

	// Mounts returns directories the interpreter itself needs, such as the
	// location of its standard library.
	Mounts() []mount.Mount
}
