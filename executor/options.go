package executor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/caffeineduck/wasipy/mount"
)

// Option configures a single Run.
type Option func(*Settings)

// Settings is the resolved form of a list of Options.
type Settings struct {
	Timeout time.Duration     // 0 means no limit
	Mounts  []mount.Mount     // Added after the language's own mounts
	Env     map[string]string // Overrides the language's environment
	Args    []string          // Replaces Language.Args when set
	Stdin   io.Reader
	Stdout  io.Writer // Output is buffered into Result.Output when nil
	Stderr  io.Writer // Output is buffered into Result.Output when nil
}

// Resolve applies opts on top of the defaults.
func Resolve(opts ...Option) Settings {
	s := Settings{Env: make(map[string]string)}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTimeout sets the maximum execution time.
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) {
		s.Timeout = d
	}
}

// WithMount exposes a host directory inside the sandbox.
//
// Examples:
//
//	executor.WithMount("/package_dir", "./pkg", mount.ReadWrite)
//	executor.WithMount("/data", "./input", mount.ReadOnly)
func WithMount(guestPath, hostPath string, mode mount.Mode) Option {
	return func(s *Settings) {
		s.Mounts = append(s.Mounts, mount.Mount{
			GuestPath: guestPath,
			HostPath:  hostPath,
			Mode:      mode,
		})
	}
}

// WithEnv sets a guest environment variable.
func WithEnv(key, value string) Option {
	return func(s *Settings) {
		s.Env[key] = value
	}
}

// WithArgs replaces the interpreter arguments, including argv[0].
func WithArgs(args ...string) Option {
	return func(s *Settings) {
		s.Args = args
	}
}

// WithStdin connects the guest's standard input.
func WithStdin(r io.Reader) Option {
	return func(s *Settings) {
		s.Stdin = r
	}
}

// WithStdout streams guest stdout to w instead of buffering it.
func WithStdout(w io.Writer) Option {
	return func(s *Settings) {
		s.Stdout = w
	}
}

// WithStderr streams guest stderr to w instead of buffering it.
func WithStderr(w io.Writer) Option {
	return func(s *Settings) {
		s.Stderr = w
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Language // Languages to precompile at startup
	memoryLimitPages uint32     // Max memory pages (each page = 64KB), 0 = default (4GB)
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0,
	}
}

// WithDiskCache enables a persistent compilation cache. The interpreter
// module is large, so this turns a multi-second compile into a load.
// Optionally provide a custom directory; otherwise uses ~/.cache/wasipy or
// XDG_CACHE_HOME/wasipy.
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the specified languages at Executor creation time.
func WithPrecompile(langs ...Language) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = langs
	}
}

// WithMemoryLimit sets the maximum memory available to WASM modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// ParseMemoryLimit converts "1mb", "16mb", "64mb", "256mb" or "1gb" to pages.
// An empty string means no limit.
func ParseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "1mb":
		return MemoryLimit1MB, nil
	case "16mb":
		return MemoryLimit16MB, nil
	case "64mb":
		return MemoryLimit64MB, nil
	case "256mb":
		return MemoryLimit256MB, nil
	case "1gb":
		return MemoryLimit1GB, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q (expected 1mb, 16mb, 64mb, 256mb or 1gb)", s)
	}
}
