package executor

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/caffeineduck/wasipy/mount"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

var (
	ErrClosed  = errors.New("executor closed")
	ErrTimeout = errors.New("execution timed out")
)

// Result holds the output and exit status of one interpreter run.
type Result struct {
	// Output holds buffered stdout followed by stderr. Streams redirected
	// with WithStdout or WithStderr are not captured.
	Output string
	// ExitCode is the status the guest reported through proc_exit, or 0
	// when it returned normally.
	ExitCode uint32
	Duration time.Duration
	// Error is set when the host could not run the guest to completion:
	// compile failure, bad mount, trap, timeout or cancellation.
	Error error
}

// Status returns the process exit code that represents this result.
func (r Result) Status() int {
	if r.Error != nil {
		return 1
	}
	return int(r.ExitCode)
}

// Executor manages a wazero runtime and compiled module caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor with WASI preview1 available to every module.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = DefaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
		Logger().Debug("compilation cache enabled", zap.String("dir", cacheDir))
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
	}

	for _, lang := range cfg.precompile {
		if _, err := e.getCompiled(ctx, lang); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", lang.Name(), err)
		}
	}

	return e, nil
}

// Run executes code with the given interpreter and waits for it to exit.
func (e *Executor) Run(ctx context.Context, lang Language, code string, opts ...Option) Result {
	start := time.Now()
	s := Resolve(opts...)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	compiled, err := e.getCompiled(ctx, lang)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	mounts := append(lang.Mounts(), s.Mounts...)
	fsConfig, err := mount.Apply(wazero.NewFSConfig(), mounts...)
	if err != nil {
		return Result{Error: fmt.Errorf("mount: %w", err), Duration: time.Since(start)}
	}

	var output bytes.Buffer
	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = &output
	}
	if stderr == nil {
		stderr = &output
	}

	args := s.Args
	if len(args) == 0 {
		args = lang.Args(code)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(stdout).
		WithStderr(stderr).
		WithArgs(args...).
		WithFSConfig(fsConfig).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader).
		WithName("")

	if s.Stdin != nil {
		moduleConfig = moduleConfig.WithStdin(s.Stdin)
	}

	env := mergeEnv(lang.Env(), s.Env)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		moduleConfig = moduleConfig.WithEnv(k, env[k])
	}

	Logger().Debug("instantiate",
		zap.String("language", lang.Name()),
		zap.Int("mounts", len(mounts)),
		zap.Duration("timeout", s.Timeout))

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if mod != nil {
		mod.Close(ctx)
	}

	result := Result{
		Output:   output.String(),
		Duration: time.Since(start),
	}
	result.ExitCode, result.Error = exitStatus(ctx, err, s.Timeout)

	Logger().Debug("exit",
		zap.String("language", lang.Name()),
		zap.Uint32("code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Error(result.Error))

	return result
}

// exitStatus separates a guest's own exit status from host-side failures.
func exitStatus(ctx context.Context, err error, timeout time.Duration) (uint32, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch code := exitErr.ExitCode(); code {
		case sys.ExitCodeDeadlineExceeded:
			return code, fmt.Errorf("%w after %v", ErrTimeout, timeout)
		case sys.ExitCodeContextCanceled:
			return code, fmt.Errorf("execution canceled: %w", context.Canceled)
		default:
			return code, nil
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return 0, fmt.Errorf("execution failed: %w", err)
}

func mergeEnv(base, override map[string]string) map[string]string {
	env := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		env[k] = v
	}
	for k, v := range override {
		env[k] = v
	}
	return env
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, lang Language) (wazero.CompiledModule, error) {
	name := lang.Name()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	start := time.Now()
	compiled, err := e.runtime.CompileModule(ctx, lang.Module())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	Logger().Debug("compiled", zap.String("language", name), zap.Duration("took", time.Since(start)))

	e.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// DefaultCacheDir is where compiled interpreter code is kept between runs.
func DefaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "wasipy")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "wasipy")
	}
	return filepath.Join(os.TempDir(), "wasipy-cache")
}
