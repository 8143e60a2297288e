package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/internal/config"
	"github.com/caffeineduck/wasipy/internal/logging"
	"github.com/caffeineduck/wasipy/language/python"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wasipy",
	Short: "Run a WebAssembly build of CPython",
	Long: `wasipy - run a WASI build of the Python interpreter under wazero.

It reports the interpreter's python and platform versions, bootstraps a
test.py against a package directory mounted inside the sandbox, runs ad hoc
code and generates sysconfig data for cross builds.

Configuration is read from ~/.wasipy/config.yaml and WASIPY_ environment
variables (WASIPY_PYTHON__WASM=/path/to/python.wasm).`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// exitError carries a guest exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWith(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultConfigPath, "Config file path")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("python", "", "Path to the interpreter WASM module")
	flags.String("home", "", "Host directory mounted read-only as the interpreter's home")
	flags.Bool("no-cache", false, "Disable compilation cache")
	flags.String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
}

// setup loads configuration, applies flag overrides and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")

	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		loaded.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("python") {
		wasm, _ := flags.GetString("python")
		loaded.Python.Wasm = config.ExpandHome(wasm)
	}
	if flags.Changed("home") {
		home, _ := flags.GetString("home")
		loaded.Python.Home = config.ExpandHome(home)
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		loaded.Executor.DiskCache = false
	}
	if flags.Changed("memory") {
		loaded.Executor.Memory, _ = flags.GetString("memory")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cmd.ErrOrStderr(), loaded.Log.Level, loaded.Log.Format)
	if err != nil {
		return err
	}

	cfg = loaded
	logger = l
	executor.SetLogger(l.Named("executor"))
	return nil
}

// loadPython reads the configured interpreter. The default home is skipped
// with a warning when it has not been fetched yet.
func loadPython(cmd *cobra.Command) (*python.Python, error) {
	var opts []python.Option

	home := cfg.Python.Home
	if home != "" {
		if info, err := os.Stat(home); err != nil || !info.IsDir() {
			if cmd.Root().PersistentFlags().Changed("home") {
				return nil, fmt.Errorf("python home %s is not a directory", home)
			}
			logger.Warn("python home not found, running without stdlib mount", zap.String("home", home))
			home = ""
		}
	}
	if home != "" {
		opts = append(opts, python.WithHome(home))
	}
	for k, v := range cfg.Python.Env {
		opts = append(opts, python.WithEnv(k, v))
	}

	lang, err := python.Load(cfg.Python.Wasm, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'wasipy fetch' or pass --python)", err)
	}
	return lang, nil
}

func newExecutor(precompile ...executor.Language) (*executor.Executor, error) {
	var opts []executor.ExecutorOption
	if cfg.Executor.DiskCache {
		opts = append(opts, executor.WithDiskCache(cfg.Executor.CacheDir))
	}
	pages, err := executor.ParseMemoryLimit(cfg.Executor.Memory)
	if err != nil {
		return nil, err
	}
	if pages > 0 {
		opts = append(opts, executor.WithMemoryLimit(pages))
	}
	if len(precompile) > 0 {
		opts = append(opts, executor.WithPrecompile(precompile...))
	}
	return executor.New(opts...)
}
