// Package harness bootstraps a test file against a package directory
// mounted inside the sandbox and reports the interpreter's exit status.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/mount"
	"go.uber.org/zap"
)

const (
	DefaultTestFile   = "test.py"
	DefaultMountPoint = "/package_dir"
)

// ErrTestFile is returned when the test file cannot be read.
var ErrTestFile = errors.New("read test file")

// Executor runs code in an interpreter.
type Executor interface {
	Run(ctx context.Context, lang executor.Language, code string, opts ...executor.Option) executor.Result
}

// Config describes one bootstrap.
type Config struct {
	TestFile   string // Host path, relative to the working directory
	PackageDir string // Host directory to expose to the test
	MountPoint string // Guest path the package directory appears at
	Timeout    time.Duration
	Env        map[string]string
	Stdout     io.Writer
	Stderr     io.Writer
}

func (c Config) withDefaults() Config {
	if c.TestFile == "" {
		c.TestFile = DefaultTestFile
	}
	if c.MountPoint == "" {
		c.MountPoint = DefaultMountPoint
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	return c
}

// Outcome is the result of a bootstrap.
type Outcome struct {
	ExitCode int
	Duration time.Duration
}

// Run reads the test file, mounts the package directory read-write at the
// mount point and executes the file's contents. The returned error covers
// host-side failures only; a failing test is reported through ExitCode.
func Run(ctx context.Context, exec Executor, lang executor.Language, cfg Config, logger *zap.Logger) (Outcome, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	code, err := os.ReadFile(cfg.TestFile)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w %s: %w", ErrTestFile, cfg.TestFile, err)
	}

	pkg, err := mount.Mount{
		GuestPath: cfg.MountPoint,
		HostPath:  cfg.PackageDir,
		Mode:      mount.ReadWrite,
	}.Normalize()
	if err != nil {
		return Outcome{}, fmt.Errorf("package directory: %w", err)
	}

	logger.Info("running test",
		zap.String("file", cfg.TestFile),
		zap.String("package_dir", pkg.HostPath),
		zap.String("mount_point", pkg.GuestPath))

	opts := []executor.Option{
		executor.WithMount(pkg.GuestPath, pkg.HostPath, pkg.Mode),
		executor.WithStdout(cfg.Stdout),
		executor.WithStderr(cfg.Stderr),
		executor.WithTimeout(cfg.Timeout),
	}
	for k, v := range cfg.Env {
		opts = append(opts, executor.WithEnv(k, v))
	}

	result := exec.Run(ctx, lang, string(code), opts...)
	if result.Error != nil {
		return Outcome{ExitCode: result.Status(), Duration: result.Duration}, result.Error
	}

	logger.Info("test finished",
		zap.Uint32("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))

	return Outcome{ExitCode: result.Status(), Duration: result.Duration}, nil
}
