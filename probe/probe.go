// Package probe asks the interpreter small questions (its version, its
// platform release) by running fixed snippets and reading what they print.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/language/python"
	"github.com/caffeineduck/wasipy/probecache"
	"go.uber.org/zap"
)

// ErrEmptyOutput is returned when a probe exits cleanly but prints nothing.
var ErrEmptyOutput = errors.New("probe printed nothing")

// Executor runs code in an interpreter.
type Executor interface {
	Run(ctx context.Context, lang executor.Language, code string, opts ...executor.Option) executor.Result
}

// Store caches probe results. *probecache.Store implements it.
type Store interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Runner evaluates probes against one interpreter.
type Runner struct {
	exec   Executor
	lang   executor.Language
	store  Store
	logger *zap.Logger
	opts   []executor.Option
}

// NewRunner returns a Runner. store may be nil to disable caching.
func NewRunner(exec Executor, lang executor.Language, store Store, logger *zap.Logger, opts ...executor.Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, lang: lang, store: store, logger: logger, opts: opts}
}

// Run returns the trimmed stdout of p.
func (r *Runner) Run(ctx context.Context, p python.Probe) (string, error) {
	key := probecache.Key(r.lang.Module(), p.Name)

	if r.store != nil {
		value, ok, err := r.store.Get(key)
		if err != nil {
			r.logger.Warn("probe cache read failed", zap.String("probe", p.Name), zap.Error(err))
		} else if ok {
			r.logger.Debug("probe cache hit", zap.String("probe", p.Name))
			return value, nil
		}
	}

	var stdout, stderr strings.Builder
	opts := append([]executor.Option{
		executor.WithStdout(&stdout),
		executor.WithStderr(&stderr),
	}, r.opts...)

	result := r.exec.Run(ctx, r.lang, p.Code, opts...)
	if result.Error != nil {
		return "", fmt.Errorf("probe %s: %w", p.Name, result.Error)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("probe %s: exit status %d: %s",
			p.Name, result.ExitCode, strings.TrimSpace(stderr.String()))
	}

	value := strings.TrimSpace(stdout.String())
	if value == "" {
		return "", fmt.Errorf("probe %s: %w", p.Name, ErrEmptyOutput)
	}

	if r.store != nil {
		if err := r.store.Put(key, value); err != nil {
			r.logger.Warn("probe cache write failed", zap.String("probe", p.Name), zap.Error(err))
		}
	}

	return value, nil
}
