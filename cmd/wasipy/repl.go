package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	primaryPrompt      = ">>> "
	continuationPrompt = "... "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive Python REPL",
	Long: `Start the interpreter's interactive mode with host-side line editing.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line blocks: a line ending in ':' continues until an empty line

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.wasipy_history)")
	replCmd.Flags().StringSlice("mount", nil, "Mount a host directory guest:host[:ro|rw] (repeatable)")
	replCmd.Flags().StringSlice("env", nil, "Set a guest environment variable KEY=VALUE (repeatable)")
	replCmd.Flags().Duration("timeout", 0, "Session timeout (0 for none)")
	rootCmd.AddCommand(replCmd)
}

// block tracks whether the lines typed so far form an unfinished compound
// statement, mirroring when the interpreter would print its "... " prompt.
type block struct {
	open bool
}

// feed records line and reports the prompt to show next.
func (b *block) feed(line string) string {
	trimmed := strings.TrimRight(line, " \t")
	switch {
	case b.open && strings.TrimSpace(trimmed) == "":
		b.open = false
	case strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "\\"):
		b.open = true
	}
	if b.open {
		return continuationPrompt
	}
	return primaryPrompt
}

func (b *block) reset() {
	b.open = false
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".wasipy_history")
	}

	lang, err := loadPython(cmd)
	if err != nil {
		return err
	}

	opts, err := buildRunOpts(cmd)
	if err != nil {
		return err
	}

	exec, err := newExecutor(lang)
	if err != nil {
		return err
	}
	defer exec.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            primaryPrompt,
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	reader := &replReader{Instance: rl}
	defer reader.Close()

	stdin, input := io.Pipe()
	exited := make(chan struct{})
	done := make(chan executor.Result, 1)
	go func() {
		runOpts := append(opts,
			executor.WithArgs(lang.InteractiveArgs()...),
			executor.WithStdin(stdin),
			executor.WithStdout(rl.Stdout()),
			executor.WithStderr(rl.Stderr()))
		result := exec.Run(cmd.Context(), lang, "", runOpts...)
		stdin.CloseWithError(io.ErrClosedPipe)
		close(exited)
		done <- result
	}()

	fmt.Fprintf(rl.Stderr(), "wasipy %s REPL (type 'exit' to quit, Ctrl+D to exit)\n", lang.Name())

	forward(reader, input, exited, rl.Stderr())
	input.Close()

	result := <-done
	if result.Error != nil {
		return result.Error
	}
	return exitWith(result.Status())
}

// lineReader is the part of *readline.Instance the repl loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// replReader makes Close safe to call from both the exit watcher and the
// deferred cleanup.
type replReader struct {
	*readline.Instance
	once sync.Once
	err  error
}

func (r *replReader) Close() error {
	r.once.Do(func() {
		r.err = r.Instance.Close()
	})
	return r.err
}

// forward copies lines from rl to the interpreter's stdin until the user
// quits or the interpreter exits on its own, e.g. via exit().
func forward(rl lineReader, input io.Writer, exited <-chan struct{}, errOut io.Writer) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-exited:
			rl.Close()
		case <-stop:
		}
	}()

	var b block
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				b.reset()
				rl.SetPrompt(primaryPrompt)
				continue
			}
			select {
			case <-exited:
			default:
				if !errors.Is(err, io.EOF) {
					fmt.Fprintf(errOut, "Error reading input: %v\n", err)
				}
			}
			return
		}

		if !b.open {
			if word := strings.TrimSpace(line); word == "exit" || word == "quit" {
				return
			}
		}

		rl.SetPrompt(b.feed(line))
		if _, err := io.WriteString(input, line+"\n"); err != nil {
			return
		}
	}
}
