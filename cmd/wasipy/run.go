package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/mount"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run Python code in the interpreter",
	Long: `Execute Python code in the sandboxed interpreter.

Code can be provided via:
  - File argument: wasipy run script.py
  - Inline flag: wasipy run -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | wasipy run

Host directories are only visible when mounted explicitly:
  wasipy run --mount /data:./input:ro script.py`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Code to execute")
	runCmd.Flags().StringSlice("mount", nil, "Mount a host directory guest:host[:ro|rw] (repeatable)")
	runCmd.Flags().StringSlice("env", nil, "Set a guest environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().Duration("timeout", 0, "Execution timeout (default from config, 0 for none)")
	rootCmd.AddCommand(runCmd)
}

func buildRunOpts(cmd *cobra.Command) ([]executor.Option, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	mounts, _ := cmd.Flags().GetStringSlice("mount")
	envs, _ := cmd.Flags().GetStringSlice("env")

	if !cmd.Flags().Changed("timeout") {
		timeout = cfg.Executor.Timeout
	}

	opts := []executor.Option{
		executor.WithTimeout(timeout),
		executor.WithStdout(cmd.OutOrStdout()),
		executor.WithStderr(cmd.ErrOrStderr()),
	}
	for _, spec := range mounts {
		m, err := mount.Parse(spec)
		if err != nil {
			return nil, err
		}
		opts = append(opts, executor.WithMount(m.GuestPath, m.HostPath, m.Mode))
	}
	for _, kv := range envs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env %q (expected KEY=VALUE)", kv)
		}
		opts = append(opts, executor.WithEnv(k, v))
	}
	return opts, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")

	var source string
	fromStdin := false

	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		source = string(data)
	default:
		if f, ok := cmd.InOrStdin().(*os.File); ok {
			if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
				return cmd.Help()
			}
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		source = string(data)
		fromStdin = true
		if strings.TrimSpace(source) == "" {
			return cmd.Help()
		}
	}

	opts, err := buildRunOpts(cmd)
	if err != nil {
		return err
	}
	if !fromStdin {
		opts = append(opts, executor.WithStdin(cmd.InOrStdin()))
	}

	lang, err := loadPython(cmd)
	if err != nil {
		return err
	}

	exec, err := newExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	result := exec.Run(cmd.Context(), lang, source, opts...)
	logger.Debug("run finished",
		zap.Uint32("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration.Round(time.Millisecond)))

	if result.Error != nil {
		return result.Error
	}
	return exitWith(result.Status())
}
