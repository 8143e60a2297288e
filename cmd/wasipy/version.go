package main

import (
	"fmt"

	"github.com/caffeineduck/wasipy/executor"
	"github.com/caffeineduck/wasipy/language/python"
	"github.com/caffeineduck/wasipy/probe"
	"github.com/caffeineduck/wasipy/probecache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print interpreter version strings",
	Long: `Print version strings reported by the interpreter itself.

  wasipy version python     major.minor of the interpreter, e.g. 3.12
  wasipy version platform   release field of platform.platform()

Results are cached per interpreter module under ~/.wasipy/probes.`,
}

var versionPythonCmd = &cobra.Command{
	Use:   "python",
	Short: "Print the interpreter's major.minor version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd, python.PythonVersion)
	},
}

var versionPlatformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Print the interpreter's platform release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd, python.PlatformVersion)
	},
}

func init() {
	versionCmd.PersistentFlags().Bool("no-probe-cache", false, "Ignore and do not update cached probe results")
	versionCmd.AddCommand(versionPythonCmd, versionPlatformCmd)
	rootCmd.AddCommand(versionCmd)
}

func runProbe(cmd *cobra.Command, p python.Probe) error {
	value, err := evalProbe(cmd, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// evalProbe runs p against the configured interpreter, going through the
// probe cache unless it is disabled.
func evalProbe(cmd *cobra.Command, p python.Probe) (string, error) {
	lang, err := loadPython(cmd)
	if err != nil {
		return "", err
	}

	var store probe.Store
	noProbeCache, _ := cmd.Flags().GetBool("no-probe-cache")
	if cfg.Probe.Cache && !noProbeCache {
		s, err := probecache.Open(cfg.Probe.CacheDir)
		if err != nil {
			logger.Warn("probe cache unavailable", zap.Error(err))
		} else {
			defer s.Close()
			store = s
		}
	}

	exec, err := newExecutor()
	if err != nil {
		return "", err
	}
	defer exec.Close()

	runner := probe.NewRunner(exec, lang, store, logger.Named("probe"),
		executor.WithTimeout(cfg.Executor.Timeout))
	return runner.Run(cmd.Context(), p)
}
