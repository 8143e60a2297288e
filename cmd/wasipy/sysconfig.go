package main

import (
	"bytes"
	"os"

	"github.com/caffeineduck/wasipy/internal/ui"
	"github.com/caffeineduck/wasipy/language/python"
	"github.com/caffeineduck/wasipy/sysconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sysconfigCmd = &cobra.Command{
	Use:   "sysconfig",
	Short: "Generate _sysconfigdata for cross-building extensions",
	Long: `Render the _sysconfigdata module that build tools import to learn how
to compile extension modules for the wasm target.

The built-in profile describes an emscripten wasm32 interpreter. Pass
--profile to render another TOML profile, and --probe to take the Python
version from the configured interpreter instead of the profile.`,
	Args: cobra.NoArgs,
	RunE: runSysconfig,
}

func init() {
	sysconfigCmd.Flags().String("profile", "", "TOML target profile (default: built-in emscripten wasm32)")
	sysconfigCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	sysconfigCmd.Flags().Bool("probe", false, "Ask the interpreter for its python version")
	sysconfigCmd.Flags().Bool("no-probe-cache", false, "Ignore and do not update cached probe results")
	rootCmd.AddCommand(sysconfigCmd)
}

func runSysconfig(cmd *cobra.Command, args []string) error {
	profilePath, _ := cmd.Flags().GetString("profile")
	output, _ := cmd.Flags().GetString("output")
	probeVersion, _ := cmd.Flags().GetBool("probe")

	profile := sysconfig.DefaultProfile()
	if profilePath != "" {
		var err error
		if profile, err = sysconfig.LoadProfile(profilePath); err != nil {
			return err
		}
	}

	if probeVersion {
		version, err := evalProbe(cmd, python.PythonVersion)
		if err != nil {
			return err
		}
		profile.PythonVersion = version
		if err := profile.Validate(); err != nil {
			return err
		}
	}

	logger.Debug("rendering sysconfig", zap.String("module", profile.ModuleName()))

	var buf bytes.Buffer
	if err := profile.Render(&buf); err != nil {
		return err
	}

	if output != "" {
		if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
			return err
		}
		cmd.PrintErrln(ui.InfoStyle.Render(profile.ModuleName()) + " written to " + output)
		return nil
	}

	out := cmd.OutOrStdout()
	if out == os.Stdout && ui.IsTerminal(os.Stdout) {
		return ui.HighlightPython(out, buf.String())
	}
	_, err := out.Write(buf.Bytes())
	return err
}
