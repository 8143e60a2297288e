package main

import (
	"os"

	"github.com/caffeineduck/wasipy/harness"
	"github.com/caffeineduck/wasipy/internal/ui"
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test <package_dir>",
	Short: "Run test.py against a mounted package directory",
	Long: `Read test.py from the working directory, mount package_dir read-write
at /package_dir inside the sandbox and run the file in the interpreter.

wasipy exits with the interpreter's status: 0 when the file completes, 1
for an unhandled exception, n for sys.exit(n).`,
	Args: cobra.ExactArgs(1),
	RunE: runTest,
}

func init() {
	testCmd.Flags().String("file", "", "Test file to run (default from config: test.py)")
	testCmd.Flags().String("mount-point", "", "Guest path of the package directory (default from config: /package_dir)")
	testCmd.Flags().Duration("timeout", 0, "Execution timeout (default from config, 0 for none)")
	testCmd.Flags().Bool("summary", false, "Print a PASS/FAIL line to stderr (default on a terminal)")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	mountPoint, _ := cmd.Flags().GetString("mount-point")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	summary, _ := cmd.Flags().GetBool("summary")

	if file == "" {
		file = cfg.Test.File
	}
	if mountPoint == "" {
		mountPoint = cfg.Test.MountPoint
	}
	if !cmd.Flags().Changed("timeout") {
		timeout = cfg.Executor.Timeout
	}
	if !cmd.Flags().Changed("summary") {
		summary = cmd.ErrOrStderr() == os.Stderr && ui.IsTerminal(os.Stderr) && !ui.IsCI()
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

	outcome, err := harness.Run(cmd.Context(), exec, lang, harness.Config{
		TestFile:   file,
		PackageDir: args[0],
		MountPoint: mountPoint,
		Timeout:    timeout,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	}, logger.Named("harness"))
	if err != nil {
		return err
	}

	if summary {
		cmd.PrintErrln(ui.TestSummary(file, outcome.ExitCode, outcome.Duration))
	}
	return exitWith(outcome.ExitCode)
}
