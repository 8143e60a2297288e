package main

import (
	"os"
	"path/filepath"

	"github.com/caffeineduck/wasipy/fetch"
	"github.com/caffeineduck/wasipy/internal/config"
	"github.com/caffeineduck/wasipy/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download the Python interpreter",
	Long: `Download a WASI build of CPython.

Archives (.tar.gz, .tgz) are extracted into ~/.wasipy/python, which matches
the default python.wasm and python.home settings. Any other URL is saved
as the configured python.wasm file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("sha256", "", "Expected SHA-256 of the download (default from config)")
	fetchCmd.Flags().String("dest", "", "Destination file or directory")
	fetchCmd.Flags().Bool("force", false, "Download even if the destination exists")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	url := cfg.Fetch.URL
	if len(args) > 0 {
		url = args[0]
	}
	sum, _ := cmd.Flags().GetString("sha256")
	if !cmd.Flags().Changed("sha256") {
		sum = cfg.Fetch.SHA256
	}
	dest, _ := cmd.Flags().GetString("dest")
	force, _ := cmd.Flags().GetBool("force")

	if dest == "" {
		if fetch.IsArchive(url) {
			dest = filepath.Join(config.Dir(), "python")
		} else {
			dest = cfg.Python.Wasm
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	logger.Info("fetching interpreter", zap.String("url", url), zap.String("dest", dest))

	animate := cmd.ErrOrStderr() == os.Stderr && ui.IsTerminal(os.Stderr) && !ui.IsCI()
	var downloaded bool
	err := ui.WithSpinner(cmd.ErrOrStderr(), animate, "Downloading "+filepath.Base(url), func() error {
		var err error
		downloaded, err = fetch.Download(cmd.Context(), url, dest, fetch.Options{
			SHA256: sum,
			Force:  force,
		})
		return err
	})
	if err != nil {
		return err
	}

	if downloaded {
		cmd.Println(ui.SuccessStyle.Render("Fetched") + " " + dest)
	} else {
		cmd.Println(ui.DimStyle.Render(dest + " already exists (use --force to replace)"))
	}
	return nil
}
