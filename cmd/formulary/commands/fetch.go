package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/formulary/formulary/pkg/fetch"
	"github.com/formulary/formulary/pkg/formula"
)

func newFetchCommand() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "fetch <formula.yaml>",
		Short: "Fetch and verify a formula's source archive",
		Long: `Fetch a formula's pinned source archive into the download cache and
verify its sha256 digest, without installing.

A digest mismatch removes the downloaded file and fails immediately;
transient network failures are retried with backoff.`,
		Example: `  # Prefetch a source archive
  formulary fetch hawk-tui.yaml

  # Use a custom cache directory
  formulary fetch hawk-tui.yaml --cache-dir /var/cache/formulary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := formula.NewParser().ParseFile(args[0])
			if err != nil {
				return err
			}

			cacheDir, err := defaultPath(cacheDir, "cache")
			if err != nil {
				return err
			}

			fetcher := fetch.NewHTTPFetcher(cacheDir, log.Logger)
			path, err := fetcher.Fetch(cmd.Context(), f.Source)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(map[string]string{
					"formula": f.Name,
					"url":     f.Source.URL,
					"sha256":  f.Source.SHA256,
					"path":    path,
				})
			}
			fmt.Printf("Fetched %s to %s (sha256 verified)\n", f.Name, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "download cache directory")

	return cmd
}
