package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"epubprep/config"
	"epubprep/imageconv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "convert-images [quality]",
		Short: "Convert book images to JPEG for the EPUB build",
		Long: `Converts every image in images/<group>/ to epub_images/<group>/<name>.jpg.

Quality: 1-100. A positional quality overrides images.quality from the
--config file; without either the default is 85. Files that fail to convert
are reported and skipped; the command still exits 0.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				quality, err := parseQuality(args[0])
				if err != nil {
					return err
				}
				cfg.Images.Quality = quality
			}

			if _, _, err := imageconv.New(cfg, cmd.OutOrStdout()).Run(); err != nil {
				log.Printf("Conversion aborted: %v", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")

	return cmd
}

// parseQuality parses the positional quality argument. Out-of-range values
// are rejected rather than clamped.
func parseQuality(arg string) (int, error) {
	quality, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("quality must be an integer, got %q", arg)
	}
	if err := config.ValidateQuality(quality); err != nil {
		return 0, err
	}
	return quality, nil
}
