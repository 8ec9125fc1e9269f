package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"epubprep/config"
	"epubprep/qmd"
	"epubprep/watcher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		check      bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "update-qmd",
		Short: "Rewrite QMD image references into EPUB conditional blocks",
		Long: `Replaces every ![alt](images/...) reference in the book's .qmd files with
a pair of blocks: one shown only for EPUB output pointing at epub_images/*.jpg,
and one hidden for EPUB output keeping the original image.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if check {
				cfg.Documents.CheckImages = true
			}

			out := cmd.OutOrStdout()
			rewriter := qmd.New(cfg, out)

			if _, err := rewriter.Run(); err != nil {
				return err
			}

			if cfg.Documents.CheckImages {
				if err := reportMissing(rewriter, out); err != nil {
					return err
				}
			}

			if watch {
				return watchDocuments(cfg, rewriter)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.Flags().BoolVar(&check, "check", false, "Report image references whose files do not exist")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and rewrite documents as they change")

	return cmd
}

func reportMissing(rewriter *qmd.Rewriter, out io.Writer) error {
	docs, err := rewriter.Documents()
	if err != nil {
		return err
	}

	missing, err := rewriter.CheckImages(docs)
	if err != nil {
		return err
	}

	if len(missing) == 0 {
		fmt.Fprintln(out, "All referenced images exist")
		return nil
	}

	fmt.Fprintf(out, "Missing images (%d):\n", len(missing))
	for _, m := range missing {
		fmt.Fprintf(out, "  %s: %s\n", m.Document, m.Destination)
	}
	return nil
}

func watchDocuments(cfg *config.Config, rewriter *qmd.Rewriter) error {
	w, err := watcher.New(cfg, rewriter)
	if err != nil {
		return err
	}

	if err := w.Start(); err != nil {
		w.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	log.Println("Watching for document changes. Press Ctrl+C to stop")

	go func() {
		for event := range w.Events() {
			if event.Err != nil {
				log.Printf("Event: %v - %s failed: %v", event.Type, event.FilePath, event.Err)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	return nil
}
