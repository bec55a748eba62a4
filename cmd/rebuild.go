package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/edurag/pkg/indexer"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the chunk index from the document source",
	Long: `Pulls the most recent documents from the configured source, splits them
into chunks and inserts the chunks that are not indexed yet.

The run stops early when the indexer time budget is exhausted; the report is
then marked partial.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	color.Blue("\nRebuilding index from %s source\n", cfg.Sources.Documents.Kind)

	var bar *progressbar.ProgressBar
	a.indexer.OnProgress = func(p indexer.Progress) {
		if bar == nil {
			bar = getProgressBar(p.Total, "🔄 Indexing documents...")
		}
		_ = bar.Set(p.Processed)
		bar.Describe(color.BlueString("🔄 Indexing documents... (%d chunks)", p.ChunksCreated))
	}

	report, err := a.indexer.Rebuild(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Println()
	if report.Partial {
		color.Yellow("⚠ Time budget exhausted, index is partially rebuilt")
	} else {
		color.Green("✓ Rebuild complete")
	}
	fmt.Printf("  Documents: %d processed, %d skipped\n", report.DocumentsProcessed, report.DocumentsSkipped)
	fmt.Printf("  Chunks: %d created, %d skipped\n", report.ChunksCreated, report.ChunksSkipped)
	fmt.Printf("  Index size: %d -> %d\n", report.BeforeCount, report.AfterCount)
	fmt.Printf("  Duration: %s\n", report.Elapsed.Round(time.Millisecond))
	return nil
}
