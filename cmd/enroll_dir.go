package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facedb/internal/recognizer"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir DIR",
	Short: "Enroll every person from a known-faces directory",
	Long: `Build the database from a known-faces directory.
DIR contains one subdirectory per person, named after the person, holding
that person's embedding files (*.json). Files are read in name order and
the first one becomes the primary embedding. People without any readable
embedding are skipped and reported.

By default the database is replaced by the directory contents. Use
--merge to add the people to the existing database instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)

	enrollDirCmd.Flags().Bool("merge", false, "Add to the existing database instead of replacing it")
	enrollDirCmd.Flags().Bool("json", false, "Output the import report as JSON")
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dir := args[0]
	merge := mustGetBool(cmd, "merge")
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := recognizer.KnownFacesOptions{Merge: merge}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		opts.Progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Reading known faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("people"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}
	}

	start := time.Now()
	report, err := a.session.LoadKnownFaces(ctx, dir, opts)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("enrolling from %s: %w", dir, err)
	}

	if jsonOutput {
		return outputJSON(report)
	}

	for _, p := range report.People {
		if p.Imported() {
			fmt.Printf("  %-30s %d embedding(s)\n", p.Name, p.Embeddings)
		} else {
			fmt.Printf("  %-30s skipped: %s\n", p.Name, p.Reason)
		}
		for _, s := range p.Skipped {
			fmt.Printf("      %s: %s\n", s.Path, s.Reason)
		}
	}

	mode := "Replaced database with"
	if merge {
		mode = "Merged"
	}
	fmt.Printf("\n%s %d people (%d changed) in %s, %d identities in %s\n",
		mode, report.ImportedCount(), report.Changed, formatDuration(time.Since(start)),
		a.session.Len(), a.session.Backend())
	return nil
}
