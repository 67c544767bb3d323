package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var toleranceCmd = &cobra.Command{
	Use:   "tolerance [VALUE]",
	Short: "Show or change the matching tolerance",
	Long: `Show the stored matching tolerance, or set it to VALUE and save.
Lower values are stricter: a face matches only when its distance to a
person's primary embedding is below the tolerance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTolerance,
}

func init() {
	rootCmd.AddCommand(toleranceCmd)
}

func runTolerance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		fmt.Printf("%.4g\n", a.session.Tolerance())
		return nil
	}

	tolerance, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid tolerance %q: %w", args[0], err)
	}
	if err := a.session.SetTolerance(ctx, tolerance); err != nil {
		return err
	}
	fmt.Printf("Tolerance set to %.4g in %s\n", a.session.Tolerance(), a.session.Backend())
	return nil
}
