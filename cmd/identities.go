package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facedb/internal/database"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	Long:  "List enrolled people in enrollment order with the number of embeddings each holds.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the embeddings of one person",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var removeCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm"},
	Short:   "Remove a person from the database",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(removeCmd)

	listCmd.Flags().Bool("json", false, "Output as JSON")
	showCmd.Flags().Bool("json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(context.Background(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	people := a.session.List()
	if mustGetBool(cmd, "json") {
		return outputJSON(people)
	}

	if len(people) == 0 {
		fmt.Printf("No people enrolled in %s\n", a.session.Backend())
		return nil
	}

	fmt.Printf("Known people (%d):\n", len(people))
	for _, p := range people {
		fmt.Printf("  - %s (%d encodings)\n", p.Name, p.Embeddings)
	}
	return nil
}

type identityOutput struct {
	Name       string            `json:"name"`
	Primary    database.Vector   `json:"primary"`
	Embeddings []database.Vector `json:"embeddings"`
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(context.Background(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.session.Get(args[0])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(identityOutput{Name: rec.Name, Primary: rec.Primary(), Embeddings: rec.Embeddings})
	}

	fmt.Printf("Name:       %s\n", rec.Name)
	fmt.Printf("Embeddings: %d\n", len(rec.Embeddings))
	for i, emb := range rec.Embeddings {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("  %s #%d  %s\n", marker, i, previewVector(emb))
	}
	return nil
}

// previewVector prints the first few components of an embedding.
func previewVector(v database.Vector) string {
	const shown = 4
	if len(v) <= shown {
		return fmt.Sprint([]float32(v))
	}
	return fmt.Sprintf("%v ... (%d dims)", []float32(v[:shown]), len(v))
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Remove(ctx, args[0]); err != nil {
		return fmt.Errorf("removing %q: %w", args[0], err)
	}
	fmt.Printf("Removed %s, %d identities left in %s\n",
		database.NormalizeName(args[0]), a.session.Len(), a.session.Backend())
	return nil
}
