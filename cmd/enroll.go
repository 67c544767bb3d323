package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/recognizer"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll NAME FILE...",
	Short: "Enroll a person from embedding files",
	Long: `Enroll a person with one or more face embeddings.
Each FILE holds one embedding, either as {"embedding": [...]} or as a bare
JSON array. The first file becomes the primary embedding used for matching.
Enrolling an existing name replaces its embeddings.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name, files := args[0], args[1:]

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	embeddings := make([]database.Vector, 0, len(files))
	for _, file := range files {
		emb, err := recognizer.ReadEmbeddingFile(file, a.session.Dim())
		if err != nil {
			return fmt.Errorf("reading embedding: %w", err)
		}
		embeddings = append(embeddings, emb)
	}

	changed, err := a.session.Enroll(ctx, name, embeddings)
	if err != nil {
		return fmt.Errorf("enrolling %q: %w", name, err)
	}
	if !changed {
		fmt.Printf("%s is already enrolled with the same embeddings\n", database.NormalizeName(name))
		return nil
	}

	a.logger.Debug("identity enrolled", zap.String("name", name), zap.Int("embeddings", len(embeddings)))
	fmt.Printf("Enrolled %s with %d embedding(s), %d identities in %s\n",
		database.NormalizeName(name), len(embeddings), a.session.Len(), a.session.Backend())
	return nil
}
