package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facedb/internal/config"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and move the persisted database",
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show where the database lives and what it holds",
	Args:  cobra.NoArgs,
	RunE:  runDBInfo,
}

var dbRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Replace a corrupt database with an empty one",
	Long: `Replace a persisted database that can no longer be decoded with an empty
database. While the database is corrupt every save is refused, so nothing
is written until this command runs. A readable database is left alone.`,
	Args: cobra.NoArgs,
	RunE: runDBRepair,
}

var dbCopyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy the database to another backend",
	Long: `Load the database from the configured backend and save it to another one.
The destination is the configured backend with the --to-* flags applied, so
copying a file database into PostgreSQL only needs --to-backend postgres
and DATABASE_URL.`,
	Args: cobra.NoArgs,
	RunE: runDBCopy,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInfoCmd)
	dbCmd.AddCommand(dbCopyCmd)
	dbCmd.AddCommand(dbRepairCmd)

	dbInfoCmd.Flags().Bool("json", false, "Output as JSON")

	dbCopyCmd.Flags().String("to-backend", "", "Destination backend: file, minio or postgres")
	dbCopyCmd.Flags().String("to-path", "", "Destination file for the file backend")
	dbCopyCmd.Flags().String("to-compression", "", "Destination compression: none or zstd")
}

type dbInfo struct {
	Backend    string  `json:"backend"`
	Identities int     `json:"identities"`
	Embeddings int     `json:"embeddings"`
	Tolerance  float64 `json:"tolerance"`
	Dimension  int     `json:"dimension"`
	LoadTime   string  `json:"load_time"`
	Corrupt    string  `json:"corrupt,omitempty"`
}

func runDBInfo(cmd *cobra.Command, args []string) error {
	start := time.Now()
	a, err := openApp(context.Background(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := a.session.Snapshot()
	info := dbInfo{
		Backend:    a.session.Backend(),
		Identities: snap.Len(),
		Embeddings: snap.EmbeddingCount(),
		Tolerance:  snap.Tolerance(),
		Dimension:  snap.Dim(),
		LoadTime:   formatDuration(time.Since(start)),
	}
	if err := a.session.Corrupt(); err != nil {
		info.Corrupt = err.Error()
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(info)
	}

	fmt.Printf("Backend:    %s\n", info.Backend)
	fmt.Printf("Identities: %d\n", info.Identities)
	fmt.Printf("Embeddings: %d\n", info.Embeddings)
	fmt.Printf("Tolerance:  %.4g\n", info.Tolerance)
	fmt.Printf("Dimension:  %d\n", info.Dimension)
	fmt.Printf("Loaded in:  %s\n", info.LoadTime)
	if info.Corrupt != "" {
		fmt.Printf("Corrupt:    %s\n", info.Corrupt)
		fmt.Println("            run \"facedb db repair\" to replace it with an empty database")
	}
	return nil
}

// copyDestination derives the destination config from the source one.
func copyDestination(src *config.Config, backend, path, compression string) (*config.Config, error) {
	dst := *src
	if backend != "" {
		dst.Database.Backend = backend
	}
	if path != "" {
		dst.Database.Path = path
	}
	if compression != "" {
		dst.Database.Compression = compression
	}
	if err := dst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}
	if dst.Database == src.Database {
		return nil, errors.New("destination is the same as the source, set --to-backend, --to-path or --to-compression")
	}
	return &dst, nil
}

func runDBCopy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.Corrupt(); err != nil {
		return fmt.Errorf("source database is corrupt, nothing to copy: %w", err)
	}

	dstCfg, err := copyDestination(a.cfg,
		mustGetString(cmd, "to-backend"),
		mustGetString(cmd, "to-path"),
		mustGetString(cmd, "to-compression"))
	if err != nil {
		return err
	}

	dst, closer, err := openPersistence(ctx, dstCfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			a.logger.Warn("closing destination backend", zap.Error(err))
		}
	}()

	snap := a.session.Snapshot()
	if err := dst.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving to %s: %w", dst.Describe(), err)
	}

	if _, err := dst.Load(ctx, snap.Dim()); err != nil {
		return fmt.Errorf("verifying copy in %s: %w", dst.Describe(), err)
	}

	fmt.Printf("Copied %d identities from %s to %s\n", snap.Len(), a.session.Backend(), dst.Describe())
	return nil
}

func runDBRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	corrupt := a.session.Corrupt()
	if corrupt == nil {
		fmt.Printf("Database in %s is readable, nothing to repair\n", a.session.Backend())
		return nil
	}

	if err := a.session.Overwrite(ctx); err != nil {
		return fmt.Errorf("overwriting corrupt database: %w", err)
	}
	fmt.Printf("Replaced corrupt database in %s with an empty one (%v)\n", a.session.Backend(), corrupt)
	return nil
}
