package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facedb/internal/config"
	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/database/postgres"
	"github.com/kozaktomas/facedb/internal/logging"
	"github.com/kozaktomas/facedb/internal/persistence"
	"github.com/kozaktomas/facedb/internal/recognizer"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "facedb",
	Short: "A face encoding database and matching engine",
	Long: `facedb keeps a database of known people and their face embeddings and
matches embeddings of detected faces against it.

Face detection and feature extraction happen elsewhere: facedb consumes
the embedding vectors they produce and answers "who is this?" with a
name and a confidence, or "unknown".`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $FACEDB_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	if configPath == "" {
		configPath = os.Getenv("FACEDB_CONFIG")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openPersistence connects the configured backend. The returned closer
// releases connections and must be called once the store is no longer used.
func openPersistence(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Store, io.Closer, error) {
	compression := persistence.Compression(cfg.Database.Compression)

	switch cfg.Database.Backend {
	case config.BackendFile:
		return persistence.NewFileStore(cfg.Database.Path, compression), nopCloser{}, nil

	case config.BackendMinIO:
		blob, err := persistence.DialMinio(ctx, persistence.MinioConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Object:    cfg.MinIO.Object,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MinIO: %w", err)
		}
		return persistence.NewBlobStore(blob, compression), nopCloser{}, nil

	case config.BackendPostgres:
		repo, err := postgres.Open(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	}
	return nil, nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
}

// app bundles what most commands need: config, logger and a loaded session.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *recognizer.Session
	closer  io.Closer
}

func (a *app) Close() {
	if err := a.closer.Close(); err != nil {
		a.logger.Warn("closing persistence backend", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// openApp loads configuration and opens the session with the database
// restored from the configured backend. A database that was never saved or
// cannot be decoded yields an empty session; in the corrupt case saves stay
// blocked until "db repair" overwrites it. Read errors are returned.
// Commands that change the database pass forceSave so the change outlives
// the process.
func openApp(ctx context.Context, forceSave bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	persister, closer, err := openPersistence(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	session, err := recognizer.NewSession(persister, recognizer.Options{
		Dim:       cfg.Database.Dim,
		Tolerance: cfg.Database.Tolerance,
		AutoSave:  forceSave || cfg.Database.AutoSave,
		Logger:    logger,
	})
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	if _, err := session.Load(ctx); err != nil {
		if !errors.Is(err, database.ErrDeserialization) {
			_ = closer.Close()
			return nil, fmt.Errorf("loading database from %s: %w", persister.Describe(), err)
		}
		logger.Error("database is corrupt, continuing with an empty one; saves are blocked until \"facedb db repair\" runs",
			zap.String("backend", persister.Describe()),
			zap.Error(err))
	}

	return &app{cfg: cfg, logger: logger, session: session, closer: closer}, nil
}
