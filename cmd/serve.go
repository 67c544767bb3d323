package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/facedb/internal/config"
	"github.com/kozaktomas/facedb/internal/recognizer"
	"github.com/kozaktomas/facedb/internal/watcher"
	"github.com/kozaktomas/facedb/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the facedb HTTP API.
The server holds one recognition session: the database is loaded from the
configured backend at startup and every enrollment change is saved back
when auto-save is enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().Bool("save-on-exit", false, "Save the database once more during shutdown")
}

// startWatcher reloads the session whenever the database file is replaced
// by another process. Writes made by the session itself are ignored.
func startWatcher(ctx context.Context, cfg *config.Config, session *recognizer.Session, logger *zap.Logger) *watcher.Watcher {
	if !cfg.Database.Watch {
		return nil
	}
	if cfg.Database.Backend != config.BackendFile {
		logger.Warn("database.watch only applies to the file backend", zap.String("backend", cfg.Database.Backend))
		return nil
	}

	return watcher.New(cfg.Database.Path, func(path string) {
		loaded, err := session.Load(ctx)
		if err != nil {
			logger.Error("reloading database failed, keeping current state", zap.String("path", path), zap.Error(err))
			return
		}
		if loaded {
			logger.Info("database reloaded", zap.String("path", path), zap.Int("identities", session.Len()))
		}
	},
		watcher.WithLogger(logger),
		watcher.WithIgnoreBefore(session.LastSaved),
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port != 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}
	saveOnExit := mustGetBool(cmd, "save-on-exit")

	server := web.NewServer(&a.cfg.Web, a.session, a.logger, Version)

	a.logger.Info("starting facedb",
		zap.String("addr", server.Addr()),
		zap.String("backend", a.session.Backend()),
		zap.Int("identities", a.session.Len()),
		zap.Float64("tolerance", a.session.Tolerance()),
	)
	if a.cfg.Web.APIToken == "" {
		a.logger.Warn("WEB_API_TOKEN is empty, the API is not protected")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	})

	if w := startWatcher(gctx, a.cfg, a.session, a.logger); w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error during shutdown", zap.Error(err))
		}
		if saveOnExit {
			if err := a.session.Save(shutdownCtx); err != nil {
				return fmt.Errorf("saving database on exit: %w", err)
			}
			a.logger.Info("database saved", zap.String("backend", a.session.Backend()))
		}
		return nil
	})

	return g.Wait()
}
