package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/ai-session-index/internal/logger"
	"github.com/Zuo-Peng/ai-session-index/internal/server"
	"github.com/Zuo-Peng/ai-session-index/internal/watch"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	var listen string
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session index over HTTP",
		Long: `Serves both pipelines as JSON. Codex sessions live under /api and
Claude Code sessions under /api/claude:
  GET  /sessions?q=&start=&end=&project=&sort=&limit=
  GET  /projects?q=&limit=
  GET  /session/<id>
  POST /reindex`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.Listen
			}

			ixs, err := openIndexers(cfg, sourceAll)
			if err != nil {
				return err
			}
			defer closeAll(ixs)
			codex, claude := ixs[0], ixs[1]

			// cold start: bring both stores up to date before accepting requests
			var warm errgroup.Group
			for _, ix := range ixs {
				ix := ix
				warm.Go(func() error {
					stats, _, err := ix.MaybeRefresh(0)
					if err != nil {
						return fmt.Errorf("initial %s scan: %w", ix.Name(), err)
					}
					logger.Logger.Info().Str("pipeline", ix.Name()).Str("stats", stats.String()).Msg("initial scan complete")
					return nil
				})
			}
			if err := warm.Wait(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := server.NewApp(codex, claude, logger.Logger)
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Logger.Info().Str("listen", listen).Msg("serving")
				if err := app.Listen(listen); err != nil {
					return fmt.Errorf("listen %s: %w", listen, err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				return app.ShutdownWithTimeout(shutdownTimeout)
			})

			if watchFiles {
				for _, ix := range ixs {
					w := watch.New(ix.Root(), ix, logger.Pipeline(ix.Name()))
					g.Go(func() error {
						return w.Run(ctx)
					})
				}
			}

			err = g.Wait()
			logger.Logger.Info().Msg("server stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&watchFiles, "watch", false, "Rescan as soon as session files change")

	return cmd
}
