package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/logger"
)

func indexCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rescan session logs and bring the stores up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ixs, err := openIndexers(cfg, source)
			if err != nil {
				return err
			}
			defer closeAll(ixs)

			for _, ix := range ixs {
				logger.Infof("scanning %s: %s", ix.Name(), ix.Root())
			}

			var mu sync.Mutex
			results := make(map[string]index.Stats, len(ixs))
			var g errgroup.Group
			for _, ix := range ixs {
				ix := ix
				g.Go(func() error {
					stats, err := ix.ForceRescan()
					if err != nil {
						return fmt.Errorf("index %s: %w", ix.Name(), err)
					}
					mu.Lock()
					results[ix.Name()] = stats
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for _, ix := range ixs {
				logger.Infof("done %s: %s", ix.Name(), results[ix.Name()])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceAll, "Pipeline to index (codex, claude, all)")

	return cmd
}
