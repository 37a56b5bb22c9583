package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-index/internal/open"
)

func openCmd() *cobra.Command {
	var source, query string

	cmd := &cobra.Command{
		Use:   "open <session-id>",
		Short: "Open a session's log file in $EDITOR",
		Long:  `Opens the source JSONL of a session, at the first line containing the first --query term.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ixs, err := openIndexers(cfg, source)
			if err != nil {
				return err
			}
			defer closeAll(ixs)

			_, d, err := findSession(ixs, args[0])
			if err != nil {
				return err
			}
			return open.OpenSession(d.Session.FilePath, query)
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceAll, "Pipeline to look in (codex, claude, all)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Jump to the first line containing this term")

	return cmd
}
