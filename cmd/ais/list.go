package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/render"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
	"github.com/Zuo-Peng/ai-session-index/internal/tui"
)

type listedSession struct {
	Source string `json:"source"`
	index.SessionSummary
}

func listCmd() *cobra.Command {
	var source, query, start, end, project, sortBy string
	var limit int
	var plain, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse sessions, newest first",
		Long: `Opens a TUI panel listing indexed sessions. Type to filter; Tab switches
between Codex and Claude Code sessions; Enter copies the resume command.

When stdout is not a terminal (or with --plain) prints TSV instead:
  source, id, start, end, messages, cwd, title`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ixs, err := openIndexers(cfg, source)
			if err != nil {
				return err
			}
			defer closeAll(ixs)

			opts := search.Options{
				Query:     query,
				StartDate: start,
				EndDate:   end,
				Project:   project,
				Sort:      sortBy,
				Limit:     limit,
			}

			if !plain && !asJSON && term.IsTerminal(int(os.Stdout.Fd())) {
				sources := make([]tui.Source, len(ixs))
				for i, ix := range ixs {
					sources[i] = ix
				}
				return tui.Run(sources, opts, os.Stdout)
			}

			var rows []listedSession
			for _, ix := range ixs {
				sessions, err := ix.List(opts)
				if err != nil {
					return fmt.Errorf("list %s: %w", ix.Name(), err)
				}
				for _, s := range sessions {
					rows = append(rows, listedSession{Source: ix.Name(), SessionSummary: s})
				}
			}

			sortRows(rows, opts.Sort)

			if asJSON {
				if rows == nil {
					rows = []listedSession{}
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			for _, r := range rows {
				fmt.Println(strings.Join([]string{
					r.Source,
					r.ID,
					render.FormatTime(r.StartTsMs),
					render.FormatTime(r.EndTsMs),
					fmt.Sprint(r.MessageCount),
					tsvField(r.Cwd),
					tsvField(r.Title),
				}, "\t"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceAll, "Pipeline to list (codex, claude, all)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Whitespace-separated terms; all must match")
	cmd.Flags().StringVar(&start, "start", "", "Sessions starting on or after date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Sessions starting on or before date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&project, "project", "", "Exact working directory")
	cmd.Flags().StringVar(&sortBy, "sort", search.SortStart, "Sort by start or last activity (start, last)")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Max results per source")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print TSV even on a terminal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

// sortRows orders rows gathered from several pipelines the way each store
// orders its own: newest first on the chosen key, the other key breaking ties.
func sortRows(rows []listedSession, sortBy string) {
	last := search.NormalizeSort(sortBy) == search.SortLast
	slices.SortStableFunc(rows, func(a, b listedSession) int {
		ka, kb := a.StartTsMs, b.StartTsMs
		ta, tb := a.EndTsMs, b.EndTsMs
		if last {
			ka, kb, ta, tb = ta, tb, ka, kb
		}
		if c := cmp.Compare(kb, ka); c != 0 {
			return c
		}
		return cmp.Compare(tb, ta)
	})
}

// tsvField keeps a value on one TSV cell.
func tsvField(s string) string {
	if s == "" {
		return "-"
	}
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
