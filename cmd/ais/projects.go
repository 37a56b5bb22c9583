package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-index/internal/render"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

func projectsCmd() *cobra.Command {
	var source, query string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List working directories with session counts",
		Long: `Groups sessions of one pipeline by working directory, most recently
active first. Output is TSV: project, sessions, last activity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndexer(cfg, source)
			if err != nil {
				return err
			}
			defer ix.Close()

			projects, err := ix.ListProjects(query, limit)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(projects)
			}
			for _, p := range projects {
				fmt.Printf("%s\t%d\t%s\n", tsvField(p.Project), p.SessionCount, render.FormatTime(p.LastTsMs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceCodex, "Pipeline to query (codex, claude)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Substring of the project path")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Max projects")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
