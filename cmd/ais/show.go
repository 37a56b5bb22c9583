package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/parse"
	"github.com/Zuo-Peng/ai-session-index/internal/render"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

func showCmd() *cobra.Command {
	var source, query string
	var width, contextChars int
	var all, noColor, asJSON, matches bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's conversation",
		Long: `Prints the normalized conversation of one session. With --query the
matching terms are highlighted; --matches prints only a snippet around each
matching message.`,
		Args: cobra.ExactArgs(1),
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

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}

			isTTY := term.IsTerminal(int(os.Stdout.Fd()))
			if matches {
				fmt.Print(matchSnippets(d, query, contextChars, all))
				return nil
			}

			if width == 0 && isTTY {
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
					width = w
				}
			}
			out, _ := render.Session(d, render.Options{
				Width:      width,
				Query:      query,
				ShowHidden: all,
				NoColor:    noColor || !isTTY,
			})
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", sourceAll, "Pipeline to look in (codex, claude, all)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Terms to highlight")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = terminal width)")
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden messages such as raw thinking")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session and messages as JSON")
	cmd.Flags().BoolVar(&matches, "matches", false, "Print only snippets of messages matching --query")
	cmd.Flags().IntVar(&contextChars, "context", 60, "Characters around each match in --matches mode")

	return cmd
}

// matchSnippets renders one line per message containing any query term.
func matchSnippets(d *index.SessionDetail, query string, contextChars int, all bool) string {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range d.Messages {
		if m.Role == parse.RoleOther && !all {
			continue
		}
		lower := strings.ToLower(m.Text)
		for _, t := range terms {
			if !strings.Contains(lower, strings.ToLower(t)) {
				continue
			}
			snippet := strings.Join(strings.Fields(search.Snippet(m.Text, t, contextChars)), " ")
			fmt.Fprintf(&b, "%s\t%s\t%s\n", render.FormatTime(m.TsMs), m.Role, snippet)
			break
		}
	}
	return b.String()
}
