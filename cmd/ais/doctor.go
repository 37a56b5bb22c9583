package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-index/internal/config"
	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots and stores, and show stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := os.UserHomeDir()
			fmt.Println("=== Config ===")
			fmt.Printf("  File:     %s\n", config.Path(home))
			fmt.Printf("  Data dir: %s\n", cfg.DataDir)
			fmt.Printf("  Interval: %s\n", cfg.Interval())

			for _, name := range []string{sourceCodex, sourceClaude} {
				p, err := pipelineFor(cfg, name)
				if err != nil {
					return err
				}
				if err := doctorPipeline(p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func doctorPipeline(p index.Pipeline) error {
	fmt.Printf("\n=== %s ===\n", p.Name)
	checkDir("Root", p.Root)

	files, err := scan.Scanner{Root: p.Root, Ext: ".jsonl", Exclude: p.Exclude}.Scan()
	if err != nil {
		fmt.Printf("  Scan error: %v\n", err)
	} else {
		fmt.Printf("  JSONL files: %d\n", len(files))
	}

	fmt.Printf("  Store: %s\n", p.DBPath)
	if _, err := os.Stat(p.DBPath); os.IsNotExist(err) {
		fmt.Println("  Status: NOT FOUND (run 'ais index' first)")
		return nil
	}

	// opening does not scan, so the counts reflect the store as it is
	ix, err := index.New(p)
	if err != nil {
		return fmt.Errorf("open %s store: %w", p.Name, err)
	}
	defer ix.Close()

	sessions, messages, err := ix.Counts()
	if err != nil {
		return fmt.Errorf("count %s: %w", p.Name, err)
	}
	fmt.Printf("  Sessions: %d\n", sessions)
	fmt.Printf("  Messages: %d\n", messages)
	fmt.Printf("  Parser version: %d\n", p.ParserVersion)

	if info, err := os.Stat(ix.DBPath()); err == nil {
		fmt.Printf("  Size: %.1f MB\n", float64(info.Size())/1024/1024)
	}
	return nil
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
