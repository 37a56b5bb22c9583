package main

import (
	"errors"
	"fmt"

	"github.com/Zuo-Peng/ai-session-index/internal/config"
	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/logger"
)

const (
	sourceCodex  = "codex"
	sourceClaude = "claude"
	sourceAll    = "all"
)

// pipelineFor describes the named pipeline from cfg.
func pipelineFor(cfg *config.Config, source string) (index.Pipeline, error) {
	switch source {
	case sourceCodex:
		return index.CodexPipeline(cfg.CodexRoot, cfg.CodexDBPath(), cfg.Interval()), nil
	case sourceClaude:
		return index.ClaudePipeline(cfg.ClaudeRoot, cfg.ClaudeDBPath(), cfg.Interval()), nil
	}
	return index.Pipeline{}, fmt.Errorf("unknown source %q (want codex or claude)", source)
}

// sourceNames expands "all" into both pipeline names.
func sourceNames(source string) ([]string, error) {
	switch source {
	case "", sourceAll:
		return []string{sourceCodex, sourceClaude}, nil
	case sourceCodex, sourceClaude:
		return []string{source}, nil
	}
	return nil, fmt.Errorf("unknown source %q (want codex, claude or all)", source)
}

// openIndexers opens one Indexer per requested source. On error any
// indexer already opened is closed.
func openIndexers(cfg *config.Config, source string) ([]*index.Indexer, error) {
	names, err := sourceNames(source)
	if err != nil {
		return nil, err
	}
	var out []*index.Indexer
	for _, name := range names {
		p, err := pipelineFor(cfg, name)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		ix, err := index.New(p, index.WithLogger(logger.Pipeline(name)))
		if err != nil {
			closeAll(out)
			return nil, fmt.Errorf("open %s store: %w", name, err)
		}
		out = append(out, ix)
	}
	return out, nil
}

// openIndexer opens exactly one pipeline.
func openIndexer(cfg *config.Config, source string) (*index.Indexer, error) {
	if source == "" || source == sourceAll {
		return nil, fmt.Errorf("a single source is required (codex or claude)")
	}
	ixs, err := openIndexers(cfg, source)
	if err != nil {
		return nil, err
	}
	return ixs[0], nil
}

func closeAll(ixs []*index.Indexer) {
	for _, ix := range ixs {
		if err := ix.Close(); err != nil {
			logger.Warnf("close %s store: %v", ix.Name(), err)
		}
	}
}

// findSession looks id up in each indexer in turn and reports which one
// holds it.
func findSession(ixs []*index.Indexer, id string) (*index.Indexer, *index.SessionDetail, error) {
	for _, ix := range ixs {
		d, err := ix.GetSession(id)
		if errors.Is(err, index.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("get %s session: %w", ix.Name(), err)
		}
		return ix, d, nil
	}
	return nil, nil, fmt.Errorf("session %s: %w", id, index.ErrNotFound)
}
