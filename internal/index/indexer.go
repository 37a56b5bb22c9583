package index

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Zuo-Peng/ai-session-index/internal/parse"
	"github.com/Zuo-Peng/ai-session-index/internal/scan"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

// DefaultScanInterval is how long query traffic may reuse the last scan.
const DefaultScanInterval = 5 * time.Second

// Pipeline describes one source format: where its logs live, how they are
// parsed and where the derived store is kept.
type Pipeline struct {
	Name          string
	Root          string
	DBPath        string
	Parse         parse.Func
	ParserVersion int
	Exclude       func(path string) bool
	ScanInterval  time.Duration
}

func CodexPipeline(root, dbPath string, interval time.Duration) Pipeline {
	return Pipeline{
		Name:          "codex",
		Root:          root,
		DBPath:        dbPath,
		Parse:         parse.ParseCodex,
		ParserVersion: parse.CodexParserVersion,
		ScanInterval:  interval,
	}
}

func ClaudePipeline(root, dbPath string, interval time.Duration) Pipeline {
	return Pipeline{
		Name:          "claude",
		Root:          root,
		DBPath:        dbPath,
		Parse:         parse.ParseClaude,
		ParserVersion: parse.ClaudeParserVersion,
		Exclude:       parse.ClaudeExclude,
		ScanInterval:  interval,
	}
}

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Purged  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d purged=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Purged, s.Errors)
}

// Indexer keeps one pipeline's store in step with its logs and answers
// queries against it. All store access, scans included, holds mu.
type Indexer struct {
	mu       sync.Mutex
	p        Pipeline
	scanner  scan.Scanner
	db       *DB
	log      zerolog.Logger
	now      func() time.Time
	lastScan time.Time // zero until the first completed scan
}

type Option func(*Indexer)

// WithClock replaces time.Now for debounce decisions.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// New opens the pipeline's store. It does not scan.
func New(p Pipeline, opts ...Option) (*Indexer, error) {
	if p.ScanInterval <= 0 {
		p.ScanInterval = DefaultScanInterval
	}
	db, err := OpenDB(p.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", p.Name, err)
	}
	ix := &Indexer{
		p:       p,
		scanner: scan.Scanner{Root: p.Root, Ext: ".jsonl", Exclude: p.Exclude},
		db:      db,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

func (ix *Indexer) Name() string   { return ix.p.Name }
func (ix *Indexer) Root() string   { return ix.p.Root }
func (ix *Indexer) DBPath() string { return ix.db.Path() }

func (ix *Indexer) ScanInterval() time.Duration { return ix.p.ScanInterval }

func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.Close()
}

// ForceRescan scans immediately regardless of when the last scan ran.
func (ix *Indexer) ForceRescan() (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.scanLocked()
}

// MaybeRefresh scans only when at least maxAge has passed since the last
// completed scan. A zero maxAge always scans. ran reports whether a scan
// happened.
func (ix *Indexer) MaybeRefresh(maxAge time.Duration) (stats Stats, ran bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.maybeRefreshLocked(maxAge)
}

func (ix *Indexer) maybeRefreshLocked(maxAge time.Duration) (Stats, bool, error) {
	if !ix.lastScan.IsZero() && ix.now().Sub(ix.lastScan) < maxAge {
		return Stats{}, false, nil
	}
	stats, err := ix.scanLocked()
	return stats, err == nil, err
}

func (ix *Indexer) scanLocked() (Stats, error) {
	var stats Stats
	started := ix.now()

	files, err := ix.scanner.Scan()
	if err != nil {
		return stats, fmt.Errorf("scan %s: %w", ix.p.Root, err)
	}
	stats.Scanned = len(files)

	for _, fi := range files {
		state, err := ix.db.FileState(fi.Path)
		if err != nil {
			return stats, fmt.Errorf("file state %s: %w", fi.Path, err)
		}
		if !state.Stale(fi.Mtime, ix.p.ParserVersion) {
			stats.Skipped++
			continue
		}

		res, err := ix.p.Parse(fi.Path)
		if err != nil {
			stats.Errors++
			ix.log.Warn().Err(err).Str("file", fi.Path).Msg("parse failed")
			continue
		}
		if res == nil {
			// vanished since listing
			stats.Skipped++
			continue
		}

		purged, err := ix.db.Upsert(res, fi.Mtime, ix.p.ParserVersion)
		if err != nil {
			return stats, fmt.Errorf("index %s: %w", fi.Path, err)
		}
		if purged {
			stats.Purged++
			ix.log.Debug().Str("file", fi.Path).Str("previous", state.ID).Str("id", res.Session.ID).Msg("session id changed")
		}
		stats.Updated++
	}

	ix.lastScan = ix.now()
	ev := ix.log.Debug()
	if stats.Updated > 0 || stats.Errors > 0 {
		ev = ix.log.Info()
	}
	ev.Str("stats", stats.String()).Dur("took", ix.lastScan.Sub(started)).Msg("scan complete")
	return stats, nil
}

// List refreshes if due, then returns matching session summaries.
func (ix *Indexer) List(opts search.Options) ([]SessionSummary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, _, err := ix.maybeRefreshLocked(ix.p.ScanInterval); err != nil {
		return nil, err
	}
	return ix.db.List(opts.Compile())
}

func (ix *Indexer) ListProjects(q string, limit int) ([]Project, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, _, err := ix.maybeRefreshLocked(ix.p.ScanInterval); err != nil {
		return nil, err
	}
	return ix.db.ListProjects(q, limit)
}

// GetSession returns ErrNotFound for an unknown id.
func (ix *Indexer) GetSession(id string) (*SessionDetail, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, _, err := ix.maybeRefreshLocked(ix.p.ScanInterval); err != nil {
		return nil, err
	}
	return ix.db.Get(id)
}

// Counts reports stored sessions and messages without refreshing.
func (ix *Indexer) Counts() (sessions, messages int, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if sessions, err = ix.db.SessionCount(); err != nil {
		return 0, 0, err
	}
	messages, err = ix.db.MessageCount()
	return sessions, messages, err
}
