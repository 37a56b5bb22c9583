package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
)

type countingRescanner struct {
	n     atomic.Int32
	calls chan struct{}
}

func (c *countingRescanner) Name() string { return "test" }

func (c *countingRescanner) ForceRescan() (index.Stats, error) {
	c.n.Add(1)
	c.calls <- struct{}{}
	return index.Stats{}, nil
}

func startWatcher(t *testing.T, root string, target Rescanner) (cancel func()) {
	t.Helper()
	return startWatcherWith(t, root, target, 20*time.Millisecond, time.Second)
}

func startWatcherWith(t *testing.T, root string, target Rescanner, debounce, maxDelay time.Duration) (cancel func()) {
	t.Helper()
	w := New(root, target, zerolog.Nop())
	w.debounce = debounce
	w.maxDelay = maxDelay

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcherRescansOnNewLog(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	target := &countingRescanner{calls: make(chan struct{}, 16)}
	stop := startWatcher(t, root, target)
	defer stop()

	// give the watcher time to register root
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(root, "2024", "05")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s.jsonl"), []byte("{}\n"), 0o644))

	select {
	case <-target.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("no rescan after a new log file")
	}
}

func TestWatcherRescansDuringSteadyWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	target := &countingRescanner{calls: make(chan struct{}, 64)}
	stop := startWatcherWith(t, root, target, 200*time.Millisecond, 300*time.Millisecond)
	defer stop()

	time.Sleep(100 * time.Millisecond)

	// writes every 50ms keep resetting the debounce; the max delay still fires
	path := filepath.Join(root, "live.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case <-target.calls:
			return
		case <-ticker.C:
			_, err := f.WriteString("{}\n")
			require.NoError(t, err)
		case <-timeout:
			t.Fatal("no rescan while writes kept arriving")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	target := &countingRescanner{calls: make(chan struct{}, 16)}
	stop := startWatcher(t, root, target)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	stop()

	assert.Zero(t, target.n.Load())
}

func TestWatcherMissingRoot(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &countingRescanner{calls: make(chan struct{}, 1)}
	stop := startWatcher(t, filepath.Join(t.TempDir(), "missing"), target)
	stop()
	assert.Zero(t, target.n.Load())
}
