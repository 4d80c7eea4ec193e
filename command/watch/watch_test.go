package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-centre/trigger"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/up/dump.xlsx", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/up/dump.xlsx", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/up/dump.xlsx", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/up/dump.xlsx", Op: fsnotify.Remove}, false},
		{fsnotify.Event{Name: "/up/.dump.xlsx.123", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/up/~$dump.xlsx", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevant(tt.ev), tt.ev.String())
	}
}

func TestLoopCoalescesFileBursts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer w.Close()

	var runs atomic.Int32
	d := trigger.NewDebouncer(100*time.Millisecond, func() { runs.Add(1) })
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Loop(ctx, d) }()

	for _, name := range []string{"a.xlsx", "b.xlsx", "c.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	cancel()
	require.NoError(t, <-done)
}
