package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_NewFilePatched(t *testing.T) {
	eng, dir := testEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go eng.Watch(ctx, dir, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.rs"), []byte("executed_time: 0,\n}\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range events {
			if ev == "patched:new.rs" {
				return true
			}
		}
		return false
	}, "file was not patched by the watcher")

	data, err := eng.store.Read("new.rs")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !strings.Contains(string(data), "use_compact_array_encoding: false,") {
		t.Errorf("content = %q", data)
	}
}

func TestWatch_OwnWriteReportedClean(t *testing.T) {
	eng, dir := testEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	counts := map[string]int{}

	go eng.Watch(ctx, dir, func(kind, path string) {
		mu.Lock()
		counts[kind]++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "a.rs"), []byte("executed_time: 0,\n}\n"), 0o644)

	// The initial write is patched once; the write-back event produced by
	// the patch itself must be recognised as clean, never re-patched.
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["patched"] >= 1
	}, "file was not patched")

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if counts["patched"] != 1 {
		t.Errorf("patched %d times, want 1", counts["patched"])
	}
}

func TestWatch_RemoveDeletesState(t *testing.T) {
	eng, dir := testEngine(t)
	_ = eng.store.Write("gone.rs", []byte("executed_time: 0,\n}\n"))
	if _, err := eng.Run(RunOptions{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Watch(ctx, dir, nil)

	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "gone.rs"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, err := eng.db.AllChecksums()
		if err != nil {
			return false
		}
		_, ok := cs["gone.rs"]
		return !ok
	}, "state for removed file was not pruned")
}
