package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDebouncerCollapsesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 20*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeRemoved, Paths: []string{"a"}}
	input <- ChangeEvent{Type: ChangeTypeWritten, Paths: []string{"b"}}
	input <- ChangeEvent{Type: ChangeTypeWritten, Paths: []string{"c"}}

	select {
	case ev := <-d.Output():
		if ev.Type != ChangeTypeWritten {
			t.Errorf("Expected written, got %s", ev.Type)
		}
		if len(ev.Paths) != 3 {
			t.Errorf("Expected 3 accumulated paths, got %v", ev.Paths)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}

	select {
	case ev := <-d.Output():
		t.Errorf("Expected a single event, also got %+v", ev)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeWritten, Paths: []string{"a"}}

	select {
	case <-d.Output():
	case <-time.After(time.Second):
		t.Fatal("maxWait did not force a flush")
	}
}

func TestDebouncerFlushesOnInputClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeWritten, Paths: []string{"a"}}
	close(input)

	ev, ok := <-d.Output()
	if !ok || len(ev.Paths) != 1 {
		t.Fatalf("Expected pending event on close, got %+v (ok=%v)", ev, ok)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Expected output to close")
	}
}

func TestDecide(t *testing.T) {
	if Decide(ChangeEvent{Type: ChangeTypeWritten}) != ActionReload {
		t.Error("written should reload")
	}
	if Decide(ChangeEvent{Type: ChangeTypeRemoved}) != ActionKeep {
		t.Error("removed should keep the last model")
	}
}

func TestFileWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-fw.Events():
		if ev.Type != ChangeTypeWritten {
			t.Errorf("Expected written, got %s", ev.Type)
		}
		for _, p := range ev.Paths {
			if filepath.Base(p) != "data.xlsx" {
				t.Errorf("Unexpected path in event: %s", p)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for write event")
	}

	cancel()
	for range fw.Events() {
	}
}

func startWatcher(t *testing.T, path string) (*FileWatcher, *Debouncer, context.CancelFunc) {
	t.Helper()

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := fw.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	d := NewDebouncer(fw.Events(), 50*time.Millisecond, time.Second)
	d.Start(ctx)
	return fw, d, cancel
}

func nextDebounced(t *testing.T, d *Debouncer) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-d.Output():
		if !ok {
			t.Fatal("debouncer closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}
	return ChangeEvent{}
}

func TestFileWatcherRenameAsideThenCreateReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, d, cancel := startWatcher(t, path)
	defer cancel()

	// Move the old file aside and write the new one, the way spreadsheet apps save
	if err := os.Rename(path, path+".bak"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := nextDebounced(t, d)
	if ev.Type != ChangeTypeWritten {
		t.Errorf("Expected written, got %s", ev.Type)
	}
	if Decide(ev) != ActionReload {
		t.Error("Expected the new workbook to be reloaded")
	}
}

func TestFileWatcherRemoveKeepsModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, d, cancel := startWatcher(t, path)
	defer cancel()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ev := nextDebounced(t, d)
	if ev.Type != ChangeTypeRemoved {
		t.Errorf("Expected removed, got %s", ev.Type)
	}
	if Decide(ev) != ActionKeep {
		t.Error("Expected the last model to be kept")
	}
}
