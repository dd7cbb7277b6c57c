package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeArtifact(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x55}, size), 0o644); err != nil {
		t.Fatal(err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPrunerEvictsByAge(t *testing.T) {
	dir := t.TempDir()
	old := writeArtifact(t, dir, "old.wav", 16, 2*time.Hour)
	fresh := writeArtifact(t, dir, "fresh.wav", 16, 0)

	p := NewPruner(dir, 1*time.Hour, 0, nil, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired artifact still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh artifact evicted: %v", err)
	}
}

func TestPrunerEvictsBySize(t *testing.T) {
	dir := t.TempDir()
	const size = 600 * 1024
	oldest := writeArtifact(t, dir, "a.mp3", size, 3*time.Hour)
	middle := writeArtifact(t, dir, "b.mp3", size, 2*time.Hour)
	newest := writeArtifact(t, dir, "c.mp3", size, 1*time.Hour)

	// 1800 KB total against a 1 MB cap: the two oldest must go.
	p := NewPruner(dir, 0, 1, nil, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Error("oldest artifact still present")
	}
	if _, err := os.Stat(middle); !os.IsNotExist(err) {
		t.Error("middle artifact still present")
	}
	if _, err := os.Stat(newest); err != nil {
		t.Errorf("newest artifact evicted: %v", err)
	}
}

func TestPrunerWithoutLimitsIsInert(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "keep.wav", 16, 100*time.Hour)

	p := NewPruner(dir, 0, 0, nil, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact evicted with no limits configured: %v", err)
	}
}
