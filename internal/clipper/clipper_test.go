package clipper

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseEventTimestamp(t *testing.T) {
	t.Run("zulu suffix", func(t *testing.T) {
		got, err := parseEventTimestamp("2025-01-30T10:15:00Z")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, 1, 30, 10, 15, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("malformed is an error", func(t *testing.T) {
		if _, err := parseEventTimestamp("not-a-time"); err == nil {
			t.Fatalf("expected error for malformed timestamp")
		}
	})
}

func TestExpectedPreTimes(t *testing.T) {
	eventTime := time.Date(2025, 1, 1, 10, 7, 15, 0, time.UTC)
	clipStart := eventTime.Add(-10 * time.Second)

	times := expectedPreTimes(clipStart, eventTime, 1)
	if len(times) != 10 {
		t.Fatalf("expected 10 one-second pre-roll slots, got %d: %v", len(times), times)
	}
	if !times[0].Equal(clipStart) {
		t.Fatalf("first slot = %v, want %v", times[0], clipStart)
	}
	if !times[len(times)-1].Before(eventTime) {
		t.Fatalf("last slot %v should be strictly before event time %v", times[len(times)-1], eventTime)
	}
}

func TestSegmentTimes(t *testing.T) {
	// S4: segment_seconds=300, event at 10:07:15Z, pre=10, post=10.
	eventTime := time.Date(2025, 1, 1, 10, 7, 15, 0, time.UTC)
	clipStart := eventTime.Add(-10 * time.Second)
	clipEnd := eventTime.Add(10 * time.Second)

	times := segmentTimes(clipStart, clipEnd, 300)
	if len(times) != 1 {
		t.Fatalf("expected a single overlapping segment, got %d: %v", len(times), times)
	}
	want := time.Date(2025, 1, 1, 10, 5, 0, 0, time.UTC)
	if !times[0].Equal(want) {
		t.Fatalf("segment start = %v, want %v", times[0], want)
	}
}

func TestWriteConcatManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "concat.txt")
	if err := writeConcatManifest(manifest, []string{"/a.ts", "/b.ts"}); err != nil {
		t.Fatalf("writeConcatManifest: %v", err)
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := "file '/a.ts'\nfile '/b.ts'\n"
	if string(data) != want {
		t.Fatalf("manifest = %q, want %q", string(data), want)
	}
}

func TestFinalizeClipRejectsUndersizeOutput(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "evt_x.mp4.tmp")
	if err := os.WriteFile(tmp, []byte("tiny"), 0o644); err != nil {
		t.Fatalf("write temp clip: %v", err)
	}
	c := New(Config{MinEventBytes: 4096}, nil, nil, nil)
	out := filepath.Join(dir, "evt_x.mp4")
	if c.finalizeClip(nil, "evt_x", tmp, out) {
		t.Fatalf("expected undersize clip to be rejected")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected output file to not exist")
	}
}
