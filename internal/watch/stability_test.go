package watch

import (
	"os"
	"testing"
	"time"
)

func TestStabilityTrackerEmitsAfterWindow(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/x.mkv"
	writeFile(t, path, 100)

	ready := make(chan ReadyEvent, 4)
	tracker := NewStabilityTracker(30*time.Second, ready)
	tracker.Track(path, "A")

	base := time.Now()
	tracker.CheckAll(base) // first sighting: records the size, stable_since still unset
	select {
	case <-ready:
		t.Fatal("should not emit on first sighting")
	default:
	}

	tracker.CheckAll(base.Add(1 * time.Second))  // size unchanged: sets stable_since
	tracker.CheckAll(base.Add(30 * time.Second)) // stable for 29s
	select {
	case <-ready:
		t.Fatal("should not emit before stability_duration elapses")
	default:
	}

	tracker.CheckAll(base.Add(32 * time.Second)) // stable for 31s
	select {
	case ev := <-ready:
		if ev.Path != path || ev.ProfileName != "A" {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected emission after stability window")
	}

	if tracker.Len() != 0 {
		t.Error("entry should be removed after emission")
	}
}

func TestStabilityTrackerResetsOnSizeChange(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/x.mkv"
	writeFile(t, path, 100)

	ready := make(chan ReadyEvent, 4)
	tracker := NewStabilityTracker(30*time.Second, ready)
	tracker.Track(path, "A")

	base := time.Now()
	tracker.CheckAll(base)
	tracker.CheckAll(base.Add(25 * time.Second))

	writeFile(t, path, 120)
	tracker.CheckAll(base.Add(26 * time.Second)) // size change: clears stable_since
	tracker.CheckAll(base.Add(27 * time.Second)) // new size unchanged: stable_since restarts
	tracker.CheckAll(base.Add(56 * time.Second)) // 29s stable at the new size: not yet stable

	select {
	case <-ready:
		t.Fatal("should not have emitted yet")
	default:
	}

	tracker.CheckAll(base.Add(58 * time.Second)) // 31s stable at the new size
	select {
	case <-ready:
	default:
		t.Fatal("expected emission 30s after the new size was first seen unchanged")
	}
}

func TestStabilityTrackerZeroSizeNeverEmits(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/x.mkv"
	writeFile(t, path, 0)

	ready := make(chan ReadyEvent, 4)
	tracker := NewStabilityTracker(1*time.Millisecond, ready)
	tracker.Track(path, "A")

	base := time.Now()
	tracker.CheckAll(base)
	tracker.CheckAll(base.Add(time.Hour))

	select {
	case <-ready:
		t.Fatal("zero-size file must never emit")
	default:
	}
}

func TestStabilityTrackerTrackIdempotent(t *testing.T) {
	ready := make(chan ReadyEvent, 1)
	tracker := NewStabilityTracker(time.Second, ready)
	tracker.Track("/a", "A")
	tracker.Track("/a", "B") // second call is a no-op
	if tracker.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", tracker.Len())
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
