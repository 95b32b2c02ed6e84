package desktop

import "testing"

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCloseTracker(t *testing.T) {
	tr := newCloseTracker()

	ch := tr.wait(7)
	if isClosed(ch) {
		t.Fatal("closed before the signal")
	}
	tr.closed(8)
	if isClosed(ch) {
		t.Fatal("closed by another notification's signal")
	}
	tr.closed(7)
	if !isClosed(ch) {
		t.Fatal("not closed by its signal")
	}
}

func TestCloseTrackerSignalBeforeReply(t *testing.T) {
	tr := newCloseTracker()
	tr.closed(3)
	if ch := tr.wait(3); !isClosed(ch) {
		t.Error("early signal lost")
	}
	// Claimed once only.
	if ch := tr.wait(3); isClosed(ch) {
		t.Error("early signal claimed twice")
	}
}

func TestCloseTrackerForgetsOldSignals(t *testing.T) {
	tr := newCloseTracker()
	tr.closed(1)
	for id := uint32(100); id < 100+earlyCloses; id++ {
		tr.closed(id)
	}
	if ch := tr.wait(1); isClosed(ch) {
		t.Error("unclaimed signal kept forever")
	}
}

func TestCloseTrackerCloseAll(t *testing.T) {
	tr := newCloseTracker()
	ch := tr.wait(1)
	tr.closeAll()
	if !isClosed(ch) {
		t.Error("waiter not released")
	}
	if ch := tr.wait(2); !isClosed(ch) {
		t.Error("wait after closeAll blocks forever")
	}
}
