package progress

import (
	"testing"
	"time"
)

func collect(updates *[]Update) func(Update) {
	return func(u Update) { *updates = append(*updates, u) }
}

func TestTracker_PhaseRanges(t *testing.T) {
	var updates []Update
	tr := NewTracker(collect(&updates))

	tr.StartPlanning()
	tr.StartCompressing(4)
	for i := 0; i < 4; i++ {
		tr.ChunkStarted(i)
		tr.ChunkCompleted(i, 100*time.Millisecond)
	}
	tr.StartMerging()
	tr.MergeProgress(50)
	tr.Done()

	for _, u := range updates {
		switch u.Phase {
		case PhasePlanning:
			if u.Progress < 0 || u.Progress > 10 {
				t.Errorf("planning progress %.1f outside [0,10]", u.Progress)
			}
		case PhaseCompressing:
			if u.Progress < 10 || u.Progress > 90 {
				t.Errorf("compressing progress %.1f outside [10,90]", u.Progress)
			}
		case PhaseMerging:
			if u.Progress < 90 || u.Progress > 100 {
				t.Errorf("merging progress %.1f outside [90,100]", u.Progress)
			}
		}
	}

	last := updates[len(updates)-1]
	if last.Progress != 100 {
		t.Errorf("final progress = %.1f, want 100", last.Progress)
	}
}

func TestTracker_Monotonic(t *testing.T) {
	var updates []Update
	tr := NewTracker(collect(&updates))

	tr.StartPlanning()
	tr.StartCompressing(3)
	tr.ChunkStarted(0)
	tr.ChunkCompleted(0, time.Second)
	tr.ChunkStarted(1)
	tr.ChunkCompleted(1, time.Second)
	tr.Recovering("retrying with preset balanced")
	tr.ResetPass()
	tr.StartPlanning()
	tr.StartCompressing(3)
	tr.ChunkStarted(0)
	tr.ChunkCompleted(0, time.Second)

	prev := -1.0
	for i, u := range updates {
		if u.Progress < prev {
			t.Errorf("update %d: progress %.2f < previous %.2f", i, u.Progress, prev)
		}
		prev = u.Progress
	}
}

func TestTracker_CompressingScalesLinearly(t *testing.T) {
	var updates []Update
	tr := NewTracker(collect(&updates))

	tr.StartCompressing(4)
	tr.ChunkCompleted(0, time.Second)
	tr.ChunkCompleted(1, time.Second)

	// 2 of 4 chunks: 10 + 80*0.5 = 50
	last := updates[len(updates)-1]
	if last.Progress != 50 {
		t.Errorf("progress after 2/4 chunks = %.1f, want 50", last.Progress)
	}
}

func TestTracker_ETA(t *testing.T) {
	tr := NewTracker(nil)

	tr.StartCompressing(4)
	if eta := tr.Snapshot().EstimatedRemaining; eta != 0 {
		t.Errorf("ETA before first chunk = %v, want 0", eta)
	}

	tr.ChunkCompleted(0, 2*time.Second)
	// 3 remaining chunks at 2s average
	if eta := tr.Snapshot().EstimatedRemaining; eta != 6*time.Second {
		t.Errorf("ETA = %v, want 6s", eta)
	}

	tr.ChunkCompleted(1, 4*time.Second)
	// avg 3s, 2 remaining
	if eta := tr.Snapshot().EstimatedRemaining; eta != 6*time.Second {
		t.Errorf("ETA = %v, want 6s", eta)
	}
}

func TestTracker_RecoveringHoldsPosition(t *testing.T) {
	var updates []Update
	tr := NewTracker(collect(&updates))

	tr.StartCompressing(2)
	tr.ChunkCompleted(0, time.Second)
	before := updates[len(updates)-1].Progress

	tr.Recovering("retrying with preset lossless")
	last := updates[len(updates)-1]
	if last.Phase != PhaseErrorRecovery {
		t.Errorf("phase = %s, want error-recovery", last.Phase)
	}
	if last.Progress != before {
		t.Errorf("recovery progress = %.1f, want held at %.1f", last.Progress, before)
	}
	if last.Message == "" {
		t.Error("recovery update should carry a message")
	}
}

func TestTracker_NilCallback(t *testing.T) {
	tr := NewTracker(nil)
	tr.StartPlanning()
	tr.StartCompressing(1)
	tr.ChunkCompleted(0, time.Second)
	tr.Done()
	if got := tr.Snapshot().Progress; got != 100 {
		t.Errorf("Snapshot progress = %.1f, want 100", got)
	}
}
