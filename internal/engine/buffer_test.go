package engine

import (
	"testing"
	"time"
)

func TestBufferEvictsByCount(t *testing.T) {
	buf := NewSymbolBuffer("ABCD", 3, 0)
	for i := 0; i < 5; i++ {
		buf.Record(tradeAt("ABCD", 10, float64(i), testBase.Add(time.Duration(i)*time.Second)))
	}

	if got := buf.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	last := buf.LastN(3)
	if last[0].Size != 2 || last[2].Size != 4 {
		t.Fatalf("oldest trades not evicted: sizes %v %v", last[0].Size, last[2].Size)
	}
}

func TestBufferPrunesByAge(t *testing.T) {
	buf := NewSymbolBuffer("ABCD", 100, time.Minute)
	for i := 0; i < 10; i++ {
		buf.Record(tradeAt("ABCD", 10, 1, testBase.Add(time.Duration(i*10)*time.Second)))
	}

	now := testBase.Add(2 * time.Minute)
	buf.Prune(now)

	// Only trades at or after now-60s survive: offsets 60..90.
	if got := buf.Len(); got != 4 {
		t.Fatalf("len after prune = %d, want 4", got)
	}
	if first := buf.LastN(buf.Len())[0]; first.Timestamp.Before(now.Add(-time.Minute)) {
		t.Fatalf("stale trade survived prune: %v", first.Timestamp)
	}
}

func TestBufferSnapshotHalfOpen(t *testing.T) {
	buf := NewSymbolBuffer("ABCD", 100, 0)
	for i := 0; i < 6; i++ {
		buf.Record(tradeAt("ABCD", 10, 1, testBase.Add(time.Duration(i)*time.Second)))
	}

	from := testBase.Add(1 * time.Second)
	to := testBase.Add(4 * time.Second)
	got := buf.Snapshot(from, to)
	if len(got) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(got))
	}
	if got[0].Timestamp != from {
		t.Fatalf("from bound not inclusive: %v", got[0].Timestamp)
	}
	if !got[2].Timestamp.Before(to) {
		t.Fatalf("to bound not exclusive: %v", got[2].Timestamp)
	}

	if s := buf.Snapshot(to, from); s != nil {
		t.Fatalf("inverted interval should be empty, got %d trades", len(s))
	}
}

func TestBufferLastN(t *testing.T) {
	buf := NewSymbolBuffer("ABCD", 100, 0)
	if got := buf.LastN(5); got != nil {
		t.Fatalf("LastN on empty buffer = %v, want nil", got)
	}

	for i := 0; i < 3; i++ {
		buf.Record(tradeAt("ABCD", float64(10 + i), 1, testBase.Add(time.Duration(i)*time.Second)))
	}
	got := buf.LastN(10)
	if len(got) != 3 {
		t.Fatalf("LastN(10) len = %d, want 3", len(got))
	}
	if got[2].Price != 12 {
		t.Fatalf("LastN order wrong: last price %v", got[2].Price)
	}
}

func TestBufferCompactKeepsLiveTrades(t *testing.T) {
	buf := NewSymbolBuffer("ABCD", 4, 0)
	for i := 0; i < 50; i++ {
		buf.Record(tradeAt("ABCD", float64(i), 1, testBase.Add(time.Duration(i)*time.Second)))
	}
	if got := buf.Len(); got != 4 {
		t.Fatalf("len = %d, want 4", got)
	}
	last := buf.LastN(4)
	for i, tr := range last {
		if want := float64(46 + i); tr.Price != want {
			t.Fatalf("trade %d price = %v, want %v", i, tr.Price, want)
		}
	}
}
