package ratelimit

import "testing"

func TestLimiterConsumesBurst(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0.001) {
			t.Fatalf("token %d denied within capacity", i)
		}
	}
	if l.Allow("k", 3, 0.001) {
		t.Fatal("allowed past capacity with no refill")
	}
}

func TestLimiterKeysIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatal("first key denied")
	}
	if l.Allow("a", 1, 0.001) {
		t.Fatal("first key allowed past capacity")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatal("second key should have its own bucket")
	}
}
