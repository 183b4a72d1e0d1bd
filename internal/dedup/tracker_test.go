package dedup

import (
	"fmt"
	"testing"
)

func TestAdmitTwice(t *testing.T) {
	tracker := NewTracker(10)

	if !tracker.Admit("a") {
		t.Fatal("Expected first Admit to return true")
	}
	if tracker.Admit("a") {
		t.Fatal("Expected second Admit to return false")
	}
	if tracker.Size() != 1 {
		t.Errorf("Expected size 1, got %d", tracker.Size())
	}
}

func TestEvictionRemovesOldestHalf(t *testing.T) {
	tracker := NewTracker(10)
	for i := 0; i < 10; i++ {
		tracker.Admit(fmt.Sprintf("id-%d", i))
	}

	// 11th admit triggers eviction of the oldest 5 before storing.
	if !tracker.Admit("id-10") {
		t.Fatal("Expected new id to be admitted")
	}
	if tracker.Size() != 6 {
		t.Errorf("Expected size 6 after eviction, got %d", tracker.Size())
	}

	// The evicted oldest half can be re-admitted (documented trade-off).
	for i := 0; i < 5; i++ {
		if !tracker.Admit(fmt.Sprintf("id-%d", i)) {
			t.Errorf("Expected evicted id-%d to be re-admittable", i)
		}
	}

	// The most recently inserted half was never evicted.
	for i := 5; i < 11; i++ {
		if tracker.Admit(fmt.Sprintf("id-%d", i)) {
			t.Errorf("Expected id-%d to still be tracked", i)
		}
	}
}

func TestSizeNeverExceedsCapacity(t *testing.T) {
	tracker := NewTracker(100)
	for i := 0; i < 1000; i++ {
		tracker.Admit(fmt.Sprintf("id-%d", i))
		if tracker.Size() > 100 {
			t.Fatalf("Size %d exceeded capacity after %d admits", tracker.Size(), i+1)
		}
	}
}

func TestTinyCapacity(t *testing.T) {
	tracker := NewTracker(1)
	if !tracker.Admit("a") {
		t.Fatal("Expected admit into empty tracker")
	}
	if !tracker.Admit("b") {
		t.Fatal("Expected admit after eviction")
	}
	if tracker.Admit("b") {
		t.Fatal("Expected duplicate to be rejected")
	}
}
