package copier

import (
	"testing"
	"time"
)

func TestThrottle_FirstRunAllowed(t *testing.T) {
	th := NewThrottle(2 * time.Second)
	if !th.Allow("sess:BTC") {
		t.Fatal("expected untouched key to be allowed")
	}
}

func TestThrottle_BlocksUntilIntervalElapses(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	th := NewThrottle(2 * time.Second)
	th.now = func() time.Time { return now }

	th.Touch("sess:BTC")
	if th.Allow("sess:BTC") {
		t.Error("expected key to be blocked immediately after touch")
	}

	now = now.Add(1999 * time.Millisecond)
	if th.Allow("sess:BTC") {
		t.Error("expected key to stay blocked inside the interval")
	}

	now = now.Add(time.Millisecond)
	if !th.Allow("sess:BTC") {
		t.Error("expected key to be allowed once the interval elapsed")
	}
}

func TestThrottle_KeysAreIndependent(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	th := NewThrottle(2 * time.Second)
	th.now = func() time.Time { return now }

	th.Touch("sess:BTC")
	if th.Allow("sess:BTC") {
		t.Error("expected touched key to be blocked")
	}
	if !th.Allow("sess:ETH") {
		t.Error("expected other key to be unaffected")
	}
}
