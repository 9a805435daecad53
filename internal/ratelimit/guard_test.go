package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeCounter records submission timestamps per key, the way anonymous
// reviews accumulate in the reviews collection.
type fakeCounter struct {
	submissions map[string][]time.Time
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{submissions: map[string][]time.Time{}}
}

func (c *fakeCounter) add(ip, campaignID string, at time.Time) {
	key := Key(ip, campaignID)
	c.submissions[key] = append(c.submissions[key], at)
}

func (c *fakeCounter) CountAnonymousSince(ctx context.Context, ipHash, campaignID string, since time.Time) (int64, error) {
	var count int64
	for _, at := range c.submissions[ipHash] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func TestKeyIsStableAndHidesIP(t *testing.T) {
	a := Key("1.2.3.4", "c1")
	b := Key("1.2.3.4", "c1")
	if a != b {
		t.Error("same ip/campaign must derive the same key")
	}
	if len(a) != 64 {
		t.Errorf("key should be a sha256 hex digest, got %d chars", len(a))
	}
	if Key("1.2.3.4", "c2") == a {
		t.Error("different campaigns must derive different keys")
	}
	if Key("5.6.7.8", "c1") == a {
		t.Error("different ips must derive different keys")
	}
}

func TestCheckAllowsUpToThreePerDay(t *testing.T) {
	counter := newFakeCounter()
	guard := NewGuard(counter)

	now := time.Now()
	guard.now = func() time.Time { return now }

	// Three submissions within an hour are all allowed.
	for i := 0; i < 3; i++ {
		allowed, err := guard.Check(context.Background(), "1.2.3.4", "c1")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !allowed {
			t.Fatalf("submission %d should be allowed", i+1)
		}
		counter.add("1.2.3.4", "c1", now.Add(time.Duration(i)*20*time.Minute))
	}

	// The fourth is rejected.
	allowed, err := guard.Check(context.Background(), "1.2.3.4", "c1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if allowed {
		t.Error("fourth submission within 24h should be rejected")
	}
}

func TestCheckWindowIsRolling(t *testing.T) {
	counter := newFakeCounter()
	guard := NewGuard(counter)

	base := time.Now()
	counter.add("1.2.3.4", "c1", base)
	counter.add("1.2.3.4", "c1", base.Add(10*time.Hour))
	counter.add("1.2.3.4", "c1", base.Add(20*time.Hour))

	guard.now = func() time.Time { return base.Add(23 * time.Hour) }
	if allowed, _ := guard.Check(context.Background(), "1.2.3.4", "c1"); allowed {
		t.Error("three submissions inside the window should block a fourth")
	}

	// Once the oldest submission ages past 24 hours, capacity frees up.
	guard.now = func() time.Time { return base.Add(25 * time.Hour) }
	if allowed, _ := guard.Check(context.Background(), "1.2.3.4", "c1"); !allowed {
		t.Error("window should roll: oldest submission no longer counts")
	}
}

func TestCheckIsScopedPerIPAndCampaign(t *testing.T) {
	counter := newFakeCounter()
	guard := NewGuard(counter)

	now := time.Now()
	guard.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		counter.add("1.2.3.4", "c1", now)
	}

	if allowed, _ := guard.Check(context.Background(), "1.2.3.4", "c1"); allowed {
		t.Error("saturated ip/campaign pair should be blocked")
	}
	if allowed, _ := guard.Check(context.Background(), "5.6.7.8", "c1"); !allowed {
		t.Error("another ip on the same campaign should be allowed")
	}
	if allowed, _ := guard.Check(context.Background(), "1.2.3.4", "c2"); !allowed {
		t.Error("the same ip on another campaign should be allowed")
	}
}
