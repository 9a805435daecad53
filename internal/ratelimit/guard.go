package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Policy constants. Fixed, not configurable per campaign.
const (
	MaxSubmissions = 3
	Window         = 24 * time.Hour
)

// Message returned to callers who hit the limit.
const LimitExceededMessage = "Rate limit exceeded. Maximum 3 reviews per day."

// Counter counts prior anonymous submissions for a hashed-IP/campaign
// key; *repository.ReviewRepo satisfies it. The count is recomputed from
// persisted reviews on every check — there is no separate counter entity
// to maintain or lose on a crash.
type Counter interface {
	CountAnonymousSince(ctx context.Context, ipHash, campaignID string, since time.Time) (int64, error)
}

// Guard bounds anonymous submissions per IP per campaign over a rolling
// 24-hour window.
type Guard struct {
	counter Counter
	now     func() time.Time
}

func NewGuard(counter Counter) *Guard {
	return &Guard{
		counter: counter,
		now:     time.Now,
	}
}

// Key derives the stable hashed-IP key. The same derivation is stored on
// each anonymous review, so the write and read paths always agree. The
// raw IP never leaves this function.
func Key(ip, campaignID string) string {
	sum := sha256.Sum256([]byte(ip + "_" + campaignID))
	return hex.EncodeToString(sum[:])
}

// Check reports whether another anonymous submission is allowed right
// now. The window is rolling: a submission older than 24 hours no longer
// counts against the caller.
func (g *Guard) Check(ctx context.Context, ip, campaignID string) (bool, error) {
	since := g.now().Add(-Window)
	count, err := g.counter.CountAnonymousSince(ctx, Key(ip, campaignID), campaignID, since)
	if err != nil {
		return false, err
	}
	return count < MaxSubmissions, nil
}
