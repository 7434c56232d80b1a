package memory

import (
	"context"
	"time"
	"tle_zone_judge/internal/domain/repository"

	"github.com/puzpuzpuz/xsync/v3"
)

// TokenBlocklist is the single-process stand-in for the Redis blocklist.
type TokenBlocklist struct {
	expiry *xsync.MapOf[string, time.Time]
	now    func() time.Time
}

var _ repository.TokenBlocklist = (*TokenBlocklist)(nil)

func NewTokenBlocklist() *TokenBlocklist {
	return &TokenBlocklist{expiry: xsync.NewMapOf[string, time.Time](), now: time.Now}
}

func (b *TokenBlocklist) Block(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.expiry.Store(tokenID, b.now().Add(ttl))
	return nil
}

func (b *TokenBlocklist) IsBlocked(ctx context.Context, tokenID string) (bool, error) {
	until, ok := b.expiry.Load(tokenID)
	if !ok {
		return false, nil
	}
	if !b.now().Before(until) {
		b.expiry.Delete(tokenID)
		return false, nil
	}
	return true, nil
}
