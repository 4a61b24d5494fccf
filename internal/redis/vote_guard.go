package redis

import (
	"context"
	"fmt"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// VoteGuard enforces at most one vote per session using a Redis set.
// SADD is an atomic test-and-set, so concurrent votes from the same
// session see exactly one winner.
type VoteGuard struct {
	rdb *goredis.Client
}

var _ domain.VoteGuard = (*VoteGuard)(nil)

// NewVoteGuard creates a Redis-backed vote guard.
func NewVoteGuard(client *Client) *VoteGuard {
	return &VoteGuard{rdb: client.rdb}
}

// TryClaim records the session as having voted. Returns true when this call
// claimed the vote, false when the session already voted.
func (g *VoteGuard) TryClaim(ctx context.Context, sessionID string) (bool, error) {
	added, err := g.rdb.SAdd(ctx, sessionsKey, sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim session vote: %w", err)
	}
	return added == 1, nil
}

// Clear forgets all session claims so everyone may vote again.
func (g *VoteGuard) Clear(ctx context.Context) error {
	if err := g.rdb.Del(ctx, sessionsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear session votes: %w", err)
	}
	return nil
}
