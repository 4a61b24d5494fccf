package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	votesKey    = "poll:votes"
	sessionsKey = "poll:sessions"
)

// incrementVoteScript atomically increments one choice counter and returns
// both counters, so the tally observed by the caller always sums correctly.
// ARGV: [1]=field ("ny" or "chicago")
var incrementVoteScript = goredis.NewScript(`
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
local ny = tonumber(redis.call('HGET', KEYS[1], 'ny')) or 0
local chicago = tonumber(redis.call('HGET', KEYS[1], 'chicago')) or 0
return {ny, chicago}
`)

// TallyStore keeps the poll counters in a Redis hash.
type TallyStore struct {
	rdb *goredis.Client
}

var _ domain.TallyStore = (*TallyStore)(nil)

// NewTallyStore creates a Redis-backed tally store.
func NewTallyStore(client *Client) *TallyStore {
	return &TallyStore{rdb: client.rdb}
}

// Increment adds one vote for the given choice and returns the resulting tally.
func (s *TallyStore) Increment(ctx context.Context, choice domain.Choice) (domain.Tally, error) {
	result, err := incrementVoteScript.Run(ctx, s.rdb, []string{votesKey}, string(choice)).Result()
	if err != nil {
		return domain.Tally{}, fmt.Errorf("increment vote script failed: %w", err)
	}

	counts, ok := result.([]interface{})
	if !ok || len(counts) != 2 {
		return domain.Tally{}, fmt.Errorf("increment vote script returned unexpected result: %v", result)
	}
	ny, chicago := toInt(counts[0]), toInt(counts[1])
	return newTally(ny, chicago), nil
}

// Get reads the current tally. Missing fields count as zero.
func (s *TallyStore) Get(ctx context.Context) (domain.Tally, error) {
	fields, err := s.rdb.HGetAll(ctx, votesKey).Result()
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to read vote tally: %w", err)
	}

	ny, _ := strconv.ParseInt(fields[string(domain.ChoiceNY)], 10, 64)
	chicago, _ := strconv.ParseInt(fields[string(domain.ChoiceChicago)], 10, 64)
	return newTally(ny, chicago), nil
}

// Set overwrites both counters in a single HSET.
func (s *TallyStore) Set(ctx context.Context, ny, chicago int64) (domain.Tally, error) {
	if ny < 0 || chicago < 0 {
		return domain.Tally{}, domain.ErrInvalidCount
	}

	err := s.rdb.HSet(ctx, votesKey,
		string(domain.ChoiceNY), ny,
		string(domain.ChoiceChicago), chicago,
	).Err()
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to set vote tally: %w", err)
	}
	return newTally(ny, chicago), nil
}

// Reset clears the counters and the per-session vote claims together.
func (s *TallyStore) Reset(ctx context.Context) (domain.Tally, error) {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, votesKey)
		pipe.Del(ctx, sessionsKey)
		return nil
	})
	if err != nil {
		return domain.Tally{}, fmt.Errorf("failed to reset votes: %w", err)
	}
	return domain.Tally{}, nil
}

func newTally(ny, chicago int64) domain.Tally {
	return domain.Tally{NYVotes: ny, ChicagoVotes: chicago, TotalVotes: ny + chicago}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
