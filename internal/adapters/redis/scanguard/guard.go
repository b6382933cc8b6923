package scanguard

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ironhall-fitness/gym-access-api/internal/domain"
)

const keyPrefix = "gym:scan_lock:"

// releaseScript deletes the lock only when it still carries the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard is a Redis-backed scanguard.Guard shared by all API instances.
type Guard struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewGuard(rdb goredis.UniversalClient, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

func (g *Guard) Acquire(ctx context.Context, memberID domain.MemberID) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, keyPrefix+string(memberID), token, g.ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (g *Guard) Release(ctx context.Context, memberID domain.MemberID, token string) error {
	return releaseScript.Run(ctx, g.rdb, []string{keyPrefix + string(memberID)}, token).Err()
}
