package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const matchLockPrefix = "lock:match:"

// releaseScript deletes the lock only if the caller still owns it, so a
// holder whose TTL expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireMatchLock attempts to take the matching lock for a ride.
func (s *LockStore) AcquireMatchLock(ctx context.Context, rideID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, matchLockPrefix+rideID, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseMatchLock releases the lock if token still owns it.
func (s *LockStore) ReleaseMatchLock(ctx context.Context, rideID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{matchLockPrefix + rideID}, token).Err()
}
