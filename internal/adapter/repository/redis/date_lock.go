package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/cashflow/internal/domain"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DateLock implements usecase.DateLock with SET NX and an owner token, so a
// process never releases a lock that expired and was taken by another one.
type DateLock struct {
	client redis.UniversalClient
	prefix string
	token  string
}

// NewDateLock creates a DateLock with a random owner token.
func NewDateLock(client redis.UniversalClient, prefix string) *DateLock {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)

	return &DateLock{
		client: client,
		prefix: prefix + "lock:",
		token:  hex.EncodeToString(buf),
	}
}

// Acquire takes key for ttl. It returns false when another holder has it.
func (l *DateLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: acquire lock %s: %v", domain.ErrTransientStoreFailure, key, err)
	}
	return ok, nil
}

// Release drops key if this holder owns it.
func (l *DateLock) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, l.token).Err(); err != nil {
		return fmt.Errorf("%w: release lock %s: %v", domain.ErrTransientStoreFailure, key, err)
	}
	return nil
}
