package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 锁已被其他进程持有
var ErrLockHeld = errors.New("lock already held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 基于 SET NX 的互斥锁，仅持有者可以释放
type Lock struct {
	key   string
	token string
}

// AcquireLock 获取互斥锁；Redis 未启用时返回空锁，调用方照常执行
func AcquireLock(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	if !Enabled() {
		return &Lock{}, nil
	}
	lock := &Lock{key: buildKey("lock:" + name), token: uuid.NewString()}
	ok, err := redisClient.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Release 释放锁
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.key == "" || !Enabled() {
		return nil
	}
	return releaseScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}
