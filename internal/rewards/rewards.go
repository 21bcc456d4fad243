/*
Package rewards keeps the activity points each user has earned.
Points live in process memory, or in Redis when one is configured so they
survive restarts and are shared between instances.
*/
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PointsPerRecord is awarded for every ingested health record.
const PointsPerRecord = 10

var ErrInvalidPoints = errors.New("points must be positive")

// Store adds to and reads users' point totals.
type Store interface {
	Add(ctx context.Context, userID int64, points int64) (int64, error)
	Get(ctx context.Context, userID int64) (int64, error)
}

// Memory is a Store guarded by a mutex.
type Memory struct {
	mu     sync.Mutex
	points map[int64]int64
}

func NewMemory() *Memory {
	return &Memory{points: make(map[int64]int64)}
}

func (m *Memory) Add(_ context.Context, userID int64, points int64) (int64, error) {
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[userID] += points
	return m.points[userID], nil
}

func (m *Memory) Get(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.points[userID], nil
}

// Redis is a Store backed by INCRBY on one key per user.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to addr and pings it with a short timeout.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisWithClient(client), nil
}

func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "rewards"}
}

func (r *Redis) key(userID int64) string {
	return r.prefix + ":" + strconv.FormatInt(userID, 10)
}

func (r *Redis) Add(ctx context.Context, userID int64, points int64) (int64, error) {
	if points <= 0 {
		return 0, ErrInvalidPoints
	}
	total, err := r.client.IncrBy(ctx, r.key(userID), points).Result()
	if err != nil {
		return 0, fmt.Errorf("add rewards for user %d: %w", userID, err)
	}
	return total, nil
}

func (r *Redis) Get(ctx context.Context, userID int64) (int64, error) {
	total, err := r.client.Get(ctx, r.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rewards for user %d: %w", userID, err)
	}
	return total, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
