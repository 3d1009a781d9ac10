package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/archiver/internal/core/domain"
)

const defaultLedgerTTL = 7 * 24 * time.Hour

// FailureLedger implements storage.FailureLedger on a Redis sorted set
// scored by height.
type FailureLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFailureLedger creates a new Redis-backed failure ledger.
func NewFailureLedger(client *Client, ttl time.Duration) *FailureLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &FailureLedger{rdb: client.rdb, ttl: ttl}
}

// Key helpers
func queueKey(r domain.HeightRange) string {
	return fmt.Sprintf("failed_heights:%s", r)
}

func entryKey(r domain.HeightRange, height int64) string {
	return fmt.Sprintf("failed_height:%s:%d", r, height)
}

// Record adds a failed height, bumping its retry count if it is already known.
func (l *FailureLedger) Record(ctx context.Context, r domain.HeightRange, fh *domain.FailedHeight) error {
	entry := *fh

	prev, err := l.get(ctx, r, fh.Height)
	if err != nil {
		return err
	}
	if prev != nil {
		entry.RetryCount = prev.RetryCount + 1
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal failed height: %w", err)
	}

	pipe := l.rdb.TxPipeline()
	pipe.Set(ctx, entryKey(r, fh.Height), data, l.ttl)
	pipe.ZAdd(ctx, queueKey(r), redis.Z{
		Score:  float64(fh.Height),
		Member: strconv.FormatInt(fh.Height, 10),
	})
	pipe.Expire(ctx, queueKey(r), l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failed height: %w", err)
	}
	return nil
}

// Resolve removes a height that has since been archived.
func (l *FailureLedger) Resolve(ctx context.Context, r domain.HeightRange, height int64) error {
	pipe := l.rdb.TxPipeline()
	pipe.ZRem(ctx, queueKey(r), strconv.FormatInt(height, 10))
	pipe.Del(ctx, entryKey(r, height))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to resolve height %d: %w", height, err)
	}
	return nil
}

// List returns every recorded height, highest first.
func (l *FailureLedger) List(ctx context.Context, r domain.HeightRange) ([]*domain.FailedHeight, error) {
	members, err := l.rdb.ZRevRange(ctx, queueKey(r), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	result := make([]*domain.FailedHeight, 0, len(members))
	for _, m := range members {
		height, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		fh, err := l.get(ctx, r, height)
		if err != nil {
			return nil, err
		}
		if fh == nil {
			// Data expired but height still in queue
			l.rdb.ZRem(ctx, queueKey(r), m)
			continue
		}
		result = append(result, fh)
	}
	return result, nil
}

// Count returns the number of recorded heights.
func (l *FailureLedger) Count(ctx context.Context, r domain.HeightRange) (int, error) {
	count, err := l.rdb.ZCard(ctx, queueKey(r)).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

func (l *FailureLedger) get(ctx context.Context, r domain.HeightRange, height int64) (*domain.FailedHeight, error) {
	data, err := l.rdb.Get(ctx, entryKey(r, height)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed height: %w", err)
	}

	var fh domain.FailedHeight
	if err := json.Unmarshal(data, &fh); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failed height: %w", err)
	}
	return &fh, nil
}
