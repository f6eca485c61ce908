package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares presence between server instances. Online marks are plain
// keys with an expiry; typing marks are sorted-set members scored by their
// expiry time.
type Redis struct {
	rdb       redis.UniversalClient
	prefix    string
	onlineTTL time.Duration
	typingTTL time.Duration
	now       func() time.Time
}

var _ Tracker = (*Redis)(nil)

func NewRedis(rdb redis.UniversalClient, onlineTTL, typingTTL time.Duration) *Redis {
	if onlineTTL <= 0 {
		onlineTTL = DefaultOnlineTTL
	}
	if typingTTL <= 0 {
		typingTTL = DefaultTypingTTL
	}
	return &Redis{rdb: rdb, prefix: "tenismatch:", onlineTTL: onlineTTL, typingTTL: typingTTL, now: time.Now}
}

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, url string, onlineTTL, typingTTL time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb, onlineTTL, typingTTL), nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) onlineKey(userID int64) string {
	return r.prefix + "online:" + strconv.FormatInt(userID, 10)
}

func (r *Redis) typingKey(conversationID int64) string {
	return r.prefix + "typing:" + strconv.FormatInt(conversationID, 10)
}

func (r *Redis) Touch(ctx context.Context, userID int64) error {
	return r.rdb.Set(ctx, r.onlineKey(userID), 1, r.onlineTTL).Err()
}

func (r *Redis) Leave(ctx context.Context, userID int64) error {
	return r.rdb.Del(ctx, r.onlineKey(userID)).Err()
}

func (r *Redis) SetTyping(ctx context.Context, conversationID, userID int64) error {
	key := r.typingKey(conversationID)
	exp := r.now().Add(r.typingTTL)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(exp.UnixMilli()), Member: strconv.FormatInt(userID, 10)})
		p.Expire(ctx, key, r.typingTTL)
		return nil
	})
	return err
}

func (r *Redis) Online(ctx context.Context, userIDs []int64) (map[int64]bool, error) {
	res := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return res, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = r.onlineKey(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget online: %w", err)
	}
	for i, id := range userIDs {
		res[id] = vals[i] != nil
	}
	return res, nil
}

func (r *Redis) Typing(ctx context.Context, conversationID int64) ([]int64, error) {
	key := r.typingKey(conversationID)
	nowMs := strconv.FormatInt(r.now().UnixMilli(), 10)

	var members *redis.StringSliceCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", nowMs)
		members = p.ZRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("typing: %w", err)
	}

	ids := []int64{}
	for _, s := range members.Val() {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}
