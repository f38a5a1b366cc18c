package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"story-relay/internal/domain"
	"story-relay/internal/repository"
)

// RedisRoomState 负责房间事件的 Pub/Sub 发布以及基于计数器的限流。
type RedisRoomState struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomState 创建 RedisRoomState 实例
func NewRedisRoomState(client *redis.Client, keyPrefix string) *RedisRoomState {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomState")
	}
	if keyPrefix == "" {
		keyPrefix = "sr:"
	}
	return &RedisRoomState{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

var _ repository.RoomEventPublisher = (*RedisRoomState)(nil)

// RoomEventsChannel 返回房间事件频道名
func (r *RedisRoomState) RoomEventsChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

func (r *RedisRoomState) rateLimitKey(key string) string {
	return r.keyPrefix + "ratelimit:" + key
}

// PublishRoomEvent 将事件以 JSON 发布到房间频道
func (r *RedisRoomState) PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	channel := r.RoomEventsChannel(event.RoomID)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room event %s: %w", event.Type, err)
	}
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.Type,
			"room_id":      event.RoomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish room event to channel %s: %w", channel, err)
	}
	return nil
}

// CheckRateLimit 递增 key 在当前窗口内的计数，超过 limit 时返回 true。
// 窗口从第一次请求开始计时（固定窗口）。
func (r *RedisRoomState) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)

	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	ttlCmd := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	// 新建的 key 还没有过期时间
	if ttl := ttlCmd.Val(); ttl < 0 {
		if err := r.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: failed to set rate limit window on key %s: %w", fullKey, err)
		}
	}
	return count > int64(limit), nil
}
