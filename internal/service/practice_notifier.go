package service

import (
	"context"
	"encoding/json"
	"flashdeck_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const practiceChangedChannel = "practice:changed"

// PracticeChangedMessage 练习状态变化的广播负载
type PracticeChangedMessage struct {
	UserID    uint   `json:"userId"`
	DeckID    uint   `json:"deckId"`
	SessionID string `json:"sessionId"`
}

// PracticeNotifier 成功的会话变更后向 Redis 发布通知，
// 其他在线客户端据此刷新视图。引擎本身不依赖它。
type PracticeNotifier struct {
	Redis *redis.Client
}

func NewPracticeNotifier(rdb *redis.Client) *PracticeNotifier {
	return &PracticeNotifier{Redis: rdb}
}

func (n *PracticeNotifier) NotifyChanged(ctx context.Context, userID, deckID uint, sessionID string) {
	if n == nil || n.Redis == nil {
		return
	}
	payload, err := json.Marshal(PracticeChangedMessage{
		UserID:    userID,
		DeckID:    deckID,
		SessionID: sessionID,
	})
	if err != nil {
		return
	}
	if err := n.Redis.Publish(ctx, practiceChangedChannel, payload).Err(); err != nil {
		logger.Log.Warn("practice change notify failed", zap.Error(err))
	}
}

// Subscribe 返回练习变化频道的订阅，供 SSE/WebSocket 网关使用
func (n *PracticeNotifier) Subscribe(ctx context.Context) *redis.PubSub {
	return n.Redis.Subscribe(ctx, practiceChangedChannel)
}
