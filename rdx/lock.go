package rdx

import (
	"context"
	"log"
	"time"
)

// ConversationLocker serializes dialogue processing per customer with a
// Redis SetNX lock. Different customers never contend.
type ConversationLocker struct {
	TTL time.Duration
}

func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{TTL: 15 * time.Second}
}

func (l *ConversationLocker) Acquire(ctx context.Context, customerID string) (bool, error) {
	key := "conv_lock:" + customerID
	return Conn.SetNX(ctx, key, "1", l.TTL).Result()
}

func (l *ConversationLocker) Release(ctx context.Context, customerID string) {
	key := "conv_lock:" + customerID
	if err := Conn.Del(ctx, key).Err(); err != nil {
		log.Printf("ConversationLocker: release failed for %s, err=%v", customerID, err)
	}
}
