package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const readyChannel = "handoffs:ready"

// Notifier fans out pipeline completion events to interested clients.
type Notifier interface {
	HandoffReady(ctx context.Context, handoffID string, version int) error
	HandoffFailed(ctx context.Context, handoffID string, reason string) error
}

type readyEvent struct {
	Event     string    `json:"event"`
	HandoffID string    `json:"handoff_id"`
	Version   int       `json:"version,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type redisNotifier struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisNotifier(rdb *redis.Client, logger *logrus.Logger) Notifier {
	return &redisNotifier{rdb: rdb, logger: logger}
}

func (n *redisNotifier) publish(ctx context.Context, ev readyEvent) error {
	ev.At = time.Now().UTC()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, readyChannel, b).Err(); err != nil {
		n.logger.WithError(err).WithField("handoff_id", ev.HandoffID).
			Warn("notify publish failed")
		return err
	}
	return nil
}

func (n *redisNotifier) HandoffReady(ctx context.Context, handoffID string, version int) error {
	return n.publish(ctx, readyEvent{Event: "handoff.ready", HandoffID: handoffID, Version: version})
}

func (n *redisNotifier) HandoffFailed(ctx context.Context, handoffID string, reason string) error {
	return n.publish(ctx, readyEvent{Event: "handoff.failed", HandoffID: handoffID, Reason: reason})
}
