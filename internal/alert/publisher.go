package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// TriggerEvent is the message published for every detected trigger.
type TriggerEvent struct {
	Kind        models.TriggerKind  `json:"kind"`
	Priority    int                 `json:"priority"`
	Event       models.SqueezeEvent `json:"event"`
	Channels    []string            `json:"channels"`
	PublishedAt time.Time           `json:"publishedAt"`
}

// EventPublisher broadcasts every detected trigger to a Redis channel,
// independent of cooldowns and subscriptions.
type EventPublisher struct {
	client  storage.RedisClient
	channel string
	router  *channel.Router
	config  TriggerConfig
	now     func() time.Time
}

// NewEventPublisher creates a publisher hook
func NewEventPublisher(client storage.RedisClient, topic string, router *channel.Router, config TriggerConfig) *EventPublisher {
	if client == nil || router == nil {
		panic("publisher dependencies cannot be nil")
	}
	if topic == "" {
		topic = "squeeze.triggers"
	}
	d := DefaultTriggerConfig()
	if config.StrongScore <= 0 {
		config.StrongScore = d.StrongScore
	}
	if config.ScoreJumpDelta <= 0 {
		config.ScoreJumpDelta = d.ScoreJumpDelta
	}
	return &EventPublisher{
		client:  client,
		channel: topic,
		router:  router,
		config:  config,
		now:     time.Now,
	}
}

// Name returns the hook name
func (p *EventPublisher) Name() string { return "event_publisher" }

// OnScan publishes the triggers of one scan. The first publish error is
// returned after every trigger was attempted.
func (p *EventPublisher) OnScan(ctx context.Context, prev, next []models.CacheItem) error {
	var firstErr error
	published := 0
	for _, t := range DetectTriggers(prev, next, p.config) {
		ev := channel.BuildEvent(t.Item)
		msg := TriggerEvent{
			Kind:        t.Kind,
			Priority:    t.Priority,
			Event:       ev,
			Channels:    channel.IDs(p.router.Route(ev)),
			PublishedAt: p.now().UTC(),
		}
		if err := p.client.Publish(ctx, p.channel, msg); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to publish trigger for %s: %w", t.Ticker(), err)
			}
			continue
		}
		published++
	}

	if published > 0 {
		logger.WithContext(ctx).Debug("Published triggers",
			logger.String("channel", p.channel),
			logger.Int("count", published),
		)
	}
	return firstErr
}
