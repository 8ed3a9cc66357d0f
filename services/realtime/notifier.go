package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"handyhub/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Notifier fans booking lifecycle events out to live dashboard channels.
// Publishing is a best-effort side channel: implementations never return an
// error to the caller and must never block the authoritative write.
type Notifier interface {
	Publish(ctx context.Context, audience string, event models.BookingEvent)
}

// NoopNotifier discards events; used in tests and when no event transport is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, string, models.BookingEvent) {}

// Channels computes the topic channel set for an event. The booking's own
// channel is always included; the rest depend on the requested audience.
// Channels whose key is absent on the event are dropped.
func Channels(audience string, e models.BookingEvent) []string {
	channels := []string{"booking:" + e.BookingID}

	addIf := func(prefix, key string) {
		if key != "" {
			channels = append(channels, prefix+key)
		}
	}

	if audience == models.AudienceAll || audience == models.AudienceCustomer {
		addIf("user:", e.CustomerID)
	}
	if audience == models.AudienceAll || audience == models.AudienceWorker {
		addIf("user:", e.WorkerID)
		addIf("service:", normalizeService(e.Service))
	}
	if audience == models.AudienceAll || audience == models.AudienceBroker {
		addIf("user:", e.BrokerID)
		addIf("broker:", e.BrokerID)
		addIf("broker-code:", e.BrokerCode)
	}
	return channels
}

// normalizeService lowercases and hyphenates a service name for channel keys.
func normalizeService(service string) string {
	return strings.Join(strings.Fields(strings.ToLower(service)), "-")
}

// RedisNotifier publishes events over Redis PUB/SUB. Failures and the absence
// of any live subscriber are silently ignored apart from a debug log line.
type RedisNotifier struct {
	Client *redis.Client
	Logger *zap.Logger
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{Client: client, Logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, audience string, event models.BookingEvent) {
	if n.Client == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		if n.Logger != nil {
			n.Logger.Debug("realtime: failed to marshal event", zap.Error(err))
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for _, channel := range Channels(audience, event) {
		if err := n.Client.Publish(pubCtx, channel, payload).Err(); err != nil {
			if n.Logger != nil {
				n.Logger.Debug("realtime: publish failed",
					zap.String("channel", channel),
					zap.Error(err))
			}
		}
	}
}
