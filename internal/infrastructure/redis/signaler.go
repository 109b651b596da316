package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-collab-notify/internal/config"
	"github.com/go-collab-notify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// publisher is the part of *goredis.Client the signaler needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// envelope is the message shape on the channel. Subscribers on every
// instance fan it out to their connected clients.
type envelope struct {
	Name   string                     `json:"name"`
	Data   domain.NotificationCreated `json:"data"`
	SentAt time.Time                  `json:"sent_at"`
}

// Signaler publishes notifications.created on a Redis Pub/Sub channel.
type Signaler struct {
	client  publisher
	channel string
	now     func() time.Time
}

func NewSignaler(client publisher, channel string) *Signaler {
	if channel == "" {
		channel = domain.SignalNotificationCreated
	}
	return &Signaler{client: client, channel: channel, now: time.Now}
}

// NewClient builds a go-redis client from cfg and checks it with PING.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func (s *Signaler) NotificationCreated(ctx context.Context, n domain.NotificationCreated) error {
	body, err := json.Marshal(envelope{Name: domain.SignalNotificationCreated, Data: n, SentAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", domain.SignalNotificationCreated, s.channel, err)
	}
	return nil
}
