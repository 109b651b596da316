package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/go-collab-notify/internal/config"
	"github.com/go-collab-notify/internal/domain"
	"github.com/go-collab-notify/internal/infrastructure/awscfg"
	redisinfra "github.com/go-collab-notify/internal/infrastructure/redis"
	snsinfra "github.com/go-collab-notify/internal/infrastructure/sns"
)

type signaler interface {
	NotificationCreated(ctx context.Context, n domain.NotificationCreated) error
}

// logSignaler writes the signal to the log when no realtime backend is configured.
type logSignaler struct{}

func (logSignaler) NotificationCreated(_ context.Context, n domain.NotificationCreated) error {
	slog.Info(domain.SignalNotificationCreated, "notification_id", n.NotificationID,
		"recipient_user_id", deref(n.RecipientUserID), "company_id", deref(n.CompanyID))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// newSignaler builds the configured backend. The returned close func is never nil.
func newSignaler(ctx context.Context, cfg *config.Config) (signaler, func(), error) {
	switch cfg.SignalBackend {
	case config.SignalBackendRedis:
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisinfra.NewSignaler(client, cfg.RedisChannel), func() {
			if err := client.Close(); err != nil {
				log.Printf("WARN: closing redis client: %v", err)
			}
		}, nil
	case config.SignalBackendSNS:
		awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			return nil, nil, err
		}
		s, err := snsinfra.NewSignaler(snsinfra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.SNSTopicARN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.SignalBackendLog, "":
		return logSignaler{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown signal backend %q", cfg.SignalBackend)
	}
}
