package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10, cfg.AMQPConnectAttempts)
	assert.Equal(t, 3*time.Second, cfg.AMQPConnectDelay)
	assert.Equal(t, 50, cfg.AMQPPrefetch)
	assert.Equal(t, "invites", cfg.Queues.Invites)
	assert.Equal(t, "events", cfg.Queues.Events)
	assert.Equal(t, "events.invites", cfg.Queues.EventsInvites)
	assert.Equal(t, "events.members", cfg.Queues.EventsMembers)
	assert.Equal(t, SignalBackendLog, cfg.SignalBackend)
	assert.False(t, cfg.DedupEnabled)
}

func TestQueues_DLQ(t *testing.T) {
	q := Queues{DLQPrefix: "dlq."}
	assert.Equal(t, "dlq.events.members", q.DLQ("events.members"))
}

func TestLoad_FrontendBaseURL_PrefersAppKey(t *testing.T) {
	t.Setenv("FRONTEND_BASE_URL", "https://fallback.example.com")
	assert.Equal(t, "https://fallback.example.com", Load().FrontendBaseURL)

	t.Setenv("APP_FRONTEND_BASE_URL", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", Load().FrontendBaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AMQP_CONNECT_ATTEMPTS", "3")
	t.Setenv("AMQP_CONNECT_DELAY_MS", "250")
	t.Setenv("NOTIFICATION_DEDUP", "true")
	t.Setenv("SIGNAL_BACKEND", "Redis")
	t.Setenv("AMQP_PREFETCH", "not-a-number")

	cfg := Load()
	assert.Equal(t, 3, cfg.AMQPConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.AMQPConnectDelay)
	assert.True(t, cfg.DedupEnabled)
	assert.Equal(t, SignalBackendRedis, cfg.SignalBackend)
	assert.Equal(t, 50, cfg.AMQPPrefetch)
}
