package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-collab-notify/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	body    []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	f.channel = channel
	f.body, _ = message.([]byte)
	cmd := goredis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestSignaler_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSignaler(pub, "")
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	recipient := "u2"

	require.NoError(t, s.NotificationCreated(context.Background(), domain.NotificationCreated{
		NotificationID: "n1", RecipientUserID: &recipient,
	}))

	assert.Equal(t, "notifications.created", pub.channel)
	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.body, &got))
	assert.Equal(t, "notifications.created", got["name"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "n1", data["notificationId"])
	assert.Equal(t, "u2", data["recipientUserId"])
	assert.Nil(t, data["companyId"])
	assert.Equal(t, "2025-01-01T00:00:00Z", got["sent_at"])
}

func TestSignaler_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	err := NewSignaler(pub, "custom").NotificationCreated(context.Background(), domain.NotificationCreated{NotificationID: "n1"})
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, "custom", pub.channel)
}
