package dynamo

import (
	"context"

	"github.com/go-collab-notify/internal/domain"
)

// InviteRepo reads the invites table.
type InviteRepo struct {
	client    API
	tableName string
}

func NewInviteRepo(client API, tableName string) *InviteRepo {
	return &InviteRepo{client: client, tableName: tableName}
}

func (r *InviteRepo) Get(ctx context.Context, inviteID string) (*domain.Invite, error) {
	var inv domain.Invite
	if err := getItem(ctx, r.client, r.tableName, strKey("invite_id", inviteID), "invite "+inviteID, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
