package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DedupRepo claims processed-event keys in the dedup table. Items expire
// through the table TTL on expires_at.
type DedupRepo struct {
	client    API
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDedupRepo(client API, tableName string, ttl time.Duration) *DedupRepo {
	return &DedupRepo{client: client, tableName: tableName, ttl: ttl, now: time.Now}
}

// Claim records key if it is new. It returns false when key was already claimed.
func (r *DedupRepo) Claim(ctx context.Context, key string) (bool, error) {
	now := r.now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		"claimed_at": now.Format(time.RFC3339),
		"expires_at": now.Add(r.ttl).Unix(),
	})
	if err != nil {
		return false, err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("dedup_key", key),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_not_exists(dedup_key)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim dedup key: %w", err)
	}
	return true, nil
}
