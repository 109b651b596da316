package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-collab-notify/internal/config"
)

// tableSchema describes one table: string keys only, optional sort key,
// optional GSIs and an optional TTL attribute.
type tableSchema struct {
	name    string
	hash    string
	sort    string
	indexes []indexSchema
	ttl     string
}

type indexSchema struct {
	name string
	hash string
	sort string
}

// schemas lists the tables the notifier reads and writes, in creation order.
func schemas(tables config.DynamoTables) []tableSchema {
	return []tableSchema{
		{name: tables.Users, hash: "user_id", indexes: []indexSchema{{name: "email-index", hash: "email"}}},
		{name: tables.Companies, hash: "company_id"},
		{name: tables.Memberships, hash: "company_id", sort: "membership_id"},
		{name: tables.Invites, hash: "invite_id"},
		{
			name: tables.Notifications, hash: "notification_id",
			indexes: []indexSchema{{name: "recipient_user_id-created_at-index", hash: "recipient_user_id", sort: "created_at"}},
		},
		{name: tables.Dedup, hash: "dedup_key", ttl: "expires_at"},
	}
}

// Bootstrap creates every table and GSI the notifier needs if missing.
// Existing tables are left alone, so it runs on every startup.
func Bootstrap(ctx context.Context, client API, tables config.DynamoTables) {
	for _, s := range schemas(tables) {
		createTable(ctx, client, s.input())
		if s.ttl != "" {
			enableTTL(ctx, client, s.name, s.ttl)
		}
	}
}

func (s tableSchema) input() *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(s.name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema:   keySchema(s.hash, s.sort),
	}
	// Every key attribute must be declared exactly once across table and GSIs.
	seen := map[string]bool{}
	declare := func(attr string) {
		if attr == "" || seen[attr] {
			return
		}
		seen[attr] = true
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr), AttributeType: types.ScalarAttributeTypeS,
		})
	}
	declare(s.hash)
	declare(s.sort)
	for _, idx := range s.indexes {
		declare(idx.hash)
		declare(idx.sort)
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.name),
			KeySchema:  keySchema(idx.hash, idx.sort),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return in
}

func keySchema(hash, sort string) []types.KeySchemaElement {
	ks := []types.KeySchemaElement{{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash}}
	if sort != "" {
		ks = append(ks, types.KeySchemaElement{AttributeName: aws.String(sort), KeyType: types.KeyTypeRange})
	}
	return ks
}

func createTable(ctx context.Context, client API, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	var inUse *types.ResourceInUseException
	switch {
	case err == nil:
		slog.Info("created table", "table", aws.ToString(input.TableName))
	case errors.As(err, &inUse):
	default:
		slog.Warn("could not create table", "table", aws.ToString(input.TableName), "err", err)
	}
}

func enableTTL(ctx context.Context, client API, table, attr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(attr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", table, "err", err)
	}
}
