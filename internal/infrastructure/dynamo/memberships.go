package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-collab-notify/internal/domain"
)

// MembershipRepo reads the memberships table (PK company_id, SK membership_id).
type MembershipRepo struct {
	client    API
	tableName string
}

func NewMembershipRepo(client API, tableName string) *MembershipRepo {
	return &MembershipRepo{client: client, tableName: tableName}
}

// ListByCompany returns every membership of companyID, following pagination.
func (r *MembershipRepo) ListByCompany(ctx context.Context, companyID string) ([]domain.Membership, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("company_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: companyID},
		},
	})
	var memberships []domain.Membership
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query memberships of %s: %w", companyID, err)
		}
		var page []domain.Membership
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal memberships: %w", err)
		}
		memberships = append(memberships, page...)
	}
	return memberships, nil
}
