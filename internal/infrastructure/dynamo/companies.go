package dynamo

import (
	"context"

	"github.com/go-collab-notify/internal/domain"
)

// CompanyRepo reads the companies table.
type CompanyRepo struct {
	client    API
	tableName string
}

func NewCompanyRepo(client API, tableName string) *CompanyRepo {
	return &CompanyRepo{client: client, tableName: tableName}
}

func (r *CompanyRepo) Get(ctx context.Context, companyID string) (*domain.Company, error) {
	var c domain.Company
	if err := getItem(ctx, r.client, r.tableName, strKey("company_id", companyID), "company "+companyID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
