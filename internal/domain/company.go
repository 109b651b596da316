package domain

import "time"

type Company struct {
	CompanyID   string    `json:"id" dynamodbav:"company_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	Description string    `json:"description,omitempty" dynamodbav:"description"`
	LogoURL     string    `json:"logo_url,omitempty" dynamodbav:"logo_url"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}
