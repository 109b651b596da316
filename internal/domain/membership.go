package domain

import "time"

// Membership links a user to a company. PK: company_id, SK: membership_id.
type Membership struct {
	CompanyID    string    `json:"company_id" dynamodbav:"company_id"`
	MembershipID string    `json:"id" dynamodbav:"membership_id"`
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	Role         string    `json:"role" dynamodbav:"role"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}
