package domain

import "time"

type Invite struct {
	InviteID  string    `json:"id" dynamodbav:"invite_id"`
	CompanyID string    `json:"company_id" dynamodbav:"company_id"`
	Email     string    `json:"email" dynamodbav:"email"`
	Token     string    `json:"-" dynamodbav:"token"`
	Role      string    `json:"role" dynamodbav:"role"`
	InviterID string    `json:"inviter_id" dynamodbav:"inviter_id"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
