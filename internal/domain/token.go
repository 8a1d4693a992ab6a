package domain

import "time"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenRecord makes a self-verifying JWT revocable: a token authenticates only
// while its record is present. Revocation is deletion.
// PK: token. GSI: user_id-index. ExpiresAt doubles as the DynamoDB TTL so
// records are reaped when the signed expiry passes anyway.
type TokenRecord struct {
	Token     string    `dynamodbav:"token" json:"-"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	Type      TokenType `dynamodbav:"type" json:"type"`
	ExpiresAt int64     `dynamodbav:"expires_at" json:"expires_at"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}
