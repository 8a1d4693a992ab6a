package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-auth-api/internal/domain"
)

// OTPRepo manages one-time passcode records.
// PK: otp_id. GSI identifier-index: PK identifier, SK purpose.
//
// The store has no transactions; the single-active-OTP invariant is kept by
// DeleteUnverified followed by Put. Two truly concurrent issuances for the
// same (identifier, purpose) can leave two live records for a short window,
// which is acceptable: verification matches one record at a time and the
// loser's code simply won't match.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetPending returns the unverified record for (identifier, purpose).
// Verified records are excluded, so a consumed code looks like it never existed.
func (r *OTPRepo) GetPending(ctx context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("identifier-index"),
		KeyConditionExpression: aws.String("identifier = :id AND purpose = :p"),
		FilterExpression:       aws.String("verified = :unverified"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":         &types.AttributeValueMemberS{Value: identifier},
			":p":          &types.AttributeValueMemberS{Value: string(purpose)},
			":unverified": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("pending otp not found: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteUnverified removes every unverified record for (identifier, purpose).
// Called at issuance time to enforce the single-active-OTP invariant.
func (r *OTPRepo) DeleteUnverified(ctx context.Context, identifier string, purpose domain.OTPPurpose) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("identifier-index"),
		KeyConditionExpression: aws.String("identifier = :id AND purpose = :p"),
		FilterExpression:       aws.String("verified = :unverified"),
		ProjectionExpression:   aws.String("otp_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":         &types.AttributeValueMemberS{Value: identifier},
			":p":          &types.AttributeValueMemberS{Value: string(purpose)},
			":unverified": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return err
	}
	for _, item := range out.Items {
		var rec struct {
			OTPID string `dynamodbav:"otp_id"`
		}
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return err
		}
		if err := r.Delete(ctx, rec.OTPID); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a partial update (attempt counter, verified flag) to a record.
func (r *OTPRepo) Update(ctx context.Context, otpID string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("otp_id", otpID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *OTPRepo) Delete(ctx context.Context, otpID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("otp_id", otpID),
	})
	return err
}

// HasVerified reports whether any verified record exists for the identifier,
// regardless of purpose. Used as a gate before allowing dependent actions.
func (r *OTPRepo) HasVerified(ctx context.Context, identifier string) (bool, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("identifier-index"),
		KeyConditionExpression: aws.String("identifier = :id"),
		FilterExpression:       aws.String("verified = :verified"),
		Select:                 types.SelectCount,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id":       &types.AttributeValueMemberS{Value: identifier},
			":verified": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return false, err
	}
	return out.Count > 0, nil
}
