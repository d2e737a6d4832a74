package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

type sessionItem struct {
	Token       string `dynamodbav:"token"`
	Email       string `dynamodbav:"email"`
	PremiumHint bool   `dynamodbav:"premium_hint"`
	CreatedAt   string `dynamodbav:"created_at"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	PurgeAt     int64  `dynamodbav:"purge_at"`
}

// SessionRepo provides typed DynamoDB operations for opaque sessions.
// PK: token
type SessionRepo struct {
	client    API
	tableName string
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(sessionItem{
		Token:       s.Token,
		Email:       s.Email,
		PremiumHint: s.PremiumHint,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:   s.ExpiresAt.Unix(),
		PurgeAt:     s.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldToken, token),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var it sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	created, _ := time.Parse(time.RFC3339, it.CreatedAt)
	return &domain.Session{
		Token:       it.Token,
		Email:       it.Email,
		PremiumHint: it.PremiumHint,
		CreatedAt:   created,
		ExpiresAt:   time.Unix(it.ExpiresAt, 0).UTC(),
	}, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldToken, token),
	})
	return err
}

func (r *SessionRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweepExpired(ctx, r.client, r.tableName, fieldToken, now)
}
