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

// pendingGrace delays TTL purge so a late submission still reads as expired.
const pendingGrace = time.Minute

type pendingItem struct {
	Email     string `dynamodbav:"email"`
	CodeHash  string `dynamodbav:"code_hash"`
	ProofID   string `dynamodbav:"proof_id,omitempty"`
	Attempts  int    `dynamodbav:"attempts"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	PurgeAt   int64  `dynamodbav:"purge_at"`
}

func toPendingItem(v *domain.PendingVerification) pendingItem {
	return pendingItem{
		Email:     v.Email,
		CodeHash:  v.CodeHash,
		ProofID:   v.ProofID,
		Attempts:  v.Attempts,
		ExpiresAt: v.ExpiresAt.Unix(),
		PurgeAt:   v.ExpiresAt.Add(pendingGrace).Unix(),
	}
}

func (it pendingItem) toDomain() *domain.PendingVerification {
	return &domain.PendingVerification{
		Email:     it.Email,
		CodeHash:  it.CodeHash,
		ProofID:   it.ProofID,
		Attempts:  it.Attempts,
		ExpiresAt: time.Unix(it.ExpiresAt, 0).UTC(),
	}
}

// PendingRepo stores one outstanding code per email.
// PK: email
type PendingRepo struct {
	client    API
	tableName string
}

func NewPendingRepo(client API, tableName string) *PendingRepo {
	return &PendingRepo{client: client, tableName: tableName}
}

func (r *PendingRepo) Put(ctx context.Context, v *domain.PendingVerification) error {
	item, err := attributevalue.MarshalMap(toPendingItem(v))
	if err != nil {
		return fmt.Errorf("marshal pending verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PendingRepo) Get(ctx context.Context, email string) (*domain.PendingVerification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending verification not found: %w", domain.ErrNotFound)
	}
	var it pendingItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return it.toDomain(), nil
}

func (r *PendingRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldEmail, email),
	})
	return err
}

func (r *PendingRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweepExpired(ctx, r.client, r.tableName, fieldEmail, now)
}
