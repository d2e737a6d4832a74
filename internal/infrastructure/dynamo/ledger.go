package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// failurePrefix keys wrong-code counters in the ledger table apart from consumed proofs.
const failurePrefix = "fail#"

type consumedItem struct {
	ProofID   string `dynamodbav:"proof_id"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	PurgeAt   int64  `dynamodbav:"purge_at"`
}

// LedgerRepo records proof ids that have already been redeemed, and counts
// wrong codes per proof under a prefixed key.
// PK: proof_id
type LedgerRepo struct {
	client    API
	tableName string
}

func NewLedgerRepo(client API, tableName string) *LedgerRepo {
	return &LedgerRepo{client: client, tableName: tableName}
}

func (r *LedgerRepo) Consume(ctx context.Context, proofID string, expiresAt time.Time) error {
	item, err := attributevalue.MarshalMap(consumedItem{
		ProofID:   proofID,
		ExpiresAt: expiresAt.Unix(),
		PurgeAt:   expiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal consumed proof: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *LedgerRepo) Consumed(ctx context.Context, proofID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldProofID, proofID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

// RecordFailure atomically increments the wrong-code counter for a proof and
// returns the new count.
func (r *LedgerRepo) RecordFailure(ctx context.Context, proofID string, expiresAt time.Time) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(fieldProofID, failurePrefix+proofID),
		UpdateExpression: aws.String("ADD #attempts :one SET #exp = :exp, #purge = :purge"),
		ExpressionAttributeNames: map[string]string{
			"#attempts": fieldAttempts,
			"#exp":      fieldExpiresAt,
			"#purge":    fieldPurgeAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":exp":   unixValue(expiresAt),
			":purge": unixValue(expiresAt),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	attr, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("update proof failures: missing %s", fieldAttempts)
	}
	n, err := strconv.Atoi(attr.Value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", fieldAttempts, err)
	}
	return n, nil
}

func (r *LedgerRepo) Sweep(ctx context.Context, now time.Time) (int, error) {
	return sweepExpired(ctx, r.client, r.tableName, fieldProofID, now)
}
