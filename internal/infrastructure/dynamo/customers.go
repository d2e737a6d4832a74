package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

// CustomerRepo caches the billing customer id for an email.
// PK: email
type CustomerRepo struct {
	client    API
	tableName string
}

func NewCustomerRepo(client API, tableName string) *CustomerRepo {
	return &CustomerRepo{client: client, tableName: tableName}
}

func (r *CustomerRepo) GetCustomerID(ctx context.Context, email string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  strKey(fieldEmail, email),
		ProjectionExpression: aws.String("#cid"),
		ExpressionAttributeNames: map[string]string{
			"#cid": fieldCustomerID,
		},
	})
	if err != nil {
		return "", err
	}
	attr, ok := out.Item[fieldCustomerID].(*types.AttributeValueMemberS)
	if !ok || attr.Value == "" {
		return "", fmt.Errorf("customer not found: %w", domain.ErrNotFound)
	}
	return attr.Value, nil
}

func (r *CustomerRepo) PutCustomerID(ctx context.Context, email, customerID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldCustomerID: customerID,
		fieldUpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
