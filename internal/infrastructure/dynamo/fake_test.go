package dynamo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the handful of calls the repos make.
// Each table has a single string hash key.
type fakeDynamo struct {
	mu      sync.Mutex
	keys    map[string]string
	items   map[string]map[string]map[string]types.AttributeValue
	created []string
	ttl     map[string]string
	failPut error
	lastGet *dynamodb.GetItemInput
}

func newFakeDynamo(tables map[string]string) *fakeDynamo {
	f := &fakeDynamo{
		keys:  tables,
		items: make(map[string]map[string]map[string]types.AttributeValue),
		ttl:   make(map[string]string),
	}
	for t := range tables {
		f.items[t] = make(map[string]map[string]types.AttributeValue)
	}
	return f
}

func keyString(key map[string]types.AttributeValue) string {
	for _, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

func numberOf(av types.AttributeValue) int64 {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseInt(n.Value, 10, 64)
	return v
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGet = in
	item, ok := f.items[aws.ToString(in.TableName)][keyString(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k := in.Item[f.keys[table]].(*types.AttributeValueMemberS).Value
	f.items[table][k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k := keyString(in.Key)
	item, ok := f.items[table][k]
	if !ok {
		item = copyItem(in.Key)
	}
	expr := aws.ToString(in.UpdateExpression)
	if strings.HasPrefix(expr, "ADD ") {
		applyAddSet(item, expr, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	} else {
		for nameKey, field := range in.ExpressionAttributeNames {
			valueKey := ":v" + nameKey[2:]
			item[field] = in.ExpressionAttributeValues[valueKey]
		}
	}
	f.items[table][k] = item
	out := &dynamodb.UpdateItemOutput{}
	if in.ReturnValues != "" && in.ReturnValues != types.ReturnValueNone {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

// applyAddSet handles "ADD #n :v SET #a = :a, #b = :b" with numeric ADD.
func applyAddSet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	addPart, setPart, _ := strings.Cut(strings.TrimPrefix(expr, "ADD "), " SET ")
	if fields := strings.Fields(addPart); len(fields) == 2 {
		name := names[fields[0]]
		sum := numberOf(item[name]) + numberOf(values[fields[1]])
		item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(sum, 10)}
	}
	for _, assign := range strings.Split(setPart, ",") {
		lhs, rhs, ok := strings.Cut(assign, "=")
		if !ok {
			continue
		}
		item[names[strings.TrimSpace(lhs)]] = values[strings.TrimSpace(rhs)]
	}
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	k := keyString(in.Key)
	item, ok := f.items[table][k]
	if in.ConditionExpression != nil {
		if !ok || numberOf(item[fieldExpiresAt]) >= numberOf(in.ExpressionAttributeValues[":now"]) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	delete(f.items[table], k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := aws.ToString(in.TableName)
	cutoff := numberOf(in.ExpressionAttributeValues[":now"])
	keyName := in.ExpressionAttributeNames["#key"]
	var out []map[string]types.AttributeValue
	for _, item := range f.items[table] {
		if numberOf(item[fieldExpiresAt]) < cutoff {
			out = append(out, map[string]types.AttributeValue{keyName: item[keyName]})
		}
	}
	return &dynamodb.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	for _, c := range f.created {
		if c == name {
			return nil, &types.ResourceInUseException{Message: aws.String("exists")}
		}
	}
	f.created = append(f.created, name)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) UpdateTimeToLive(_ context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.TimeToLiveSpecification == nil {
		return nil, errors.New("missing ttl settings")
	}
	f.ttl[aws.ToString(in.TableName)] = aws.ToString(in.TimeToLiveSpecification.AttributeName)
	return &dynamodb.UpdateTimeToLiveOutput{}, nil
}
