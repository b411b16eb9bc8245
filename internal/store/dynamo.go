package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// keyAttribute is the partition key of the index table.
const keyAttribute = "ytkey"

// createIfAbsentCondition rejects the write when the key already exists.
const createIfAbsentCondition = "attribute_not_exists(" + keyAttribute + ")"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore implements RecordStore on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ RecordStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// TableName returns the table this store writes to.
func (s *DynamoStore) TableName() string {
	return s.tableName
}

func (s *DynamoStore) CreateIfAbsent(ctx context.Context, rec *IndexRecord) (bool, error) {
	if rec == nil || rec.VideoID == "" {
		return false, fmt.Errorf("%w: empty %s", ErrInvalidRecord, keyAttribute)
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("%w: marshal %s: %v", ErrInvalidRecord, rec.VideoID, err)
	}

	start := time.Now()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(createIfAbsentCondition),
	})
	duration := time.Since(start)

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			log.Debug().Str("videoId", rec.VideoID).Dur("duration", duration).Msg("Index record already exists")
			return false, nil
		}
		return false, fmt.Errorf("PutItem %s=%s: %w", keyAttribute, rec.VideoID, err)
	}

	log.Debug().Str("videoId", rec.VideoID).Dur("duration", duration).Msg("Index record created")
	return true, nil
}
