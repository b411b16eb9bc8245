package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo emulates attribute_not_exists(ytkey) on an in-memory table.
type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	inputs []*dynamodb.PutItemInput
	err    error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	key := in.Item["ytkey"].(*types.AttributeValueMemberS).Value
	if _, exists := f.items[key]; exists && aws.ToString(in.ConditionExpression) != "" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func sampleRecord() *IndexRecord {
	return &IndexRecord{
		VideoID:       "dQw4w9WgXcQ",
		Downloaded:    true,
		Author:        "Rick Astley",
		LengthSeconds: 212,
		PublishDate:   FormatPublishDate(time.Date(2009, 10, 25, 6, 57, 33, 0, time.UTC)),
		ViewCount:     1500000000,
		SourceURI:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:         "Never Gonna Give You Up",
	}
}

func TestCreateIfAbsent_FirstWriteCreates(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "yt-index")

	created, err := s.CreateIfAbsent(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "yt-index", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(ytkey)", aws.ToString(in.ConditionExpression))

	item := fake.items["dQw4w9WgXcQ"]
	require.NotNil(t, item)
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, item["downloaded"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Rick Astley"}, item["ytauthor"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "212"}, item["video_length"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2009-10-25T06:57:33Z"}, item["publish_date"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1500000000"}, item["view_count"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, item["source_uri"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Never Gonna Give You Up"}, item["title"])
}

func TestCreateIfAbsent_SecondWriteIsAlreadyIndexed(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "yt-index")
	ctx := context.Background()

	created, err := s.CreateIfAbsent(ctx, sampleRecord())
	require.NoError(t, err)
	require.True(t, created)

	rec := sampleRecord()
	rec.Title = "changed title"
	created, err = s.CreateIfAbsent(ctx, rec)
	require.NoError(t, err, "condition failure must not surface as an error")
	assert.False(t, created)

	assert.Len(t, fake.items, 1)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Never Gonna Give You Up"}, fake.items["dQw4w9WgXcQ"]["title"])
}

func TestCreateIfAbsent_OtherErrorsPropagate(t *testing.T) {
	fake := newFakeDynamo()
	throttled := &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	fake.err = throttled
	s := NewDynamoStore(fake, "yt-index")

	created, err := s.CreateIfAbsent(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.False(t, created)

	var target *types.ProvisionedThroughputExceededException
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "ytkey=dQw4w9WgXcQ")
}

func TestCreateIfAbsent_EmptyKeyRejected(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "yt-index")

	_, err := s.CreateIfAbsent(context.Background(), &IndexRecord{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Empty(t, fake.inputs, "no write should be attempted")

	_, err = s.CreateIfAbsent(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
