package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chatrelay/pkg/bus"
)

const skPrefixExchange = "EXCHANGE#"

// dynamodbAPI is the minimal DynamoDB interface required by dynamoSink.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dynamoSink struct {
	api       dynamodbAPI
	tableName string
}

func newDynamoSink(ctx context.Context, table, region string) (Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}

	return newDynamoSinkWithAPI(dynamodb.NewFromConfig(cfg), table)
}

func newDynamoSinkWithAPI(api dynamodbAPI, table string) (*dynamoSink, error) {
	if api == nil {
		return nil, errors.New("store: dynamodb api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("store: table name must not be empty")
	}

	return &dynamoSink{api: api, tableName: table}, nil
}

func (s *dynamoSink) Name() string  { return "dynamodb" }
func (s *dynamoSink) Enabled() bool { return true }

func (s *dynamoSink) Record(ctx context.Context, record bus.ExchangeRecord) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      recordToItem(record),
	})
	if err != nil {
		return fmt.Errorf("store: put exchange: %w", err)
	}

	return nil
}

func (s *dynamoSink) Close(context.Context) error { return nil }

// chatPK returns the partition key grouping all exchanges of one chat.
func chatPK(chatID string) string {
	return "CHAT#" + chatID
}

// exchangeSK sorts exchanges chronologically; the id keeps same-instant
// duplicates distinct.
func exchangeSK(ts time.Time, id string) string {
	return skPrefixExchange + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

func recordToItem(record bus.ExchangeRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: chatPK(record.ChatID)},
		"SK":            &types.AttributeValueMemberS{Value: exchangeSK(record.Timestamp, record.ID)},
		"id":            &types.AttributeValueMemberS{Value: record.ID},
		"chat_id":       &types.AttributeValueMemberS{Value: record.ChatID},
		"sender_id":     &types.AttributeValueMemberS{Value: record.SenderID},
		"inbound_text":  &types.AttributeValueMemberS{Value: record.InboundText},
		"outbound_text": &types.AttributeValueMemberS{Value: record.OutboundText},
		"timestamp":     &types.AttributeValueMemberS{Value: record.Timestamp.UTC().Format(time.RFC3339Nano)},
		"created_at":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", record.Timestamp.Unix())},
	}
}
