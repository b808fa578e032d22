package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item key layout: one partition per project, one item per process.
const (
	dynamoPKPrefix = "PROJECT#"
	dynamoSKPrefix = "PROCESS#"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore creates records as DynamoDB items.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// dynamoItem is the persisted shape. Key attributes are set separately.
type dynamoItem struct {
	ID               string  `dynamodbav:"id"`
	ProjectID        string  `dynamodbav:"projectId"`
	SessionID        string  `dynamodbav:"sessionId"`
	RequestedBy      string  `dynamodbav:"requestedBy,omitempty"`
	Name             string  `dynamodbav:"name"`
	Department       string  `dynamodbav:"department,omitempty"`
	CustomDepartment string  `dynamodbav:"customDepartment,omitempty"`
	TimeSpentHours   float64 `dynamodbav:"timeSpentHours"`
	Repetitive       int     `dynamodbav:"repetitiveScore,omitempty"`
	DataDriven       int     `dynamodbav:"dataDrivenScore,omitempty"`
	RuleBased        int     `dynamodbav:"ruleBasedScore,omitempty"`
	HighVolume       int     `dynamodbav:"highVolumeScore,omitempty"`
	Impact           int     `dynamodbav:"impactScore,omitempty"`
	Feasibility      int     `dynamodbav:"feasibilityScore,omitempty"`
	Notes            string  `dynamodbav:"notes,omitempty"`
	CreatedAt        int64   `dynamodbav:"createdAt"`
}

// OpenDynamo loads the shared AWS config and verifies the table exists.
// region overrides the configured region when set.
func OpenDynamo(ctx context.Context, table, region string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s := NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("dynamodb store ready", "table", table, "region", cfg.Region)
	return s, nil
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Create(ctx context.Context, rec core.ProcessRecord) (string, error) {
	row := newStoredRecord(ctx, rec)

	item, err := marshalDynamoItem(row)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", fmt.Errorf("duplicate key %s: %w", row.ID, err)
		}
		return "", fmt.Errorf("PutItem %s: %w", row.ID, err)
	}
	return row.ID, nil
}

// marshalDynamoItem converts a record into a DynamoDB item with PK and SK.
func marshalDynamoItem(row StoredRecord) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(dynamoItem{
		ID:               row.ID,
		ProjectID:        row.ProjectID,
		SessionID:        row.SessionID,
		RequestedBy:      row.RequestedBy,
		Name:             row.Name,
		Department:       row.Department,
		CustomDepartment: row.CustomDepartment,
		TimeSpentHours:   row.TimeSpentHours,
		Repetitive:       row.Repetitive,
		DataDriven:       row.DataDriven,
		RuleBased:        row.RuleBased,
		HighVolume:       row.HighVolume,
		Impact:           row.Impact,
		Feasibility:      row.Feasibility,
		Notes:            row.Notes,
		CreatedAt:        row.CreatedAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: dynamoPKPrefix + row.ProjectID}
	item["SK"] = &types.AttributeValueMemberS{Value: dynamoSKPrefix + row.ID}
	return item, nil
}

// Ping checks that the table exists and is reachable.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("dynamodb table %q not found: %w", s.tableName, err)
		}
		return networkError("describe table", err)
	}
	return nil
}

func (s *DynamoStore) Close() error { return nil }
