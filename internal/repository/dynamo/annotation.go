// Package dynamo stores annotations as items in a DynamoDB table keyed by
// PK/SK, one item per report row.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/wbr-monitor/internal/domain"
)

const partitionKey = "WBR#annotations"

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type annotationItem struct {
	PK                  string    `dynamodbav:"PK"`
	SK                  string    `dynamodbav:"SK"`
	RootCauseHypothesis string    `dynamodbav:"root_cause_hypothesis"`
	PathToGreen         string    `dynamodbav:"path_to_green"`
	UpdatedAt           time.Time `dynamodbav:"updated_at"`
}

// AnnotationRepo implements narrative.Repository on DynamoDB.
type AnnotationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

// NewAnnotationRepo wraps an existing client.
func NewAnnotationRepo(client API, tableName string) *AnnotationRepo {
	return &AnnotationRepo{client: client, tableName: tableName, now: time.Now}
}

// NewClient loads the default AWS config for region (and optional shared
// profile) and returns a repository on tableName.
func NewClient(ctx context.Context, tableName, region, profile string) (*AnnotationRepo, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewAnnotationRepo(dynamodb.NewFromConfig(cfg), tableName), nil
}

func (r *AnnotationRepo) itemKey(id domain.RowID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey},
		"SK": &types.AttributeValueMemberS{Value: id.Key()},
	}
}

func (r *AnnotationRepo) Get(ctx context.Context, id domain.RowID) (domain.Annotation, bool, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.itemKey(id),
	})
	if err != nil {
		return domain.Annotation{}, false, fmt.Errorf("getting annotation from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return domain.Annotation{}, false, nil
	}
	var item annotationItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return domain.Annotation{}, false, fmt.Errorf("unmarshaling annotation: %w", err)
	}
	return domain.Annotation{RootCauseHypothesis: item.RootCauseHypothesis, PathToGreen: item.PathToGreen}, true, nil
}

func (r *AnnotationRepo) Put(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	av, err := attributevalue.MarshalMap(annotationItem{
		PK:                  partitionKey,
		SK:                  id.Key(),
		RootCauseHypothesis: a.RootCauseHypothesis,
		PathToGreen:         a.PathToGreen,
		UpdatedAt:           r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling annotation: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting annotation to DynamoDB: %w", err)
	}
	return nil
}

func (r *AnnotationRepo) query(ctx context.Context) ([]annotationItem, error) {
	var (
		items []annotationItem
		start map[string]types.AttributeValue
	)
	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: partitionKey},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("querying DynamoDB: %w", err)
		}
		var page []annotationItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshaling annotations: %w", err)
		}
		items = append(items, page...)
		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		start = result.LastEvaluatedKey
	}
}

func (r *AnnotationRepo) All(ctx context.Context) (map[domain.RowID]domain.Annotation, error) {
	items, err := r.query(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.RowID]domain.Annotation, len(items))
	for _, item := range items {
		id, err := domain.RowIDFromKey(item.SK)
		if err != nil {
			return nil, err
		}
		out[id] = domain.Annotation{RootCauseHypothesis: item.RootCauseHypothesis, PathToGreen: item.PathToGreen}
	}
	return out, nil
}

func (r *AnnotationRepo) Clear(ctx context.Context) error {
	items, err := r.query(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: item.PK},
				"SK": &types.AttributeValueMemberS{Value: item.SK},
			},
		})
		if err != nil {
			return fmt.Errorf("deleting annotation %s: %w", item.SK, err)
		}
	}
	return nil
}
