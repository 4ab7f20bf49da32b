package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	portalconfig "github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/database/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
)

// employeeItem is the DynamoDB shape of an employee record.
type employeeItem struct {
	ID         string `dynamodbav:"id"`
	Name       string `dynamodbav:"name"`
	Email      string `dynamodbav:"email"`
	Department string `dynamodbav:"department,omitempty"`
	Position   string `dynamodbav:"position,omitempty"`
	StartDate  string `dynamodbav:"startDate,omitempty"`
	Status     string `dynamodbav:"status,omitempty"`
	Progress   int    `dynamodbav:"progress"`
	CreatedAt  string `dynamodbav:"createdAt"` // RFC 3339
}

func toEmployeeItem(e model.Employee) employeeItem {
	return employeeItem{
		ID:         e.Id,
		Name:       e.Name,
		Email:      e.Email,
		Department: e.Department,
		Position:   e.Position,
		StartDate:  e.StartDate,
		Status:     string(e.Status),
		Progress:   e.Progress,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toEmployee(item employeeItem) model.Employee {
	// records written by other clients may lack a timestamp
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	return model.Employee{
		Id:         item.ID,
		Name:       item.Name,
		Email:      item.Email,
		Department: item.Department,
		Position:   item.Position,
		StartDate:  item.StartDate,
		Status:     model.Status(item.Status),
		Progress:   item.Progress,
		CreatedAt:  createdAt,
	}
}

// dynamoAPI is the part of the DynamoDB client the gateway uses.
type dynamoAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoRecordGateway keeps records in a DynamoDB table keyed by "id".
type DynamoRecordGateway struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoRecordGateway loads AWS configuration from the environment. When
// an endpoint is configured (DynamoDB Local) static credentials are used.
func NewDynamoRecordGateway(ctx context.Context, c portalconfig.DynamoDBConfig) (*DynamoRecordGateway, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})
	return newDynamoRecordGateway(client, c.Table), nil
}

func newDynamoRecordGateway(client dynamoAPI, table string) *DynamoRecordGateway {
	return &DynamoRecordGateway{client: client, tableName: table, now: time.Now}
}

func (g *DynamoRecordGateway) List(ctx context.Context) ([]model.Employee, error) {
	records := make([]model.Employee, 0)
	p := dynamodb.NewScanPaginator(g.client, &dynamodb.ScanInput{
		TableName: aws.String(g.tableName),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classifyAWSError("list", err)
		}
		var items []employeeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, &StoreError{Kind: StoreUnknown, Op: "list", Err: err}
		}
		for _, item := range items {
			records = append(records, toEmployee(item))
		}
	}
	return records, nil
}

func (g *DynamoRecordGateway) Create(ctx context.Context, fields EmployeeFields) (string, error) {
	e := newEmployee(fields, g.now())
	av, err := attributevalue.MarshalMap(toEmployeeItem(e))
	if err != nil {
		return "", &StoreError{Kind: StoreUnknown, Op: "create", Err: err}
	}

	cond := expression.AttributeNotExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", &StoreError{Kind: StoreUnknown, Op: "create", Err: err}
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(g.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return "", classifyAWSError("create", err)
	}
	return e.Id, nil
}

func (g *DynamoRecordGateway) Delete(ctx context.Context, id string) error {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id})
	if err != nil {
		return &StoreError{Kind: StoreUnknown, Op: "delete", Err: err}
	}
	_, err = g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key:       key,
	})
	if err != nil {
		return classifyAWSError("delete", err)
	}
	return nil
}

func classifyAWSError(op string, err error) *StoreError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException", "MissingAuthenticationTokenException":
			return &StoreError{Kind: StorePermission, Op: op, Err: err}
		case "RequestTimeout", "ServiceUnavailable", "ProvisionedThroughputExceededException", "ThrottlingException":
			return &StoreError{Kind: StoreNetwork, Op: op, Err: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &StoreError{Kind: StoreNetwork, Op: op, Err: err}
	}
	return &StoreError{Kind: StoreUnknown, Op: op, Err: err}
}
