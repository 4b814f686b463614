// Package deployments keeps a history of deploy-agent invocations in DynamoDB.
package deployments

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
)

type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Record is one invocation. agent_id is the hash key, invoked_at the range key.
type Record struct {
	AgentID         string   `dynamodbav:"agent_id"`
	InvokedAt       string   `dynamodbav:"invoked_at"`
	Action          string   `dynamodbav:"action"`
	TenantID        string   `dynamodbav:"tenant_id,omitempty"`
	FunctionName    string   `dynamodbav:"function_name"`
	StatusCode      int32    `dynamodbav:"status_code,omitempty"`
	InnerStatusCode *float64 `dynamodbav:"inner_status_code,omitempty"`
	Succeeded       bool     `dynamodbav:"succeeded"`
	ServiceURL      string   `dynamodbav:"service_url,omitempty"`
	Message         string   `dynamodbav:"message,omitempty"`
	Error           string   `dynamodbav:"error,omitempty"`
}

// NewRecord describes one invocation of req. outcome and invokeErr may be nil.
func NewRecord(req *deploy.Request, functionName string, outcome *deploy.Outcome, invokeErr error, invokedAt time.Time) Record {
	rec := Record{
		AgentID:      req.AgentID,
		InvokedAt:    invokedAt.UTC().Format(time.RFC3339Nano),
		Action:       req.Action,
		TenantID:     req.TenantID,
		FunctionName: functionName,
	}
	if outcome != nil {
		rec.StatusCode = outcome.StatusCode
		rec.InnerStatusCode = outcome.InnerStatusCode
		rec.Succeeded = outcome.Succeeded && invokeErr == nil
		rec.ServiceURL = outcome.ServiceURL
		rec.Message = outcome.Message
	}
	if invokeErr != nil {
		rec.Error = invokeErr.Error()
	}
	return rec
}

type Recorder struct {
	client    DynamoDBAPI
	tableName string
}

func NewRecorder(client DynamoDBAPI, tableName string) *Recorder {
	return &Recorder{
		client:    client,
		tableName: tableName,
	}
}

func (r *Recorder) Record(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put deployment record: %w", err)
	}
	return nil
}
