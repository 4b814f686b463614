package deploy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// LambdaAPI is the part of *lambda.Client the invoker needs.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Invoker sends requests to one named function and waits for the answer.
type Invoker struct {
	client       LambdaAPI
	functionName string
	logger       *zap.Logger
}

func NewInvoker(client LambdaAPI, functionName string, logger *zap.Logger) *Invoker {
	return &Invoker{
		client:       client,
		functionName: functionName,
		logger:       logger,
	}
}

func (i *Invoker) FunctionName() string {
	return i.functionName
}

// Invoke serializes req, invokes the function with the RequestResponse
// invocation type and decodes the payload. Any failure is an *InvocationError.
func (i *Invoker) Invoke(ctx context.Context, req *Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &InvocationError{Op: OpSerialize, Err: err}
	}

	i.logger.Debug("invoking function",
		zap.String("function", i.functionName),
		zap.String("action", req.Action),
		zap.String("agent_id", req.AgentID),
		zap.Int("payload_bytes", len(payload)),
	)

	out, err := i.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.functionName),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			i.logger.Debug("lambda api error",
				zap.String("code", apiErr.ErrorCode()),
				zap.String("fault", apiErr.ErrorFault().String()),
			)
		}
		return nil, &InvocationError{Op: OpInvoke, Err: err}
	}

	result := &Result{
		StatusCode:      out.StatusCode,
		Payload:         out.Payload,
		FunctionError:   aws.ToString(out.FunctionError),
		ExecutedVersion: aws.ToString(out.ExecutedVersion),
	}
	if result.FunctionError != "" {
		i.logger.Warn("function returned an error",
			zap.String("function", i.functionName),
			zap.String("function_error", result.FunctionError),
		)
	}

	result.Response, err = DecodeFunctionResponse(out.Payload)
	if err != nil {
		return nil, &InvocationError{Op: OpDecode, Err: err}
	}

	i.logger.Debug("function answered",
		zap.Int32("status_code", result.StatusCode),
		zap.String("executed_version", result.ExecutedVersion),
	)
	return result, nil
}
