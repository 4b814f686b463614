package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deployments"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockLambdaAPI struct {
	mock.Mock
}

func (m *MockLambdaAPI) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lambda.InvokeOutput), args.Error(1)
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, source string) (deploy.AgentConfig, error) {
	args := m.Called(ctx, source)
	return args.Get(0).(deploy.AgentConfig), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, rec deployments.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

var fixedNow = time.Unix(1700000000, 0)

func newTestApp(client deploy.LambdaAPI, loader Loader, out *bytes.Buffer) *app {
	return &app{
		invoker: deploy.NewInvoker(client, "shttempo-deploy-agent", zap.NewNop()),
		loader:  loader,
		logger:  zap.NewNop(),
		out:     out,
		now:     func() time.Time { return fixedNow },
	}
}

func defaultLoader() *MockLoader {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything, "").Return(deploy.DefaultAgentConfig(), nil)
	return loader
}

func TestRun_Success(t *testing.T) {
	client := new(MockLambdaAPI)
	client.On("Invoke", mock.Anything, mock.Anything).Return(&lambda.InvokeOutput{
		StatusCode: 200,
		Payload:    []byte(`{"statusCode":200, "body":"{\"serviceUrl\":\"http://x\",\"message\":\"ok\"}"}`),
	}, nil)

	var out bytes.Buffer
	newTestApp(client, defaultLoader(), &out).run(context.Background(), options{action: deploy.ActionDeploy})

	text := out.String()
	assert.Contains(t, text, "✅ Lambda execution successful!")
	assert.Contains(t, text, "✅ Agent deployment workflow completed!")
	assert.Contains(t, text, "ALB URL: http://x")
	assert.Contains(t, text, "Message: ok")
}

func TestRun_InvokeErrorIsPrinted(t *testing.T) {
	client := new(MockLambdaAPI)
	client.On("Invoke", mock.Anything, mock.Anything).Return(nil, errors.New("no credentials"))

	var out bytes.Buffer
	assert.NotPanics(t, func() {
		newTestApp(client, defaultLoader(), &out).run(context.Background(), options{action: deploy.ActionDeploy})
	})

	assert.Equal(t, "❌ Error invoking Lambda: invoke: no credentials\n", out.String())
}

func TestRun_ConfigErrorIsPrinted(t *testing.T) {
	client := new(MockLambdaAPI)
	loader := new(MockLoader)
	loader.On("Load", mock.Anything, "s3://missing/agent.json").Return(deploy.AgentConfig{}, errors.New("NoSuchKey"))

	var out bytes.Buffer
	newTestApp(client, loader, &out).run(context.Background(), options{
		action:       deploy.ActionDeploy,
		configSource: "s3://missing/agent.json",
	})

	assert.Equal(t, "❌ Error invoking Lambda: load config: NoSuchKey\n", out.String())
	client.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestRun_AgentIDFromClock(t *testing.T) {
	client := new(MockLambdaAPI)
	client.On("Invoke", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return strings.Contains(string(in.Payload), `"agentId":"test-manual-deploy-1700000000"`)
	})).Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"statusCode":200}`)}, nil)

	var out bytes.Buffer
	newTestApp(client, defaultLoader(), &out).run(context.Background(), options{action: deploy.ActionDeploy})

	client.AssertExpectations(t)
}

func TestRun_StopSkipsConfig(t *testing.T) {
	client := new(MockLambdaAPI)
	loader := new(MockLoader)
	client.On("Invoke", mock.Anything, mock.MatchedBy(func(in *lambda.InvokeInput) bool {
		return !strings.Contains(string(in.Payload), `"config"`)
	})).Return(&lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"statusCode":200,"body":"{\"ok\":true}"}`)}, nil)

	var out bytes.Buffer
	newTestApp(client, loader, &out).run(context.Background(), options{action: deploy.ActionStop, agentID: "agent-1"})

	assert.Contains(t, out.String(), "✅ Agent deployment workflow completed!")
	loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestRun_RecordsOutcome(t *testing.T) {
	client := new(MockLambdaAPI)
	client.On("Invoke", mock.Anything, mock.Anything).Return(&lambda.InvokeOutput{
		StatusCode: 200,
		Payload:    []byte(`{"statusCode":200,"body":"{\"serviceUrl\":\"http://x\"}"}`),
	}, nil)
	recorder := new(MockRecorder)
	recorder.On("Record", mock.Anything, mock.MatchedBy(func(rec deployments.Record) bool {
		return rec.AgentID == "test-manual-deploy-1700000000" &&
			rec.Succeeded &&
			rec.ServiceURL == "http://x" &&
			rec.FunctionName == "shttempo-deploy-agent"
	})).Return(nil)

	var out bytes.Buffer
	a := newTestApp(client, defaultLoader(), &out)
	a.recorder = recorder
	a.run(context.Background(), options{action: deploy.ActionDeploy})

	recorder.AssertExpectations(t)
}

func TestRun_RecordFailureIsNotAnInvocationFailure(t *testing.T) {
	client := new(MockLambdaAPI)
	client.On("Invoke", mock.Anything, mock.Anything).Return(&lambda.InvokeOutput{
		StatusCode: 200,
		Payload:    []byte(`{"statusCode":200}`),
	}, nil)
	recorder := new(MockRecorder)
	recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("table not found"))

	var out bytes.Buffer
	a := newTestApp(client, defaultLoader(), &out)
	a.recorder = recorder
	a.run(context.Background(), options{action: deploy.ActionDeploy})

	assert.NotContains(t, out.String(), "❌")
	recorder.AssertExpectations(t)
}

func TestParseFlags(t *testing.T) {
	t.Setenv("DEPLOY_AGENT_LAMBDA", "")
	t.Setenv("DEPLOY_AGENT_REGION", "")

	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, deploy.ActionDeploy, opts.action)
	assert.Equal(t, "shttempo-deploy-agent", opts.functionName)
	assert.Equal(t, "us-east-1", opts.region)
	assert.Zero(t, opts.timeout)

	opts, err = parseFlags([]string{"-action", "stop", "-agent-id", "agent-1", "-timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, deploy.ActionStop, opts.action)
	assert.Equal(t, "agent-1", opts.agentID)
	assert.Equal(t, 30*time.Second, opts.timeout)
}

// The real SDK client against the local stub: serialization, signing,
// transport and decoding all take part.
func TestRun_AgainstStub(t *testing.T) {
	handler := stub.NewHandler("http://alb.test", "us-east-1", zap.NewNop())
	srv := httptest.NewServer(stub.NewRouter("shttempo-deploy-agent", handler, zap.NewNop()))
	defer srv.Close()

	client := lambda.New(lambda.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "SECRET", ""),
		HTTPClient:   srv.Client(),
	})

	var out bytes.Buffer
	newTestApp(client, defaultLoader(), &out).run(context.Background(), options{action: deploy.ActionDeploy})

	text := out.String()
	assert.Contains(t, text, "Lambda Response:")
	assert.Contains(t, text, "✅ Agent deployment workflow completed!")
	assert.Contains(t, text, "ALB URL: http://alb.test/agents/test-manual-deploy-1700000000")
	assert.Contains(t, text, "Message: Agent test-manual-deploy-1700000000 deployed")
}

func TestRun_AgainstStubUnknownFunction(t *testing.T) {
	handler := stub.NewHandler("http://alb.test", "us-east-1", zap.NewNop())
	srv := httptest.NewServer(stub.NewRouter("another-function", handler, zap.NewNop()))
	defer srv.Close()

	client := lambda.New(lambda.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "SECRET", ""),
		HTTPClient:   srv.Client(),
	})

	var out bytes.Buffer
	newTestApp(client, defaultLoader(), &out).run(context.Background(), options{action: deploy.ActionDeploy})

	assert.True(t, strings.HasPrefix(out.String(), "❌ Error invoking Lambda: invoke: "), out.String())
	assert.Contains(t, out.String(), "ResourceNotFoundException")
}
