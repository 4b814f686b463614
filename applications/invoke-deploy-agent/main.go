// deploy-agent Lambda関数を手動で呼び出し、結果を表示するツール

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/agentconfig"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/buildconfig"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/config"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deployments"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	action       string
	agentID      string
	tenantID     string
	functionName string
	region       string
	endpoint     string
	configSource string
	recordTable  string
	timeout      time.Duration
	version      bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("invoke-deploy-agent", flag.ContinueOnError)
	fs.StringVar(&opts.action, "action", deploy.ActionDeploy, "action to send (deploy or stop)")
	fs.StringVar(&opts.agentID, "agent-id", "", "agent ID (default test-manual-deploy-<unix seconds>)")
	fs.StringVar(&opts.tenantID, "tenant-id", config.TenantID(), "tenant ID sent with the request")
	fs.StringVar(&opts.functionName, "function", config.FunctionName(), "deploy-agent function name")
	fs.StringVar(&opts.region, "region", config.Region(), "region of the deploy-agent function")
	fs.StringVar(&opts.endpoint, "endpoint", config.LambdaEndpoint(), "Lambda endpoint override, e.g. http://localhost:9001")
	fs.StringVar(&opts.configSource, "config", config.AgentConfigSource(), "agent config: file, s3://bucket/key or appconfig://app/env/profile")
	fs.StringVar(&opts.recordTable, "record-table", config.DeploymentsTable(), "DynamoDB table to record the invocation in")
	fs.DurationVar(&opts.timeout, "timeout", 0, "invocation timeout (0 keeps the SDK default)")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	err := fs.Parse(args)
	return opts, err
}

// Loader resolves the agent config sent with a deploy.
type Loader interface {
	Load(ctx context.Context, source string) (deploy.AgentConfig, error)
}

// Recorder stores the outcome of an invocation.
type Recorder interface {
	Record(ctx context.Context, rec deployments.Record) error
}

type app struct {
	invoker  *deploy.Invoker
	loader   Loader
	recorder Recorder
	logger   *zap.Logger
	out      io.Writer
	now      func() time.Time
}

// run invokes the function once and prints the result. Every failure ends up
// as one printed line; nothing is returned to the caller.
func (a *app) run(ctx context.Context, opts options) {
	invokedAt := a.now()
	req, outcome, err := a.invoke(ctx, opts, invokedAt)
	if err != nil {
		fmt.Fprintf(a.out, "❌ Error invoking Lambda: %v\n", err)
		a.logger.Debug("invocation failed", zap.Error(err))
	}

	if a.recorder == nil || req == nil {
		return
	}
	rec := deployments.NewRecord(req, a.invoker.FunctionName(), outcome, err, invokedAt)
	if recErr := a.recorder.Record(ctx, rec); recErr != nil {
		a.logger.Warn("failed to record invocation", zap.Error(recErr))
		return
	}
	a.logger.Info("recorded invocation", zap.String("agent_id", rec.AgentID), zap.String("invoked_at", rec.InvokedAt))
}

func (a *app) invoke(ctx context.Context, opts options, invokedAt time.Time) (*deploy.Request, *deploy.Outcome, error) {
	agentID := opts.agentID
	if agentID == "" {
		agentID = deploy.NewAgentID(invokedAt)
	}

	var cfg deploy.AgentConfig
	if opts.action != deploy.ActionStop {
		var err error
		cfg, err = a.loader.Load(ctx, opts.configSource)
		if err != nil {
			return nil, nil, &deploy.InvocationError{Op: deploy.OpLoadConfig, Err: err}
		}
	}
	req := deploy.NewRequest(opts.action, agentID, opts.tenantID, cfg)

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	result, err := a.invoker.Invoke(ctx, req)
	if err != nil {
		return req, nil, err
	}

	outcome, err := deploy.Report(a.out, result)
	return req, outcome, err
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newApp(ctx context.Context, opts options, logger *zap.Logger) (*app, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.region))
	if err != nil {
		return nil, &deploy.InvocationError{Op: deploy.OpLoadAWSConfig, Err: err}
	}

	lambdaClient := lambda.NewFromConfig(cfg, func(o *lambda.Options) {
		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
		}
	})

	a := &app{
		invoker: deploy.NewInvoker(lambdaClient, opts.functionName, logger),
		loader:  agentconfig.NewLoader(s3.NewFromConfig(cfg), appconfigdata.NewFromConfig(cfg), logger),
		logger:  logger,
		out:     os.Stdout,
		now:     time.Now,
	}
	if opts.recordTable != "" {
		a.recorder = deployments.NewRecorder(dynamodb.NewFromConfig(cfg), opts.recordTable)
	}
	return a, nil
}

func main() {
	_ = config.Load()

	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(buildconfig.String("invoke-deploy-agent"))
		return
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := newApp(ctx, opts, logger)
	if err != nil {
		fmt.Printf("❌ Error invoking Lambda: %v\n", err)
		return
	}

	logger.Debug("starting",
		zap.String("version", buildconfig.Version()),
		zap.String("function", opts.functionName),
		zap.String("region", opts.region),
	)
	a.run(ctx, opts)
}
