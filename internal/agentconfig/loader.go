// Package agentconfig resolves the agent definition sent with a deploy
// request from a local file, an S3 object or an AppConfig hosted profile.
package agentconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
	"go.uber.org/zap"
)

const (
	s3Scheme        = "s3://"
	appConfigScheme = "appconfig://"
)

// ErrEmptyConfiguration is returned when AppConfig hands back no data.
var ErrEmptyConfiguration = errors.New("configuration is empty")

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type AppConfigAPI interface {
	StartConfigurationSession(ctx context.Context, params *appconfigdata.StartConfigurationSessionInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.StartConfigurationSessionOutput, error)
	GetLatestConfiguration(ctx context.Context, params *appconfigdata.GetLatestConfigurationInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.GetLatestConfigurationOutput, error)
}

type Loader struct {
	s3        S3API
	appConfig AppConfigAPI
	logger    *zap.Logger
}

func NewLoader(s3Client S3API, appConfigClient AppConfigAPI, logger *zap.Logger) *Loader {
	return &Loader{
		s3:        s3Client,
		appConfig: appConfigClient,
		logger:    logger,
	}
}

// Load returns the agent config named by source. Fields the source leaves out
// keep the values of deploy.DefaultAgentConfig.
func (l *Loader) Load(ctx context.Context, source string) (deploy.AgentConfig, error) {
	cfg := deploy.DefaultAgentConfig()
	if source == "" {
		return cfg, nil
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(source, s3Scheme):
		data, err = l.fromS3(ctx, strings.TrimPrefix(source, s3Scheme))
	case strings.HasPrefix(source, appConfigScheme):
		data, err = l.fromAppConfig(ctx, strings.TrimPrefix(source, appConfigScheme))
	default:
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return deploy.AgentConfig{}, fmt.Errorf("read agent config %s: %w", source, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return deploy.AgentConfig{}, fmt.Errorf("parse agent config %s: %w", source, err)
	}

	l.logger.Info("loaded agent config",
		zap.String("source", source),
		zap.String("name", cfg.Name),
	)
	return cfg, nil
}

func (l *Loader) fromS3(ctx context.Context, location string) ([]byte, error) {
	bucket, key, ok := strings.Cut(location, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q, want s3://bucket/key", location)
	}

	result, err := l.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer func() {
		if err := result.Body.Close(); err != nil {
			l.logger.Warn("failed to close object body", zap.Error(err))
		}
	}()

	return io.ReadAll(result.Body)
}

func (l *Loader) fromAppConfig(ctx context.Context, location string) ([]byte, error) {
	parts := strings.Split(location, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("invalid appconfig location %q, want appconfig://application/environment/profile", location)
	}

	session, err := l.appConfig.StartConfigurationSession(ctx, &appconfigdata.StartConfigurationSessionInput{
		ApplicationIdentifier:          aws.String(parts[0]),
		EnvironmentIdentifier:          aws.String(parts[1]),
		ConfigurationProfileIdentifier: aws.String(parts[2]),
	})
	if err != nil {
		return nil, fmt.Errorf("start configuration session: %w", err)
	}

	latest, err := l.appConfig.GetLatestConfiguration(ctx, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: session.InitialConfigurationToken,
	})
	if err != nil {
		return nil, fmt.Errorf("get latest configuration: %w", err)
	}

	// A fresh session always receives data unless the profile itself is empty.
	if len(latest.Configuration) == 0 {
		return nil, ErrEmptyConfiguration
	}
	return latest.Configuration, nil
}
