package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultFunctionName = "shttempo-deploy-agent"
	defaultRegion       = "us-east-1"
)

// Load reads the .env file specified by INVOKER_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// Variables already set in the environment win over both files.
func Load() error {
	envFile := os.Getenv("INVOKER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// FunctionName returns the deploy-agent function to invoke.
// Defaults to "shttempo-deploy-agent" if not set.
func FunctionName() string {
	name := os.Getenv("DEPLOY_AGENT_LAMBDA")
	if name == "" {
		return defaultFunctionName
	}
	return name
}

// Region returns the region the deploy-agent function lives in.
// Defaults to "us-east-1" if not set.
func Region() string {
	region := os.Getenv("DEPLOY_AGENT_REGION")
	if region == "" {
		return defaultRegion
	}
	return region
}

// LambdaEndpoint overrides the Lambda service endpoint, e.g. the local stub.
func LambdaEndpoint() string {
	return os.Getenv("LAMBDA_ENDPOINT")
}

// AgentConfigSource is a file path, s3://bucket/key or
// appconfig://application/environment/profile. Empty means the built-in agent.
func AgentConfigSource() string {
	return os.Getenv("AGENT_CONFIG_SOURCE")
}

// DeploymentsTable is the DynamoDB table invocations are recorded in.
// Empty disables recording.
func DeploymentsTable() string {
	return os.Getenv("DEPLOYMENTS_TABLE")
}

func TenantID() string {
	return os.Getenv("TENANT_ID")
}

func ALBBaseURL() string {
	return os.Getenv("ALB_BASE_URL")
}

// IsLocal reports whether ENV is LOCAL.
func IsLocal() bool {
	return os.Getenv("ENV") == "LOCAL"
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 9001
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
