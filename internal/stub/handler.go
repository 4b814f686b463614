// Package stub is a stand-in for the deploy-agent function. It answers with
// the same shapes as the real function without touching ECS or the load
// balancer, so the invoker can be exercised end to end.
package stub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/deploy"
	"go.uber.org/zap"
)

const maxRulePriority = 40000

// Response is what the deploy-agent function returns.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// DeployBody is the decoded body of a successful deploy.
type DeployBody struct {
	ServiceURL     string `json:"serviceUrl"`
	Message        string `json:"message"`
	RuleARN        string `json:"ruleArn"`
	TargetGroupARN string `json:"targetGroupArn"`
	Priority       int    `json:"priority"`
}

type Handler struct {
	albBaseURL string
	region     string
	logger     *zap.Logger
}

func NewHandler(albBaseURL, region string, logger *zap.Logger) *Handler {
	return &Handler{
		albBaseURL: albBaseURL,
		region:     region,
		logger:     logger,
	}
}

// Handle dispatches on the request action.
func (h *Handler) Handle(ctx context.Context, req deploy.Request) (Response, error) {
	logger := h.logger.With(zap.String("action", req.Action), zap.String("agent_id", req.AgentID))
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With(zap.String("aws_request_id", lc.AwsRequestID))
	}

	switch req.Action {
	case "":
		return errorResponse(400, "Missing action"), nil
	case deploy.ActionDeploy:
		if req.AgentID == "" {
			return errorResponse(400, "Missing agentId"), nil
		}
		return h.deploy(req, logger)
	case deploy.ActionStop:
		logger.Info("agent stopped")
		return jsonResponse(200, map[string]bool{"ok": true})
	default:
		logger.Warn("unknown action")
		return errorResponse(400, "Unknown action"), nil
	}
}

func (h *Handler) deploy(req deploy.Request, logger *zap.Logger) (Response, error) {
	path := "/agents/" + req.AgentID
	body := DeployBody{
		ServiceURL:     h.albBaseURL + path,
		Message:        fmt.Sprintf("Agent %s deployed", req.AgentID),
		RuleARN:        fmt.Sprintf("arn:aws:elasticloadbalancing:%s:000000000000:listener-rule/app/stub/%s", h.region, uuid.NewString()),
		TargetGroupARN: fmt.Sprintf("arn:aws:elasticloadbalancing:%s:000000000000:targetgroup/%s/%s", h.region, targetGroupName(req.AgentID), uuid.NewString()),
		Priority:       RulePriority(req.AgentID),
	}

	logger.Info("agent deployed",
		zap.String("service_url", body.ServiceURL),
		zap.Int("priority", body.Priority),
	)
	return jsonResponse(200, body)
}

// RulePriority maps an agent ID onto a listener rule priority in [1, 40000].
// The hash is the 32-bit "h*31 + c" string hash the real function uses.
func RulePriority(agentID string) int {
	var h int64
	for _, c := range agentID {
		h = int64(int32(h)<<5) - h + int64(c)
	}
	p := h % maxRulePriority
	if p < 0 {
		p = -p
	}
	return min(maxRulePriority, max(1, int(p)+1))
}

// Target group names are limited to 32 characters.
func targetGroupName(agentID string) string {
	name := "tg-" + agentID
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}

func jsonResponse(status int, v any) (Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response body: %w", err)
	}
	return Response{StatusCode: status, Body: string(body)}, nil
}

func errorResponse(status int, message string) Response {
	body, _ := json.Marshal(map[string]string{"error": message})
	return Response{StatusCode: status, Body: string(body)}
}
