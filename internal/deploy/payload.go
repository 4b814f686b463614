// Package deploy builds deploy-agent requests, invokes the deploy-agent Lambda
// function and reports what it answered.
package deploy

import (
	"strconv"
	"time"
)

const (
	ActionDeploy = "deploy"
	ActionStop   = "stop"

	// AgentIDPrefix starts every generated agent ID.
	AgentIDPrefix = "test-manual-deploy-"
)

// AgentConfig is the agent definition the deploy-agent function turns into a
// running voice agent.
type AgentConfig struct {
	Name                string   `json:"name"`
	Prompt              string   `json:"prompt"`
	Guardrails          []string `json:"guardrails"`
	KnowledgeBase       string   `json:"knowledgeBase"`
	CallPhoneNumber     string   `json:"callPhoneNumber"`
	TransferPhoneNumber string   `json:"transferPhoneNumber"`
	SummaryPhoneNumber  string   `json:"summaryPhoneNumber"`
	TwilioAccountSID    string   `json:"twilioAccountSid"`
	TwilioAPISID        string   `json:"twilioApiSid"`
	TwilioAPISecret     string   `json:"twilioApiSecret"`
	VoiceID             string   `json:"voiceId"`
}

// DefaultAgentConfig returns the manual test agent.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:   "Manual Test Agent",
		Prompt: "You are a helpful AI assistant for testing purposes. Respond professionally and assist users with their inquiries.",
		Guardrails: []string{
			"Always be polite and professional",
			"Do not provide harmful or inappropriate content",
			"If you don't know something, say so",
		},
		KnowledgeBase:       "This is a test knowledge base for manual Lambda invocation testing. The agent should use this information to help users.",
		CallPhoneNumber:     "+1234567890",
		TransferPhoneNumber: "+1987654321",
		SummaryPhoneNumber:  "+1122334455",
		TwilioAccountSID:    "ACtest123456789012345678901234567890",
		TwilioAPISID:        "SKtest123456789012345678901234567890",
		TwilioAPISecret:     "test_twilio_api_secret_key",
		VoiceID:             "tiffany",
	}
}

// Request is the payload sent to the deploy-agent function.
type Request struct {
	Action   string       `json:"action"`
	AgentID  string       `json:"agentId"`
	TenantID string       `json:"tenantId,omitempty"`
	Config   *AgentConfig `json:"config,omitempty"`
}

// NewAgentID returns AgentIDPrefix followed by the Unix seconds of now.
// Two runs within the same second get the same ID.
func NewAgentID(now time.Time) string {
	return AgentIDPrefix + strconv.FormatInt(now.Unix(), 10)
}

// NewRequest builds a request for action. The stop action carries no config.
func NewRequest(action, agentID, tenantID string, cfg AgentConfig) *Request {
	req := &Request{
		Action:   action,
		AgentID:  agentID,
		TenantID: tenantID,
	}
	if action != ActionStop {
		req.Config = &cfg
	}
	return req
}
