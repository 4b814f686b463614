package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result is what came back from one invocation.
type Result struct {
	// StatusCode is the outer, transport level status of the invoke call.
	StatusCode      int32
	Payload         []byte
	FunctionError   string
	ExecutedVersion string

	Response *FunctionResponse
}

// FunctionResponse is the decoded payload. Both fields are optional: the
// function sets them, the invoker only reads them.
type FunctionResponse struct {
	// StatusCode is the inner, application level status; nil when absent or
	// not a number.
	StatusCode *float64
	// Body is the raw JSON value of the "body" field; nil when absent.
	Body json.RawMessage
}

// InnerOK reports whether the function itself answered 200.
func (r *FunctionResponse) InnerOK() bool {
	return r != nil && r.StatusCode != nil && *r.StatusCode == 200
}

// DecodeFunctionResponse parses an invoke payload. The payload must be JSON;
// JSON that is not an object decodes to an empty response.
func DecodeFunctionResponse(payload []byte) (*FunctionResponse, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(payload, &fields)
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return &FunctionResponse{}, nil
	case err != nil:
		return nil, fmt.Errorf("decode function response: %w", err)
	}

	resp := &FunctionResponse{}
	if raw, ok := fields["statusCode"]; ok {
		var code float64
		if err := json.Unmarshal(raw, &code); err == nil {
			resp.StatusCode = &code
		}
	}
	if raw, ok := fields["body"]; ok {
		resp.Body = raw
	}
	return resp, nil
}

// DecodeBody parses the "body" field, which holds a JSON document encoded as
// a string. A document that is not an object yields no fields.
func (r *FunctionResponse) DecodeBody() (map[string]any, error) {
	var text string
	if err := json.Unmarshal(r.Body, &text); err != nil {
		return nil, fmt.Errorf("body is not a string: %w", err)
	}

	var body map[string]any
	err := json.Unmarshal([]byte(text), &body)
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return map[string]any{}, nil
	case err != nil:
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return body, nil
}
