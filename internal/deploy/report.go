package deploy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Outcome is what the report extracted from a result.
type Outcome struct {
	StatusCode      int32
	InnerStatusCode *float64
	Succeeded       bool
	ServiceURL      string
	Message         string
}

// Report prints the human readable status lines for result. Lines are
// written as they are decided, so a body that fails to decode still leaves
// the lines before it on w. The returned Outcome is never nil.
func Report(w io.Writer, result *Result) (*Outcome, error) {
	outcome := &Outcome{StatusCode: result.StatusCode}
	resp := result.Response
	if resp == nil {
		resp = &FunctionResponse{}
	}
	outcome.InnerStatusCode = resp.StatusCode

	fmt.Fprintln(w, "Lambda Response:")
	fmt.Fprintln(w, indentPayload(result.Payload))

	if result.StatusCode != 200 {
		fmt.Fprintf(w, "❌ Lambda invocation failed with status code: %d\n", result.StatusCode)
		return outcome, nil
	}

	fmt.Fprintln(w, "\n✅ Lambda execution successful!")
	if !resp.InnerOK() {
		fmt.Fprintln(w, "❌ Lambda execution failed")
		fmt.Fprintf(w, "Error: %s\n", bytes.TrimSpace(result.Payload))
		return outcome, nil
	}

	fmt.Fprintln(w, "✅ Agent deployment workflow completed!")
	outcome.Succeeded = true
	if resp.Body == nil {
		return outcome, nil
	}

	body, err := resp.DecodeBody()
	if err != nil {
		return outcome, &InvocationError{Op: OpDecode, Err: err}
	}
	if v, ok := body["serviceUrl"]; ok {
		outcome.ServiceURL = fmt.Sprint(v)
		fmt.Fprintf(w, "🌐 ALB URL: %s\n", outcome.ServiceURL)
	}
	if v, ok := body["message"]; ok {
		outcome.Message = fmt.Sprint(v)
		fmt.Fprintf(w, "📝 Message: %s\n", outcome.Message)
	}
	return outcome, nil
}

func indentPayload(payload []byte) string {
	payload = bytes.TrimSpace(payload)
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}
