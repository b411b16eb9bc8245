package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog/log"
)

// IsCustomResource reports whether event was sent by CloudFormation on behalf
// of a custom resource and therefore expects a response at its ResponseURL.
func IsCustomResource(event cfn.Event) bool {
	if event.ResponseURL == "" {
		return false
	}
	return strings.Contains(event.ResourceType, "CustomResource") ||
		strings.HasPrefix(event.ResourceType, "Custom::")
}

// CallbackReporter delivers the terminal status of a custom-resource
// invocation to the pre-signed ResponseURL. Other events are ignored.
type CallbackReporter struct {
	client    *http.Client
	logStream string
}

// NewCallbackReporter creates a CallbackReporter that names the current
// Lambda log stream in its responses. A nil client uses http.DefaultClient.
func NewCallbackReporter(client *http.Client) *CallbackReporter {
	if client == nil {
		client = http.DefaultClient
	}
	return &CallbackReporter{client: client, logStream: lambdacontext.LogStreamName}
}

// Report PUTs exactly one cfn.Response for a custom-resource event.
func (r *CallbackReporter) Report(ctx context.Context, event cfn.Event, status cfn.StatusType) error {
	if !IsCustomResource(event) {
		log.Debug().Str("resourceType", event.ResourceType).Msg("Not a custom resource event; no callback sent")
		return nil
	}

	resp := cfn.NewResponse(&event)
	resp.Status = status
	resp.Data = map[string]interface{}{}
	resp.PhysicalResourceID = event.PhysicalResourceID
	if resp.PhysicalResourceID == "" {
		resp.PhysicalResourceID = r.logStream
	}
	if resp.PhysicalResourceID == "" {
		resp.PhysicalResourceID = event.LogicalResourceID
	}
	if status == cfn.StatusFailed {
		resp.Reason = "See the details in CloudWatch Log Stream: " + r.logStream
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal custom resource response: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, event.ResponseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send callback: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("send callback: unexpected status %d", res.StatusCode)
	}

	log.Info().
		Str("status", string(status)).
		Str("physicalResourceId", resp.PhysicalResourceID).
		Str("stackId", event.StackID).
		Msg("Custom resource response sent")
	return nil
}
