package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bbrooks37/vscode-mssql/internal/observability"
	"github.com/bbrooks37/vscode-mssql/model"
)

const connectPath = "/connection/connect"

// Connect invokes the provider's validate-and-save operation with the cleaned
// profile. A provider-side failure comes back as an unsuccessful result with
// an error number; only transport-level problems surface as errors.
func (c *Client) Connect(ctx context.Context, profile *model.ConnectionProfile) (model.ConnectResult, error) {
	ctx, span := observability.StartSpan(ctx, "capability.Connect")
	var err error
	defer func() { observability.EndSpanWithError(span, err) }()

	payload, err := json.Marshal(profile.Values())
	if err != nil {
		return model.ConnectResult{}, fmt.Errorf("connect: marshal profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+connectPath, bytes.NewReader(payload))
	if err != nil {
		return model.ConnectResult{}, fmt.Errorf("connect: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			err = model.NewBackendUnavailableError()
			return model.ConnectResult{}, err
		}
		return model.ConnectResult{}, fmt.Errorf("connect: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return model.ConnectResult{}, fmt.Errorf("connect: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		err = model.NewBackendUnavailableError()
		return model.ConnectResult{}, err
	}

	var result model.ConnectResult
	if err = json.Unmarshal(body, &result); err != nil {
		return model.ConnectResult{}, fmt.Errorf("connect: parse result: %w", err)
	}
	return result, nil
}
