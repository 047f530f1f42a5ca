// Package bridge implements the workflow executor protocol against the
// external execution engine's HTTP API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentmatrix/matrix/pkg/protocol"
	"github.com/agentmatrix/matrix/pkg/web"
)

const defaultTimeout = 30 * time.Minute

// Executor calls the bridge engine to run one workflow to completion.
// Workflow executions are long; the HTTP client timeout bounds a single
// run at defaultTimeout.
type Executor struct {
	baseURL string
	client  *http.Client
}

func NewExecutor(baseURL string) *Executor {
	return &Executor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

type executeRequest struct {
	WorkflowID string `json:"workflow_id"`
}

type executeResponse struct {
	Output       string          `json:"output"`
	TokensInput  int64           `json:"tokens_input"`
	TokensOutput int64           `json:"tokens_output"`
	Cost         decimal.Decimal `json:"cost"`
}

// ExecuteWorkflow runs the workflow synchronously on the bridge. Any
// transport error or non-2xx response is returned as an error; the batch
// loop records it as a failed item.
func (e *Executor) ExecuteWorkflow(ctx context.Context, projectID, workflowID string) (*protocol.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{WorkflowID: workflowID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build execute request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.ProjectIDHeader, projectID)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge returned status %d for workflow %s", resp.StatusCode, workflowID)
	}

	var result executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode bridge response: %w", err)
	}

	return &protocol.ExecutionResult{
		Output:       result.Output,
		TokensInput:  result.TokensInput,
		TokensOutput: result.TokensOutput,
		Cost:         result.Cost,
	}, nil
}
