// internal/common/camunda/client.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"product-research-workers/internal/common/errors"
)

// Client wraps the Zeebe gRPC client with retries and mapped errors.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Deployment describes a deployed process definition.
type Deployment struct {
	BPMNProcessID        string `json:"bpmnProcessId"`
	ProcessDefinitionKey int64  `json:"processDefinitionKey"`
	Version              int32  `json:"version"`
	ResourceName         string `json:"resourceName"`
}

// NewClient creates a plaintext client, suitable for local brokers.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		RetryConfig:            DefaultRetryConfig,
	})
}

// NewClientWithConfig connects and checks the broker topology before returning.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client, e.g. for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// DeployProcess deploys a BPMN file and returns the process definitions it contained.
func (c *Client) DeployProcess(ctx context.Context, path string) ([]Deployment, error) {
	result, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
		return c.client.NewDeployResourceCommand().AddResourceFile(path).Send(ctx)
	}, "deploy "+path)
	if err != nil {
		return nil, err
	}

	var deployments []Deployment
	for _, d := range result.(*pb.DeployResourceResponse).GetDeployments() {
		process := d.GetProcess()
		if process == nil {
			continue
		}
		deployments = append(deployments, Deployment{
			BPMNProcessID:        process.GetBpmnProcessId(),
			ProcessDefinitionKey: process.GetProcessDefinitionKey(),
			Version:              process.GetVersion(),
			ResourceName:         process.GetResourceName(),
		})
	}
	return deployments, nil
}

// StartProcess creates an instance of the latest version of processID.
func (c *Client) StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error) {
	result, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()

		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	}, "start "+processID)
	if err != nil {
		return 0, err
	}
	return result.(*pb.CreateProcessInstanceResponse).GetProcessInstanceKey(), nil
}

// RunProcess creates an instance and waits until it completes, returning the
// requested process variables. The wait is bounded by ctx.
func (c *Client) RunProcess(ctx context.Context, processID string, variables interface{}, fetch ...string) (map[string]interface{}, error) {
	cmd, err := c.client.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromObject(variables)
	if err != nil {
		return nil, errors.NewWorkflowEngineError("run "+processID, false, err)
	}

	resp, err := cmd.WithResult().FetchVariables(fetch...).Send(ctx)
	if err != nil {
		return nil, c.mapZeebeError(err, "run "+processID, 0)
	}

	out := map[string]interface{}{}
	if raw := resp.GetVariables(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, errors.NewWorkflowEngineError("run "+processID, false, fmt.Errorf("decode variables: %w", err))
		}
	}
	return out, nil
}

// ExecuteWithRetry runs a Zeebe command with exponential backoff. Only
// transient errors (timeouts, connection issues) are retried.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		result, err := commandFunc(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryableZeebeError(err) || attempt == c.config.RetryConfig.MaxRetries {
			return nil, c.mapZeebeError(err, operationName, attempt)
		}

		delay := c.config.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > c.config.RetryConfig.MaxDelay {
			delay = c.config.RetryConfig.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}

	return nil, fmt.Errorf("operation %s failed after %d retries: %w", operationName, c.config.RetryConfig.MaxRetries, lastErr)
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
		"resource_exhausted",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts gateway errors into workflow engine errors, keeping
// the transient ones retryable.
func (c *Client) mapZeebeError(err error, operation string, attempt int) error {
	msg := err.Error()
	if attempt > 0 {
		msg = fmt.Sprintf("after %d attempts: %s", attempt+1, msg)
	}
	stdErr := errors.NewWorkflowEngineError(operation, isRetryableZeebeError(err), fmt.Errorf("%s", msg))

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not found"):
		stdErr.WithMetadata("reason", "not_found")
	case strings.Contains(lower, "already exists"):
		stdErr.WithMetadata("reason", "already_exists")
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "unauthenticated"):
		stdErr.WithMetadata("reason", "unauthorized")
	case isRetryableZeebeError(err):
		stdErr.WithMetadata("reason", "unavailable")
	}
	return stdErr
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	_, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
