package tenderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mdlayher/vsock"
)

const defaultClientTimeout = 30 * time.Second

// ServerError is an error response returned by the evaluation service.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "evaluation service: " + e.Message
}

// Client talks to the evaluation service, one connection per request.
type Client struct {
	dial    func(ctx context.Context) (net.Conn, error)
	timeout time.Duration
}

// NewTCPClient returns a client for a service listening on a TCP address.
func NewTCPClient(address string, timeout time.Duration) *Client {
	var d net.Dialer
	return newClient(func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", address)
	}, timeout)
}

// NewVsockClient returns a client for a service listening on a vsock port
// inside the VM identified by contextID.
func NewVsockClient(contextID, port uint32, timeout time.Duration) *Client {
	return newClient(func(context.Context) (net.Conn, error) {
		return vsock.Dial(contextID, port, nil)
	}, timeout)
}

func newClient(dial func(ctx context.Context) (net.Conn, error), timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{dial: dial, timeout: timeout}
}

// Ping checks that the service is up.
func (c *Client) Ping(ctx context.Context) error {
	var resp struct {
		Type string `json:"type"`
	}
	if err := c.roundTrip(ctx, map[string]string{"type": TypePing}, &resp); err != nil {
		return err
	}
	if resp.Type != TypePong {
		return fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return nil
}

// PublicKey fetches the service's sealing key.
func (c *Client) PublicKey(ctx context.Context) (*KeyResponse, error) {
	var resp KeyResponse
	if err := c.roundTrip(ctx, map[string]string{"type": TypeKeyRequest}, &resp); err != nil {
		return nil, err
	}
	if resp.Type != TypeKeyResponse {
		return nil, fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return &resp, nil
}

// Evaluate submits an evaluation request. A response with Success=false is
// returned as-is, not as an error.
func (c *Client) Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResponse, error) {
	req.Type = TypeEvaluationRequest
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	var resp EvaluationResponse
	if err := c.roundTrip(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Type != TypeEvaluationResponse {
		return nil, fmt.Errorf("unexpected response type %q", resp.Type)
	}
	return &resp, nil
}

func (c *Client) roundTrip(ctx context.Context, request, response any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Type == TypeError {
		return &ServerError{Message: envelope.Message}
	}

	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
