package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"pnodewatch/config"
	"pnodewatch/models"
)

// pRPC method names. get-stats and get-pods-with-stats are hyphenated
// on the wire; that is how pNodes register them, not a typo.
const (
	MethodClusterNodes  = "getClusterNodes"
	MethodHealth        = "getHealth"
	MethodVersion       = "getVersion"
	MethodStats         = "get-stats"
	MethodPodsWithStats = "get-pods-with-stats"
)

// ErrorKind classifies a failed pRPC call. Every transport failure maps
// to exactly one of these; upper layers only translate them, they never
// invent new kinds.
type ErrorKind string

const (
	ErrKindNetwork     ErrorKind = "NETWORK_ERROR"
	ErrKindTimeout     ErrorKind = "TIMEOUT"
	ErrKindHTTP        ErrorKind = "HTTP_ERROR"
	ErrKindInvalidJSON ErrorKind = "INVALID_JSON"
	ErrKindRPC         ErrorKind = "RPC_ERROR"
)

// CallError is the only error type Call returns.
type CallError struct {
	Kind   ErrorKind
	Method string
	URL    string
	Status int              // set for HTTP_ERROR
	RPCErr *models.RPCError // set for RPC_ERROR
	cause  error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case ErrKindHTTP:
		return fmt.Sprintf("%s: http status %d from %s %s", e.Kind, e.Status, e.Method, e.URL)
	case ErrKindRPC:
		return fmt.Sprintf("%s: rpc error %d: %s", e.Kind, e.RPCErr.Code, e.RPCErr.Message)
	default:
		if e.cause != nil {
			return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Method, e.URL, e.cause)
		}
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Method, e.URL)
	}
}

func (e *CallError) Unwrap() error { return e.cause }

// AsCallError unwraps err into a *CallError if there is one.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type PRPCClient struct {
	cfg        *config.Config
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewPRPCClient builds the shared client. No client-level timeout: each
// call carries its own context deadline. pNodes listen on ports like
// 6000, which net/http is happy to dial.
func NewPRPCClient(cfg *config.Config) *PRPCClient {
	return &PRPCClient{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				DisableKeepAlives:   false,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Call sends one JSON-RPC 2.0 request to url and returns the result
// payload plus the wall-clock duration from just before send to full
// body receipt. timeout <= 0 falls back to the configured default. On
// failure the returned error is always a *CallError.
func (c *PRPCClient) Call(ctx context.Context, url string, method string, params any, timeout time.Duration) (json.RawMessage, time.Duration, error) {
	if timeout <= 0 {
		timeout = c.cfg.PRPCTimeout()
	}

	reqBody := models.RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, &CallError{Kind: ErrKindNetwork, Method: method, URL: url, cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, 0, &CallError{Kind: ErrKindNetwork, Method: method, URL: url, cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, time.Since(start), c.classifyIOError(method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, duration, c.classifyIOError(method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, duration, &CallError{Kind: ErrKindHTTP, Method: method, URL: url, Status: resp.StatusCode}
	}

	var rpcResp models.RPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, duration, &CallError{Kind: ErrKindInvalidJSON, Method: method, URL: url, cause: err}
	}

	// Some servers always include "error": null; only a non-null error
	// object counts as a failure.
	if rpcResp.Error != nil {
		return nil, duration, &CallError{Kind: ErrKindRPC, Method: method, URL: url, RPCErr: rpcResp.Error}
	}

	return rpcResp.Result, duration, nil
}

func (c *PRPCClient) classifyIOError(method, url string, err error) *CallError {
	kind := ErrKindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrKindTimeout
	}
	return &CallError{Kind: kind, Method: method, URL: url, cause: err}
}

// ============================================
// Typed method helpers
// ============================================

// GetClusterNodes fetches the full gossip node list from the base
// endpoint. Records come back raw; mapping is the snapshot service's
// job so the original payload can be retained per row.
func (c *PRPCClient) GetClusterNodes(ctx context.Context) ([]json.RawMessage, time.Duration, error) {
	result, duration, err := c.Call(ctx, c.cfg.PRPC.Endpoint, MethodClusterNodes, nil, 0)
	if err != nil {
		return nil, duration, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, duration, &CallError{Kind: ErrKindInvalidJSON, Method: MethodClusterNodes, URL: c.cfg.PRPC.Endpoint, cause: err}
	}
	return records, duration, nil
}

// GetHealth issues the lightweight liveness check against one node. A
// healthy node answers with the literal string "ok".
func (c *PRPCClient) GetHealth(ctx context.Context, url string, timeout time.Duration) (string, time.Duration, error) {
	result, duration, err := c.Call(ctx, url, MethodHealth, nil, timeout)
	if err != nil {
		return "", duration, err
	}

	var status string
	if err := json.Unmarshal(result, &status); err != nil {
		return "", duration, &CallError{Kind: ErrKindInvalidJSON, Method: MethodHealth, URL: url, cause: err}
	}
	return status, duration, nil
}

func (c *PRPCClient) GetVersion(ctx context.Context, url string, timeout time.Duration) (*models.VersionResponse, error) {
	result, _, err := c.Call(ctx, url, MethodVersion, nil, timeout)
	if err != nil {
		return nil, err
	}

	var verResp models.VersionResponse
	if err := json.Unmarshal(result, &verResp); err != nil {
		return nil, &CallError{Kind: ErrKindInvalidJSON, Method: MethodVersion, URL: url, cause: err}
	}
	return &verResp, nil
}

// GetStats fetches one node's live telemetry. The raw result is
// returned alongside the parsed shape so collectors can persist it for
// audit.
func (c *PRPCClient) GetStats(ctx context.Context, url string, timeout time.Duration) (*models.StatsResponse, json.RawMessage, error) {
	result, _, err := c.Call(ctx, url, MethodStats, nil, timeout)
	if err != nil {
		return nil, nil, err
	}

	var statsResp models.StatsResponse
	if err := json.Unmarshal(result, &statsResp); err != nil {
		return nil, nil, &CallError{Kind: ErrKindInvalidJSON, Method: MethodStats, URL: url, cause: err}
	}
	return &statsResp, result, nil
}

func (c *PRPCClient) GetPodsWithStats(ctx context.Context) (*models.PodsResponse, error) {
	result, _, err := c.Call(ctx, c.cfg.PRPC.Endpoint, MethodPodsWithStats, nil, 0)
	if err != nil {
		return nil, err
	}

	var podsResp models.PodsResponse
	if err := json.Unmarshal(result, &podsResp); err != nil {
		return nil, &CallError{Kind: ErrKindInvalidJSON, Method: MethodPodsWithStats, URL: c.cfg.PRPC.Endpoint, cause: err}
	}
	return &podsResp, nil
}
