package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"pnodewatch/models"
)

func callKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	ce, ok := AsCallError(err)
	if !ok {
		t.Fatalf("expected *CallError, got %T: %v", err, err)
	}
	return ce.Kind
}

func TestCall_ClosedPortIsNetworkError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := s.URL
	s.Close()

	c := NewPRPCClient(newTestConfig(url))
	_, _, err := c.Call(context.Background(), url, MethodHealth, nil, time.Second)
	if err == nil {
		t.Fatalf("expected error on closed port")
	}
	if kind := callKind(t, err); kind != ErrKindNetwork {
		t.Fatalf("expected NETWORK_ERROR, got %s", kind)
	}
}

func TestCall_SlowServerIsTimeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	_, _, err := c.Call(context.Background(), s.URL, MethodHealth, nil, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if kind := callKind(t, err); kind != ErrKindTimeout {
		t.Fatalf("expected TIMEOUT, got %s", kind)
	}
}

func TestCall_Non2xxIsHTTPError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	_, _, err := c.Call(context.Background(), s.URL, MethodHealth, nil, time.Second)

	ce, ok := AsCallError(err)
	if !ok || ce.Kind != ErrKindHTTP {
		t.Fatalf("expected HTTP_ERROR, got %v", err)
	}
	if ce.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500 carried on the error, got %d", ce.Status)
	}
}

func TestCall_BadBodyIsInvalidJSON(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	_, _, err := c.Call(context.Background(), s.URL, MethodHealth, nil, time.Second)
	if kind := callKind(t, err); kind != ErrKindInvalidJSON {
		t.Fatalf("expected INVALID_JSON, got %s", kind)
	}
}

func TestCall_RPCErrorCarriesCode(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		return nil, &models.RPCError{Code: -32601, Message: "Method not found"}
	})
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	_, _, err := c.Call(context.Background(), s.URL, MethodStats, nil, time.Second)

	ce, ok := AsCallError(err)
	if !ok || ce.Kind != ErrKindRPC {
		t.Fatalf("expected RPC_ERROR, got %v", err)
	}
	if ce.RPCErr == nil || ce.RPCErr.Code != -32601 {
		t.Fatalf("expected upstream code -32601 carried, got %+v", ce.RPCErr)
	}
}

func TestCall_NullErrorFieldIsSuccess(t *testing.T) {
	// newRPCServer always includes "error": null on success.
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		return "ok", nil
	})
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	result, duration, err := c.Call(context.Background(), s.URL, MethodHealth, nil, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `"ok"` {
		t.Fatalf("unexpected result payload: %s", result)
	}
	if duration <= 0 {
		t.Fatalf("expected a positive duration, got %v", duration)
	}
}

func TestCall_RequestIDsIncrease(t *testing.T) {
	var ids []int64
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.RPCRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		ids = append(ids, req.ID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":"ok","id":` + strconv.FormatInt(req.ID, 10) + `}`))
	}))
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	for i := 0; i < 3; i++ {
		if _, _, err := c.Call(context.Background(), s.URL, MethodHealth, nil, time.Second); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	if len(ids) != 3 {
		t.Fatalf("expected 3 requests, saw %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("request ids should increase monotonically: %v", ids)
		}
	}
}

func TestGetHealth_ParsesLiteralOK(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		if method != MethodHealth {
			t.Fatalf("unexpected method %q", method)
		}
		return "ok", nil
	})
	defer s.Close()

	c := NewPRPCClient(newTestConfig(s.URL))
	status, _, err := c.GetHealth(context.Background(), s.URL, time.Second)
	if err != nil || status != "ok" {
		t.Fatalf("expected ok, got %q err=%v", status, err)
	}
}
