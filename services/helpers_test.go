package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pnodewatch/config"
	"pnodewatch/models"
)

func newTestConfig(endpoint string) *config.Config {
	return &config.Config{
		PRPC: config.PRPCConfig{
			Endpoint:  endpoint,
			TimeoutMs: 2000,
		},
		Probe: config.ProbeConfig{
			Enabled:     true,
			Concurrency: 10,
			TimeoutMs:   1000,
		},
		Collect: config.CollectConfig{
			Concurrency: 20,
			TimeoutMs:   1000,
		},
		Cache: config.CacheConfig{
			SnapshotTTL:  30,
			NodeTTL:      60,
			LiveStatsTTL: 15,
		},
	}
}

// rpcHandler answers one JSON-RPC method; return a nil result with a
// non-nil rpcErr to produce a JSON-RPC error response.
type rpcHandler func(method string) (result any, rpcErr *models.RPCError)

func newRPCServer(t *testing.T, handle rpcHandler) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		result, rpcErr := handle(req.Method)

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
			resp["error"] = nil // some pNodes always include the key
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// hostPort strips the scheme from an httptest server URL so it can be
// used as an advertised endpoint address.
func hostPort(url string) string {
	return strings.TrimPrefix(url, "http://")
}

func testRow(pubkey string, rpcAddr string) *models.PnodeRow {
	endpoints := map[string]string{}
	if rpcAddr != "" {
		endpoints["rpc"] = rpcAddr
	}
	return &models.PnodeRow{
		Pubkey:    pubkey,
		Endpoints: endpoints,
		Derived: models.DerivedFields{
			HasRPC:        rpcAddr != "",
			ShortPubkey:   ShortPubkey(pubkey),
			EndpointCount: len(endpoints),
		},
	}
}
