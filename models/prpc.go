package models

import "encoding/json"

// JSON-RPC 2.0 Request
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

// JSON-RPC 2.0 Response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// JSON-RPC 2.0 Error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RPCErrCodeMethodNotFound is the standard JSON-RPC "method not found"
// code. Older pNodes that predate get-stats answer with it.
const RPCErrCodeMethodNotFound = -32601

// ============================================
// getClusterNodes response (one element)
// ============================================

// ClusterNode is a single raw record from the gossip node list. Every
// endpoint is optional; absent fields stay nil.
type ClusterNode struct {
	Pubkey          string  `json:"pubkey"`
	Gossip          *string `json:"gossip,omitempty"`
	RPC             *string `json:"rpc,omitempty"`
	Pubsub          *string `json:"pubsub,omitempty"`
	TPU             *string `json:"tpu,omitempty"`
	TPUForwards     *string `json:"tpuForwards,omitempty"`
	TPUForwardsQUIC *string `json:"tpuForwardsQuic,omitempty"`
	TPUQUIC         *string `json:"tpuQuic,omitempty"`
	TPUVote         *string `json:"tpuVote,omitempty"`
	TVU             *string `json:"tvu,omitempty"`
	ServeRepair     *string `json:"serveRepair,omitempty"`
	Version         *string `json:"version,omitempty"`
	FeatureSet      *int64  `json:"featureSet,omitempty"`
	ShredVersion    *int64  `json:"shredVersion,omitempty"`
}

// ============================================
// getVersion response
// ============================================
type VersionResponse struct {
	Version string `json:"version"`
}

// ============================================
// get-stats response (flat, every field optional)
// ============================================
type StatsResponse struct {
	CPUPercent      *float64 `json:"cpu_percent,omitempty"`
	RAMUsed         *int64   `json:"ram_used,omitempty"`
	RAMTotal        *int64   `json:"ram_total,omitempty"`
	Uptime          *int64   `json:"uptime,omitempty"`
	PacketsReceived *int64   `json:"packets_received,omitempty"`
	PacketsSent     *int64   `json:"packets_sent,omitempty"`
	ActiveStreams   *int64   `json:"active_streams,omitempty"`
}

// ============================================
// get-pods-with-stats response
// ============================================
type PodsResponse struct {
	Pods       []Pod `json:"pods"`
	TotalCount int   `json:"total_count"`
}

type Pod struct {
	Address             string  `json:"address"`
	Pubkey              string  `json:"pubkey"`
	RpcPort             int     `json:"rpc_port,omitempty"`
	IsPublic            bool    `json:"is_public,omitempty"`
	Version             string  `json:"version,omitempty"`
	LastSeenTimestamp   int64   `json:"last_seen_timestamp,omitempty"`
	StorageCommitted    int64   `json:"storage_committed,omitempty"`
	StorageUsed         int64   `json:"storage_used,omitempty"`
	StorageUsagePercent float64 `json:"storage_usage_percent,omitempty"`
	Uptime              int64   `json:"uptime,omitempty"`
	Credits             *int64  `json:"credits,omitempty"`
}
