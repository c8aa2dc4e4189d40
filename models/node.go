package models

import (
	"encoding/json"
	"time"
)

// Endpoint names a ClusterNode record can carry, in wire order. Ten in
// total; EndpointCount is always counted against this set.
var EndpointNames = []string{
	"gossip", "rpc", "pubsub", "tpu", "tpuForwards",
	"tpuForwardsQuic", "tpuQuic", "tpuVote", "tvu", "serveRepair",
}

// PnodeRow is the canonical internal shape for one node. Built fresh on
// every snapshot fetch; probe results and credits are attached after
// construction and never cached inside the row.
type PnodeRow struct {
	Pubkey       string  `json:"pubkey"`
	Version      *string `json:"version"`
	ShredVersion *int64  `json:"shred_version"`
	FeatureSet   *int64  `json:"feature_set"`

	// Populated endpoints only; absent keys mean the node does not
	// advertise that endpoint.
	Endpoints map[string]string `json:"endpoints"`

	Derived DerivedFields `json:"derived"`

	// Geo estimation of the gossip IP (empty without a GeoIP database)
	Country string  `json:"country,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`

	// Version upgrade classification
	VersionStatus   string `json:"version_status,omitempty"`
	IsUpgradeNeeded bool   `json:"is_upgrade_needed,omitempty"`
	UpgradeSeverity string `json:"upgrade_severity,omitempty"`

	Pod   *PodInfo     `json:"pod,omitempty"`
	Probe *ProbeResult `json:"probe,omitempty"`

	// Original wire payload, retained for inspection only.
	Raw json.RawMessage `json:"raw,omitempty"`
}

type DerivedFields struct {
	HasRPC        bool   `json:"has_rpc"`
	HasPubsub     bool   `json:"has_pubsub"`
	ShortPubkey   string `json:"short_pubkey"`
	IPAddress     string `json:"ip_address"`
	EndpointCount int    `json:"endpoint_count"`
}

// PodInfo mirrors the richer per-pod record when get-pods-with-stats
// has something for this pubkey.
type PodInfo struct {
	Address             string  `json:"address"`
	IsPublic            bool    `json:"is_public"`
	LastSeenTimestamp   int64   `json:"last_seen_timestamp"`
	RpcPort             int     `json:"rpc_port"`
	RpcURL              string  `json:"rpc_url"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
	StorageCommitted    int64   `json:"storage_committed"`
	StorageUsed         int64   `json:"storage_used"`
	StorageUsagePercent float64 `json:"storage_usage_percent"`
	Credits             *int64  `json:"credits,omitempty"`
}

// ProbeResult is the outcome of one reachability check. Exactly one of
// "reachable" (with optional latency/version) or "unreachable with
// error" holds.
type ProbeResult struct {
	RpcReachable bool    `json:"rpc_reachable"`
	LatencyMs    *int64  `json:"latency_ms,omitempty"`
	RpcVersion   *string `json:"rpc_version,omitempty"`
	Error        *string `json:"error,omitempty"`
	ProbedAt     string  `json:"probed_at"`
}

// RPCURL returns the http URL for the node's advertised RPC endpoint,
// or "" when none is advertised.
func (r *PnodeRow) RPCURL() string {
	addr, ok := r.Endpoints["rpc"]
	if !ok || addr == "" {
		return ""
	}
	return "http://" + addr
}

// SnapshotStats aggregates one snapshot's rows.
type SnapshotStats struct {
	TotalNodes      int `json:"total_nodes"`
	NodesWithRpc    int `json:"nodes_with_rpc"`
	NodesWithPubsub int `json:"nodes_with_pubsub"`
	// Absent versions are bucketed under "unknown".
	VersionDistribution map[string]int `json:"version_distribution"`
	UniqueVersions      int            `json:"unique_versions"`
	// First-seen version among those sharing the max count; nil when
	// there are no rows.
	ModalVersion *string `json:"modal_version"`
}

type SnapshotSource struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
}

type SnapshotResponse struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	Source          SnapshotSource `json:"source"`
	Stale           bool           `json:"stale"`
	Errors          []string       `json:"errors,omitempty"`
	FetchDurationMs *int64         `json:"fetch_duration_ms,omitempty"`
	Rows            []*PnodeRow    `json:"rows"`
	Stats           SnapshotStats  `json:"stats"`
}

// FilterCriteria for FilterPnodes; zero values mean "no constraint".
// Predicates are ANDed.
type FilterCriteria struct {
	Search  string // case-insensitive substring over pubkey/IP/version
	Version string // exact match
	HasRPC  *bool
}

// CollectionSummary is the aggregate result of one stats-collection
// run. Errors holds at most the first few failure strings.
type CollectionSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Collected int       `json:"collected"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Errors    []string  `json:"errors,omitempty"`
}
