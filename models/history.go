package models

import "time"

// NetworkSnapshotDoc is one fleet-level row written per collection run.
type NetworkSnapshotDoc struct {
	Timestamp           time.Time      `json:"timestamp" bson:"timestamp"`
	TotalNodes          int            `json:"total_nodes" bson:"total_nodes"`
	NodesWithRpc        int            `json:"nodes_with_rpc" bson:"nodes_with_rpc"`
	NodesWithPubsub     int            `json:"nodes_with_pubsub" bson:"nodes_with_pubsub"`
	UniqueVersions      int            `json:"unique_versions" bson:"unique_versions"`
	ModalVersion        string         `json:"modal_version" bson:"modal_version"`
	VersionDistribution map[string]int `json:"version_distribution" bson:"version_distribution"`
}

// PnodeSnapshotDoc is one per-node row written per collection run.
type PnodeSnapshotDoc struct {
	Timestamp           time.Time `json:"timestamp" bson:"timestamp"`
	Pubkey              string    `json:"pubkey" bson:"pubkey"`
	Version             string    `json:"version" bson:"version"`
	IPAddress           string    `json:"ip_address" bson:"ip_address"`
	EndpointCount       int       `json:"endpoint_count" bson:"endpoint_count"`
	HasRpc              bool      `json:"has_rpc" bson:"has_rpc"`
	IsPublic            bool      `json:"is_public" bson:"is_public"`
	UptimeSeconds       int64     `json:"uptime_seconds" bson:"uptime_seconds"`
	StorageCommitted    int64     `json:"storage_committed" bson:"storage_committed"`
	StorageUsed         int64     `json:"storage_used" bson:"storage_used"`
	StorageUsagePercent float64   `json:"storage_usage_percent" bson:"storage_usage_percent"`
}

// PnodeStatsDoc is one live-telemetry sample keyed by pubkey+timestamp.
// RawResult keeps the untouched get-stats payload for audit.
type PnodeStatsDoc struct {
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
	Pubkey          string    `json:"pubkey" bson:"pubkey"`
	CPUPercent      *float64  `json:"cpu_percent,omitempty" bson:"cpu_percent,omitempty"`
	RAMUsed         *int64    `json:"ram_used,omitempty" bson:"ram_used,omitempty"`
	RAMTotal        *int64    `json:"ram_total,omitempty" bson:"ram_total,omitempty"`
	UptimeSeconds   *int64    `json:"uptime_seconds,omitempty" bson:"uptime_seconds,omitempty"`
	PacketsReceived *int64    `json:"packets_received,omitempty" bson:"packets_received,omitempty"`
	PacketsSent     *int64    `json:"packets_sent,omitempty" bson:"packets_sent,omitempty"`
	ActiveStreams   *int64    `json:"active_streams,omitempty" bson:"active_streams,omitempty"`
	RawResult       string    `json:"raw_result,omitempty" bson:"raw_result,omitempty"`
}
