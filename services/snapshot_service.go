package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"pnodewatch/config"
	"pnodewatch/models"
	"pnodewatch/utils"
)

const snapshotCacheKey = "fleet"

// unknownVersionBucket is where rows without a version land in the
// distribution, so they still count toward unique_versions.
const unknownVersionBucket = "unknown"

type SnapshotService struct {
	cfg    *config.Config
	prpc   *PRPCClient
	caches *Caches
	geo    *utils.GeoResolver
}

func NewSnapshotService(cfg *config.Config, prpc *PRPCClient, caches *Caches, geo *utils.GeoResolver) *SnapshotService {
	return &SnapshotService{
		cfg:    cfg,
		prpc:   prpc,
		caches: caches,
		geo:    geo,
	}
}

// GetSnapshot returns the current fleet snapshot. It never fails:
// transport errors degrade to a stale copy of the last good snapshot,
// or to an empty error-carrying response on a cold start. A cache hit
// is returned verbatim, stats included.
func (s *SnapshotService) GetSnapshot(ctx context.Context) *models.SnapshotResponse {
	if cached, ok := s.caches.Snapshot.Get(snapshotCacheKey); ok {
		return cached
	}

	source := models.SnapshotSource{
		Endpoint: s.cfg.PRPC.Endpoint,
		Method:   MethodClusterNodes,
	}

	records, duration, err := s.prpc.GetClusterNodes(ctx)
	if err != nil {
		if stale, ok := s.caches.Snapshot.GetStale(snapshotCacheKey); ok {
			log.Printf("Snapshot fetch failed, serving stale copy (%d rows): %v", len(stale.Rows), err)
			degraded := *stale
			degraded.Stale = true
			degraded.Errors = []string{err.Error()}
			return &degraded
		}

		// Cold start with nothing to fall back on. Not stale: there is
		// no previous data to be stale relative to.
		log.Printf("Snapshot fetch failed with no cached fallback: %v", err)
		return &models.SnapshotResponse{
			GeneratedAt: time.Now().UTC(),
			Source:      source,
			Stale:       false,
			Errors:      []string{err.Error()},
			Rows:        []*models.PnodeRow{},
			Stats: models.SnapshotStats{
				VersionDistribution: map[string]int{},
			},
		}
	}

	rows := make([]*models.PnodeRow, 0, len(records))
	malformed := 0
	for _, raw := range records {
		row, mapErr := s.mapClusterNode(raw)
		if mapErr != nil {
			malformed++
			continue
		}
		rows = append(rows, row)
	}

	s.mergePodInfo(ctx, rows)

	durationMs := duration.Milliseconds()
	resp := &models.SnapshotResponse{
		GeneratedAt:     time.Now().UTC(),
		Source:          source,
		Stale:           false,
		FetchDurationMs: &durationMs,
		Rows:            rows,
		Stats:           ComputeStats(rows),
	}
	if malformed > 0 {
		resp.Errors = []string{fmt.Sprintf("skipped %d malformed cluster node records", malformed)}
	}

	s.caches.Snapshot.Set(snapshotCacheKey, resp, s.cfg.SnapshotCacheTTL())
	return resp
}

// mapClusterNode turns one raw gossip record into a canonical row. The
// raw payload rides along untouched for inspection.
func (s *SnapshotService) mapClusterNode(raw json.RawMessage) (*models.PnodeRow, error) {
	var node models.ClusterNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("malformed cluster node record: %w", err)
	}
	if node.Pubkey == "" {
		return nil, fmt.Errorf("cluster node record without pubkey")
	}

	endpoints := make(map[string]string)
	for name, value := range map[string]*string{
		"gossip":          node.Gossip,
		"rpc":             node.RPC,
		"pubsub":          node.Pubsub,
		"tpu":             node.TPU,
		"tpuForwards":     node.TPUForwards,
		"tpuForwardsQuic": node.TPUForwardsQUIC,
		"tpuQuic":         node.TPUQUIC,
		"tpuVote":         node.TPUVote,
		"tvu":             node.TVU,
		"serveRepair":     node.ServeRepair,
	} {
		if value != nil && *value != "" {
			endpoints[name] = *value
		}
	}

	row := &models.PnodeRow{
		Pubkey:       node.Pubkey,
		Version:      node.Version,
		ShredVersion: node.ShredVersion,
		FeatureSet:   node.FeatureSet,
		Endpoints:    endpoints,
		Derived: models.DerivedFields{
			HasRPC:        endpoints["rpc"] != "",
			HasPubsub:     endpoints["pubsub"] != "",
			ShortPubkey:   ShortPubkey(node.Pubkey),
			IPAddress:     hostOf(endpoints["gossip"]),
			EndpointCount: len(endpoints),
		},
		Raw: raw,
	}

	if row.Version != nil {
		status, needsUpgrade, severity := utils.CheckVersionStatus(*row.Version, nil)
		row.VersionStatus = status
		row.IsUpgradeNeeded = needsUpgrade
		row.UpgradeSeverity = severity
	} else {
		row.VersionStatus = "unknown"
		row.UpgradeSeverity = "info"
	}

	if s.geo != nil && row.Derived.IPAddress != "" {
		country, city, lat, lon := s.geo.Lookup(row.Derived.IPAddress)
		row.Country = country
		row.City = city
		row.Lat = lat
		row.Lon = lon
	}

	return row, nil
}

// mergePodInfo attaches per-pod detail from get-pods-with-stats.
// Best-effort: a failed call leaves rows without pod blocks.
func (s *SnapshotService) mergePodInfo(ctx context.Context, rows []*models.PnodeRow) {
	podsResp, err := s.prpc.GetPodsWithStats(ctx)
	if err != nil {
		log.Printf("get-pods-with-stats unavailable, rows stay without pod detail: %v", err)
		return
	}

	byPubkey := make(map[string]*models.Pod, len(podsResp.Pods))
	for i := range podsResp.Pods {
		pod := &podsResp.Pods[i]
		if pod.Pubkey != "" {
			byPubkey[pod.Pubkey] = pod
		}
	}

	for _, row := range rows {
		pod, ok := byPubkey[row.Pubkey]
		if !ok {
			continue
		}

		host := hostOf(pod.Address)
		rpcPort := pod.RpcPort
		if rpcPort == 0 {
			rpcPort = 6000
		}

		row.Pod = &models.PodInfo{
			Address:             pod.Address,
			IsPublic:            pod.IsPublic,
			LastSeenTimestamp:   pod.LastSeenTimestamp,
			RpcPort:             rpcPort,
			RpcURL:              "http://" + net.JoinHostPort(host, strconv.Itoa(rpcPort)),
			UptimeSeconds:       pod.Uptime,
			StorageCommitted:    pod.StorageCommitted,
			StorageUsed:         pod.StorageUsed,
			StorageUsagePercent: pod.StorageUsagePercent,
			Credits:             pod.Credits,
		}
	}
}

// GetPnodeByID resolves one row by pubkey, via the per-node cache and
// then a (possibly cached) snapshot scan. nil means not found, which
// after a failed snapshot fetch is indistinguishable from "fleet list
// unavailable"; callers that care should check GetSnapshot themselves.
func (s *SnapshotService) GetPnodeByID(ctx context.Context, pubkey string) *models.PnodeRow {
	if row, ok := s.caches.Nodes.Get(pubkey); ok {
		return row
	}

	snapshot := s.GetSnapshot(ctx)
	for _, row := range snapshot.Rows {
		if row.Pubkey == pubkey {
			s.caches.Nodes.Set(pubkey, row, s.cfg.NodeCacheTTL())
			return row
		}
	}
	return nil
}

// ComputeStats aggregates rows into the snapshot summary. The modal
// version tie-break is first occurrence in row order.
func ComputeStats(rows []*models.PnodeRow) models.SnapshotStats {
	stats := models.SnapshotStats{
		TotalNodes:          len(rows),
		VersionDistribution: map[string]int{},
	}

	firstSeen := make([]string, 0)
	for _, row := range rows {
		if row.Derived.HasRPC {
			stats.NodesWithRpc++
		}
		if row.Derived.HasPubsub {
			stats.NodesWithPubsub++
		}

		bucket := unknownVersionBucket
		if row.Version != nil && *row.Version != "" {
			bucket = *row.Version
		}
		if _, seen := stats.VersionDistribution[bucket]; !seen {
			firstSeen = append(firstSeen, bucket)
		}
		stats.VersionDistribution[bucket]++
	}

	stats.UniqueVersions = len(stats.VersionDistribution)

	best := 0
	for _, bucket := range firstSeen {
		if count := stats.VersionDistribution[bucket]; count > best {
			best = count
			modal := bucket
			stats.ModalVersion = &modal
		}
	}

	return stats
}

// FilterPnodes applies criteria to rows and returns the matches in
// input order. Pure: rows are never mutated.
func FilterPnodes(rows []*models.PnodeRow, criteria models.FilterCriteria) []*models.PnodeRow {
	search := strings.ToLower(strings.TrimSpace(criteria.Search))

	out := make([]*models.PnodeRow, 0, len(rows))
	for _, row := range rows {
		if search != "" {
			haystack := strings.ToLower(row.Pubkey + " " + row.Derived.IPAddress + " " + versionOrEmpty(row))
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		if criteria.Version != "" && versionOrEmpty(row) != criteria.Version {
			continue
		}
		if criteria.HasRPC != nil && row.Derived.HasRPC != *criteria.HasRPC {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Sortable fields for SortPnodes. Anything else falls back to pubkey.
const (
	SortByPubkey    = "pubkey"
	SortByVersion   = "version"
	SortByEndpoints = "endpoints"
	SortByStorage   = "storage"
	SortByUptime    = "uptime"
)

// SortPnodes returns a sorted copy of rows. The sort is stable: ties
// retain their relative input order.
func SortPnodes(rows []*models.PnodeRow, field string, order string) []*models.PnodeRow {
	out := make([]*models.PnodeRow, len(rows))
	copy(out, rows)

	less := func(a, b *models.PnodeRow) bool {
		switch field {
		case SortByVersion:
			return versionOrEmpty(a) < versionOrEmpty(b)
		case SortByEndpoints:
			return a.Derived.EndpointCount < b.Derived.EndpointCount
		case SortByStorage:
			return podStorageUsed(a) < podStorageUsed(b)
		case SortByUptime:
			return podUptime(a) < podUptime(b)
		default:
			return a.Pubkey < b.Pubkey
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if order == "desc" {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// ShortPubkey is the truncated display form used in tables.
func ShortPubkey(pubkey string) string {
	if len(pubkey) <= 8 {
		return pubkey
	}
	return pubkey[:4] + "..." + pubkey[len(pubkey)-4:]
}

func hostOf(hostport string) string {
	if hostport == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

func versionOrEmpty(row *models.PnodeRow) string {
	if row.Version == nil {
		return ""
	}
	return *row.Version
}

func podStorageUsed(row *models.PnodeRow) int64 {
	if row.Pod == nil {
		return 0
	}
	return row.Pod.StorageUsed
}

func podUptime(row *models.PnodeRow) int64 {
	if row.Pod == nil {
		return 0
	}
	return row.Pod.UptimeSeconds
}
