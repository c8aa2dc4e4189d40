package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pnodewatch/config"
	"pnodewatch/models"
)

// maxCollectErrors bounds the error list carried in a collection
// summary; the counts stay exact.
const maxCollectErrors = 10

// StatsSink is the slice of the persistence layer the collector writes
// through. *MongoDBService satisfies it; with persistence disabled the
// writes are no-ops.
type StatsSink interface {
	InsertNetworkSnapshot(ctx context.Context, doc *models.NetworkSnapshotDoc) error
	InsertPnodeSnapshots(ctx context.Context, docs []models.PnodeSnapshotDoc) error
	InsertPnodeStats(ctx context.Context, doc *models.PnodeStatsDoc) error
}

type StatsCollector struct {
	cfg  *config.Config
	prpc *PRPCClient
	sink StatsSink
}

func NewStatsCollector(cfg *config.Config, prpc *PRPCClient, sink StatsSink) *StatsCollector {
	return &StatsCollector{cfg: cfg, prpc: prpc, sink: sink}
}

// CollectStatsFromNodes fans a get-stats call out across rows with
// bounded concurrency and writes each successful sample through the
// sink keyed by pubkey+timestamp. Rows without an RPC endpoint count
// as skipped. The batch always runs to completion: per-node failures
// (including sink write failures) are counted and summarized, never
// propagated.
func (sc *StatsCollector) CollectStatsFromNodes(ctx context.Context, rows []*models.PnodeRow, timestamp time.Time) *models.CollectionSummary {
	if max := sc.cfg.Collect.MaxNodes; max > 0 && len(rows) > max {
		rows = rows[:max]
	}

	// Fleet-level and per-node snapshot rows are written once per run,
	// before the per-node fan-out.
	sc.persistSnapshotRows(ctx, rows, timestamp)

	summary := &models.CollectionSummary{Timestamp: timestamp}
	var summaryMu sync.Mutex

	concurrency := sc.cfg.Collect.Concurrency
	if concurrency <= 0 {
		concurrency = 20
	}
	limiter := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, row := range rows {
		if row.RPCURL() == "" {
			summaryMu.Lock()
			summary.Skipped++
			summaryMu.Unlock()
			continue
		}

		wg.Add(1)
		go func(r *models.PnodeRow) {
			defer wg.Done()

			limiter <- struct{}{}
			defer func() { <-limiter }()

			err := sc.collectOne(ctx, r, timestamp)

			summaryMu.Lock()
			defer summaryMu.Unlock()
			if err != nil {
				summary.Failed++
				if len(summary.Errors) < maxCollectErrors {
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", ShortPubkey(r.Pubkey), collectErrorMessage(err)))
				}
				return
			}
			summary.Collected++
		}(row)
	}

	wg.Wait()

	log.Printf("Stats collection done: %d collected, %d failed, %d skipped of %d nodes",
		summary.Collected, summary.Failed, summary.Skipped, len(rows))
	return summary
}

func (sc *StatsCollector) collectOne(ctx context.Context, row *models.PnodeRow, timestamp time.Time) error {
	statsResp, raw, err := sc.prpc.GetStats(ctx, row.RPCURL(), sc.cfg.CollectTimeout())
	if err != nil {
		return err
	}

	doc := &models.PnodeStatsDoc{
		Timestamp:       timestamp,
		Pubkey:          row.Pubkey,
		CPUPercent:      statsResp.CPUPercent,
		RAMUsed:         statsResp.RAMUsed,
		RAMTotal:        statsResp.RAMTotal,
		UptimeSeconds:   statsResp.Uptime,
		PacketsReceived: statsResp.PacketsReceived,
		PacketsSent:     statsResp.PacketsSent,
		ActiveStreams:   statsResp.ActiveStreams,
		RawResult:       string(raw),
	}

	if err := sc.sink.InsertPnodeStats(ctx, doc); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}
	return nil
}

func (sc *StatsCollector) persistSnapshotRows(ctx context.Context, rows []*models.PnodeRow, timestamp time.Time) {
	stats := ComputeStats(rows)

	networkDoc := &models.NetworkSnapshotDoc{
		Timestamp:           timestamp,
		TotalNodes:          stats.TotalNodes,
		NodesWithRpc:        stats.NodesWithRpc,
		NodesWithPubsub:     stats.NodesWithPubsub,
		UniqueVersions:      stats.UniqueVersions,
		VersionDistribution: stats.VersionDistribution,
	}
	if stats.ModalVersion != nil {
		networkDoc.ModalVersion = *stats.ModalVersion
	}
	if err := sc.sink.InsertNetworkSnapshot(ctx, networkDoc); err != nil {
		log.Printf("Failed to persist network snapshot: %v", err)
	}

	nodeDocs := make([]models.PnodeSnapshotDoc, 0, len(rows))
	for _, row := range rows {
		doc := models.PnodeSnapshotDoc{
			Timestamp:     timestamp,
			Pubkey:        row.Pubkey,
			Version:       versionOrEmpty(row),
			IPAddress:     row.Derived.IPAddress,
			EndpointCount: row.Derived.EndpointCount,
			HasRpc:        row.Derived.HasRPC,
		}
		if row.Pod != nil {
			doc.IsPublic = row.Pod.IsPublic
			doc.UptimeSeconds = row.Pod.UptimeSeconds
			doc.StorageCommitted = row.Pod.StorageCommitted
			doc.StorageUsed = row.Pod.StorageUsed
			doc.StorageUsagePercent = row.Pod.StorageUsagePercent
		}
		nodeDocs = append(nodeDocs, doc)
	}
	if err := sc.sink.InsertPnodeSnapshots(ctx, nodeDocs); err != nil {
		log.Printf("Failed to persist node snapshots: %v", err)
	}
}

// collectErrorMessage translates a per-node failure into its summary
// string. Nodes answering -32601 simply run a build without get-stats;
// that reads as "Method not available" rather than an alarming error.
func collectErrorMessage(err error) string {
	ce, ok := AsCallError(err)
	if !ok {
		return err.Error()
	}
	switch ce.Kind {
	case ErrKindTimeout:
		return "Request timed out"
	case ErrKindNetwork:
		return "Network unreachable"
	case ErrKindRPC:
		if ce.RPCErr.Code == models.RPCErrCodeMethodNotFound {
			return "Method not available"
		}
		return ce.RPCErr.Message
	case ErrKindHTTP:
		return fmt.Sprintf("HTTP error %d", ce.Status)
	default:
		return "Stats fetch failed"
	}
}
