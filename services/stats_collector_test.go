package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pnodewatch/models"
)

// memorySink records every write so tests can assert on exactly what
// the collector persisted.
type memorySink struct {
	mu        sync.Mutex
	network   []*models.NetworkSnapshotDoc
	snapshots [][]models.PnodeSnapshotDoc
	stats     []*models.PnodeStatsDoc

	failStats bool
}

func (m *memorySink) InsertNetworkSnapshot(ctx context.Context, doc *models.NetworkSnapshotDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.network = append(m.network, doc)
	return nil
}

func (m *memorySink) InsertPnodeSnapshots(ctx context.Context, docs []models.PnodeSnapshotDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, docs)
	return nil
}

func (m *memorySink) InsertPnodeStats(ctx context.Context, doc *models.PnodeStatsDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStats {
		return errors.New("disk full")
	}
	m.stats = append(m.stats, doc)
	return nil
}

func (m *memorySink) statsDocs() []*models.PnodeStatsDoc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.PnodeStatsDoc(nil), m.stats...)
}

func statsFixture() map[string]any {
	return map[string]any{
		"cpu_percent":      12.5,
		"ram_used":         1024,
		"ram_total":        4096,
		"uptime":           3600,
		"packets_received": 100,
		"packets_sent":     90,
		"active_streams":   3,
	}
}

func TestCollectStats_PersistsSamples(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		if method != MethodStats {
			t.Fatalf("unexpected method %q", method)
		}
		return statsFixture(), nil
	})
	defer s.Close()

	cfg := newTestConfig(s.URL)
	sink := &memorySink{}
	sc := NewStatsCollector(cfg, NewPRPCClient(cfg), sink)

	ts := time.Now().UTC()
	rows := []*models.PnodeRow{
		testRow("node-a", hostPort(s.URL)),
		testRow("node-b", hostPort(s.URL)),
		testRow("node-no-rpc", ""),
	}

	summary := sc.CollectStatsFromNodes(context.Background(), rows, ts)
	if summary.Collected != 2 || summary.Failed != 0 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.Timestamp.Equal(ts) {
		t.Fatalf("summary keeps the run timestamp, got %v", summary.Timestamp)
	}

	docs := sink.statsDocs()
	if len(docs) != 2 {
		t.Fatalf("expected 2 persisted samples, got %d", len(docs))
	}
	for _, doc := range docs {
		if !doc.Timestamp.Equal(ts) {
			t.Fatalf("samples share the run timestamp, got %v", doc.Timestamp)
		}
		if doc.CPUPercent == nil || *doc.CPUPercent != 12.5 {
			t.Fatalf("cpu_percent not carried over: %+v", doc)
		}
		if doc.RAMUsed == nil || *doc.RAMUsed != 1024 {
			t.Fatalf("ram_used not carried over: %+v", doc)
		}
		if doc.RawResult == "" {
			t.Fatalf("raw result payload should be kept for audit")
		}
	}

	if len(sink.network) != 1 {
		t.Fatalf("one network snapshot per run, got %d", len(sink.network))
	}
	if sink.network[0].TotalNodes != 3 {
		t.Fatalf("network snapshot covers all rows, got %d", sink.network[0].TotalNodes)
	}
	if len(sink.snapshots) != 1 || len(sink.snapshots[0]) != 3 {
		t.Fatalf("one per-node snapshot batch covering all rows expected")
	}
}

func TestCollectStats_MethodNotFoundIsNotAlarming(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		return nil, &models.RPCError{Code: -32601, Message: "Method not found"}
	})
	defer s.Close()

	cfg := newTestConfig(s.URL)
	sink := &memorySink{}
	sc := NewStatsCollector(cfg, NewPRPCClient(cfg), sink)

	rows := []*models.PnodeRow{
		testRow("node-old-build", hostPort(s.URL)),
		testRow("node-dead", "127.0.0.1:1"),
	}

	summary := sc.CollectStatsFromNodes(context.Background(), rows, time.Now().UTC())
	if summary.Collected != 0 || summary.Failed != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	var sawMissing, sawNetwork bool
	for _, msg := range summary.Errors {
		if strings.Contains(msg, "Method not available") {
			sawMissing = true
		}
		if strings.Contains(msg, "Network unreachable") {
			sawNetwork = true
		}
	}
	if !sawMissing {
		t.Fatalf("-32601 should read as unavailable, errors: %v", summary.Errors)
	}
	if !sawNetwork {
		t.Fatalf("one failing node must not mask the other, errors: %v", summary.Errors)
	}
	if len(sink.statsDocs()) != 0 {
		t.Fatalf("failed nodes must not produce samples")
	}
}

func TestCollectStats_ErrorListIsCapped(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1")
	sink := &memorySink{}
	sc := NewStatsCollector(cfg, NewPRPCClient(cfg), sink)

	rows := make([]*models.PnodeRow, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, testRow(fmt.Sprintf("node-%02d", i), "127.0.0.1:1"))
	}

	summary := sc.CollectStatsFromNodes(context.Background(), rows, time.Now().UTC())
	if summary.Failed != 25 {
		t.Fatalf("failure count stays exact, got %d", summary.Failed)
	}
	if len(summary.Errors) != maxCollectErrors {
		t.Fatalf("error list should cap at %d, got %d", maxCollectErrors, len(summary.Errors))
	}
}

func TestCollectStats_SinkFailureCountsAsFailed(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		return statsFixture(), nil
	})
	defer s.Close()

	cfg := newTestConfig(s.URL)
	sink := &memorySink{failStats: true}
	sc := NewStatsCollector(cfg, NewPRPCClient(cfg), sink)

	summary := sc.CollectStatsFromNodes(context.Background(), []*models.PnodeRow{
		testRow("node-a", hostPort(s.URL)),
	}, time.Now().UTC())

	if summary.Collected != 0 || summary.Failed != 1 {
		t.Fatalf("a failed write is a failed node: %+v", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "sink write failed") {
		t.Fatalf("errors = %v", summary.Errors)
	}
}

func TestCollectStats_MaxNodesCapsTheRun(t *testing.T) {
	s := newRPCServer(t, func(method string) (any, *models.RPCError) {
		return statsFixture(), nil
	})
	defer s.Close()

	cfg := newTestConfig(s.URL)
	cfg.Collect.MaxNodes = 2
	sink := &memorySink{}
	sc := NewStatsCollector(cfg, NewPRPCClient(cfg), sink)

	rows := []*models.PnodeRow{
		testRow("node-a", hostPort(s.URL)),
		testRow("node-b", hostPort(s.URL)),
		testRow("node-c", hostPort(s.URL)),
	}

	summary := sc.CollectStatsFromNodes(context.Background(), rows, time.Now().UTC())
	if summary.Collected != 2 {
		t.Fatalf("cap at %d nodes, collected %d", cfg.Collect.MaxNodes, summary.Collected)
	}
	if len(sink.statsDocs()) != 2 {
		t.Fatalf("persistence follows the cap, got %d docs", len(sink.statsDocs()))
	}
	if len(sink.snapshots[0]) != 2 {
		t.Fatalf("the snapshot batch follows the cap too, got %d", len(sink.snapshots[0]))
	}
}
