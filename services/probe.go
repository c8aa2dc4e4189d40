package services

import (
	"context"
	"sync"
	"time"

	"pnodewatch/config"
	"pnodewatch/models"
)

// errNoRPCEndpoint is the fixed result message for rows that advertise
// no RPC endpoint; those never hit the network.
const errNoRPCEndpoint = "No RPC endpoint advertised"

type ProbeService struct {
	cfg  *config.Config
	prpc *PRPCClient
}

func NewProbeService(cfg *config.Config, prpc *PRPCClient) *ProbeService {
	return &ProbeService{cfg: cfg, prpc: prpc}
}

// ProbeNodes runs a reachability check against every row and returns
// one result per input row, keyed by pubkey. At most concurrency calls
// are in flight at once (config default when <= 0). One node failing,
// timing out or lacking an endpoint never affects its siblings; the
// whole set always settles.
func (ps *ProbeService) ProbeNodes(ctx context.Context, rows []*models.PnodeRow, concurrency int) map[string]*models.ProbeResult {
	if concurrency <= 0 {
		concurrency = ps.cfg.Probe.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	results := make(map[string]*models.ProbeResult, len(rows))
	var resultsMu sync.Mutex

	limiter := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, row := range rows {
		if row.RPCURL() == "" {
			msg := errNoRPCEndpoint
			resultsMu.Lock()
			results[row.Pubkey] = &models.ProbeResult{
				RpcReachable: false,
				Error:        &msg,
				ProbedAt:     time.Now().UTC().Format(time.RFC3339),
			}
			resultsMu.Unlock()
			continue
		}

		wg.Add(1)
		go func(r *models.PnodeRow) {
			defer wg.Done()

			limiter <- struct{}{}
			defer func() { <-limiter }()

			result := ps.probeOne(ctx, r)

			resultsMu.Lock()
			results[r.Pubkey] = result
			resultsMu.Unlock()
		}(row)
	}

	wg.Wait()
	return results
}

func (ps *ProbeService) probeOne(ctx context.Context, row *models.PnodeRow) *models.ProbeResult {
	url := row.RPCURL()
	timeout := ps.cfg.ProbeTimeout()

	result := &models.ProbeResult{
		ProbedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, duration, err := ps.prpc.GetHealth(ctx, url, timeout)
	if err != nil {
		msg := probeErrorMessage(err)
		result.RpcReachable = false
		result.Error = &msg
		return result
	}

	latency := duration.Milliseconds()
	result.RpcReachable = true
	result.LatencyMs = &latency

	// Best-effort version enrichment; the health result stands even if
	// this second call fails.
	if verResp, verErr := ps.prpc.GetVersion(ctx, url, timeout); verErr == nil && verResp.Version != "" {
		version := verResp.Version
		result.RpcVersion = &version
	}

	return result
}

// probeErrorMessage translates a transport error kind into the
// human-readable string surfaced next to the node.
func probeErrorMessage(err error) string {
	ce, ok := AsCallError(err)
	if !ok {
		return "Probe failed"
	}
	switch ce.Kind {
	case ErrKindTimeout:
		return "Request timed out"
	case ErrKindNetwork:
		return "Network unreachable"
	case ErrKindRPC:
		return ce.RPCErr.Message
	default:
		return "Probe failed"
	}
}
