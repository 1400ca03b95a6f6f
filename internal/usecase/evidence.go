package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"
)

// EvidenceLedger is the authority for anchored depeg windows and
// liquidation evidence. It keeps a cache hydrated from the store on first
// use; every write goes through the on-chain attestation path before it is
// persisted and cached.
type EvidenceLedger struct {
	anchors      AnchorStore
	liquidations LiquidationStore
	policies     PolicyStore
	gateway      ContractGateway

	mu        sync.RWMutex
	windows   map[string]*domain.AnchorWindow
	evidence  map[string]map[string]domain.LiquidationEvidence
	bootstrap sync.Once
	bootErr   error
}

func NewEvidenceLedger(anchors AnchorStore, liquidations LiquidationStore, policies PolicyStore, gateway ContractGateway) *EvidenceLedger {
	return &EvidenceLedger{
		anchors:      anchors,
		liquidations: liquidations,
		policies:     policies,
		gateway:      gateway,
		windows:      make(map[string]*domain.AnchorWindow),
		evidence:     make(map[string]map[string]domain.LiquidationEvidence),
	}
}

// ensureHydrated loads the cache from the store exactly once; concurrent
// callers fan in on the same load.
func (l *EvidenceLedger) ensureHydrated(ctx context.Context) error {
	l.bootstrap.Do(func() {
		rows, err := l.anchors.ListAll(ctx)
		if err != nil {
			l.bootErr = fmt.Errorf("hydrate anchors: %w", err)
			return
		}
		evidence, err := l.liquidations.ListAll(ctx)
		if err != nil {
			l.bootErr = fmt.Errorf("hydrate liquidations: %w", err)
			return
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		for _, row := range rows {
			point := row.Point
			window := l.windowLocked(row.RiskID)
			switch row.Kind {
			case domain.AnchorDepegStart:
				window.Start = &point
			case domain.AnchorDepegEnd:
				window.End = &point
			}
		}
		for _, ev := range evidence {
			l.evidenceLocked(ev.RiskID)[ev.LiquidationID] = ev
		}
	})
	return l.bootErr
}

func (l *EvidenceLedger) windowLocked(riskID string) *domain.AnchorWindow {
	window, ok := l.windows[riskID]
	if !ok {
		window = &domain.AnchorWindow{RiskID: riskID}
		l.windows[riskID] = window
	}
	return window
}

func (l *EvidenceLedger) evidenceLocked(riskID string) map[string]domain.LiquidationEvidence {
	records, ok := l.evidence[riskID]
	if !ok {
		records = make(map[string]domain.LiquidationEvidence)
		l.evidence[riskID] = records
	}
	return records
}

// PublishAnchor dispatches a validator attestation by kind: window halves
// update the depeg window, liquidation kinds record keyed evidence and
// stamp the matching policies.
func (l *EvidenceLedger) PublishAnchor(ctx context.Context, env domain.AnchorEnvelope) error {
	if !env.Kind.Valid() {
		return domain.Validation("INVALID_ANCHOR_TYPE", "unknown anchor type")
	}
	if err := l.ensureHydrated(ctx); err != nil {
		return err
	}

	switch env.Kind {
	case domain.AnchorDepegStart, domain.AnchorDepegEnd:
		return l.publishWindowAnchor(ctx, env)
	default:
		return l.publishLiquidation(ctx, env)
	}
}

func (l *EvidenceLedger) publishWindowAnchor(ctx context.Context, env domain.AnchorEnvelope) error {
	riskID, point, err := parseAnchorPoint(env)
	if err != nil {
		return err
	}

	twap, err := chain.NormalizeUint(point.TwapE18, "twapE18")
	if err != nil {
		return err
	}
	var txHash string
	if env.Kind == domain.AnchorDepegStart {
		txHash, err = l.gateway.AnchorDepegStart(ctx, riskID, point.Timestamp, twap, point.SnapshotCID)
	} else {
		txHash, err = l.gateway.AnchorDepegEnd(ctx, riskID, point.Timestamp, twap, point.SnapshotCID)
	}
	if err != nil {
		return err
	}
	point.TxHash = txHash

	if err := l.anchors.Upsert(ctx, riskID, env.Kind, point); err != nil {
		return err
	}

	l.mu.Lock()
	window := l.windowLocked(riskID)
	if env.Kind == domain.AnchorDepegStart {
		window.Start = &point
	} else {
		window.End = &point
	}
	l.mu.Unlock()
	return nil
}

func (l *EvidenceLedger) publishLiquidation(ctx context.Context, env domain.AnchorEnvelope) error {
	ev, err := parseLiquidationEvidence(env)
	if err != nil {
		return err
	}

	txHash, err := l.gateway.AnchorLiquidation(ctx, ev)
	if err != nil {
		return err
	}
	ev.TxHash = txHash

	if err := l.liquidations.Upsert(ctx, ev); err != nil {
		return err
	}
	if err := l.policies.MergeMetadataByRiskAndOwner(ctx, ev.RiskID, ev.User, map[string]any{
		"lastLiquidationId": ev.LiquidationID,
	}); err != nil {
		return err
	}

	l.mu.Lock()
	l.evidenceLocked(ev.RiskID)[ev.LiquidationID] = ev
	l.mu.Unlock()
	return nil
}

// Window returns the anchored depeg window for a risk. Either half may be
// nil when not yet attested.
func (l *EvidenceLedger) Window(ctx context.Context, riskID string) (domain.AnchorWindow, error) {
	if err := l.ensureHydrated(ctx); err != nil {
		return domain.AnchorWindow{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	window, ok := l.windows[riskID]
	if !ok {
		return domain.AnchorWindow{RiskID: riskID}, nil
	}
	out := domain.AnchorWindow{RiskID: riskID}
	if window.Start != nil {
		start := *window.Start
		out.Start = &start
	}
	if window.End != nil {
		end := *window.End
		out.End = &end
	}
	return out, nil
}

// Evidence returns the liquidation evidence keyed by (riskID, liquidationID).
func (l *EvidenceLedger) Evidence(ctx context.Context, riskID, liquidationID string) (*domain.LiquidationEvidence, error) {
	if err := l.ensureHydrated(ctx); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	records, ok := l.evidence[riskID]
	if !ok {
		return nil, nil
	}
	ev, ok := records[liquidationID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// RecordWhitelistChange acknowledges whitelist admin requests. Persistence
// is deferred to the on-chain allowlist; the endpoint only validates shape.
func (l *EvidenceLedger) RecordWhitelistChange(_ context.Context, req domain.WhitelistRequest) error {
	switch req.Action {
	case domain.WhitelistAdd, domain.WhitelistRemove, domain.WhitelistUpdate:
		return nil
	default:
		return domain.Validation("INVALID_WHITELIST_ACTION", "action must be ADD, REMOVE or UPDATE")
	}
}

func parseAnchorPoint(env domain.AnchorEnvelope) (string, domain.AnchorPoint, error) {
	riskIDSource, _ := env.Payload["riskId"].(string)
	if riskIDSource == "" {
		riskIDSource, _ = env.Payload["poolId"].(string)
	}
	if riskIDSource == "" {
		return "", domain.AnchorPoint{}, domain.Validation("INVALID_ANCHOR", "anchor payload is missing riskId")
	}

	timestampSource := env.Payload["timestamp"]
	if timestampSource == nil {
		timestampSource = env.Payload["S"]
	}
	timestamp, err := chain.NormalizeUint(timestampSource, "timestamp")
	if err != nil {
		return "", domain.AnchorPoint{}, err
	}
	if timestamp.Sign() <= 0 {
		return "", domain.AnchorPoint{}, domain.Validation("INVALID_ANCHOR", "anchor timestamp must be positive")
	}

	twapSource := env.Payload["twapE18"]
	if twapSource == nil {
		twapSource = env.Payload["twap"]
	}
	if twapSource == nil {
		twapSource = "0"
	}
	twap, err := chain.NormalizeUint(twapSource, "twapE18")
	if err != nil {
		return "", domain.AnchorPoint{}, err
	}

	riskID, err := chain.NormalizeBytes32(riskIDSource, "riskId")
	if err != nil {
		return "", domain.AnchorPoint{}, err
	}
	snapshotCID, err := chain.NormalizeBytes32(env.SnapshotCID, "snapshotCid")
	if err != nil {
		return "", domain.AnchorPoint{}, err
	}

	return riskID, domain.AnchorPoint{
		Timestamp:   timestamp.Int64(),
		TwapE18:     twap.String(),
		SnapshotCID: snapshotCID,
	}, nil
}

func parseLiquidationEvidence(env domain.AnchorEnvelope) (domain.LiquidationEvidence, error) {
	riskIDSource, _ := env.Payload["riskId"].(string)
	liquidationIDSource, _ := env.Payload["liquidationId"].(string)
	userSource, _ := env.Payload["user"].(string)
	if riskIDSource == "" || liquidationIDSource == "" || userSource == "" {
		return domain.LiquidationEvidence{}, domain.Validation("INVALID_LIQUIDATION", "liquidation payload is missing identifiers")
	}

	timestampSource := env.Payload["timestamp"]
	if timestampSource == nil {
		timestampSource = env.Payload["S"]
	}
	timestamp, err := chain.NormalizeUint(timestampSource, "timestamp")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	if timestamp.Sign() <= 0 {
		return domain.LiquidationEvidence{}, domain.Validation("INVALID_LIQUIDATION", "liquidation timestamp must be positive")
	}

	twapSource := env.Payload["twapE18"]
	if twapSource == nil {
		twapSource = "0"
	}
	twap, err := chain.NormalizeUint(twapSource, "twapE18")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	hfBefore, err := chain.NormalizeUint(valueOrZero(env.Payload["hfBeforeE4"]), "hfBeforeE4")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	hfAfter, err := chain.NormalizeUint(valueOrZero(env.Payload["hfAfterE4"]), "hfAfterE4")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}

	riskID, err := chain.NormalizeBytes32(riskIDSource, "riskId")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	liquidationID, err := chain.NormalizeBytes32(liquidationIDSource, "liquidationId")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	user, err := chain.NormalizeAddress(userSource)
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}
	snapshotCID, err := chain.NormalizeBytes32(env.SnapshotCID, "snapshotCid")
	if err != nil {
		return domain.LiquidationEvidence{}, err
	}

	return domain.LiquidationEvidence{
		RiskID:        riskID,
		LiquidationID: liquidationID,
		User:          user,
		Timestamp:     timestamp.Int64(),
		TwapE18:       twap.String(),
		HFBeforeE4:    hfBefore.Int64(),
		HFAfterE4:     hfAfter.Int64(),
		SnapshotCID:   snapshotCID,
	}, nil
}

func valueOrZero(v any) any {
	if v == nil {
		return 0
	}
	return v
}
