package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/oracle"
)

type fakeRiskOracle struct {
	risks []oracle.Risk
	err   error
}

func (o *fakeRiskOracle) ListRisks(context.Context) ([]oracle.Risk, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.risks, nil
}

func TestPoolList_FromOracle(t *testing.T) {
	twap := "0.997"
	svc := NewPoolService(&fakeRiskOracle{risks: []oracle.Risk{
		{RiskID: testRiskID, PoolID: "curve-usdt-usdc", State: "yellow", UpdatedAt: 1_700_000_000, Metrics: oracle.RiskMetrics{Twap1h: &twap}},
		{RiskID: testLiqID, PoolID: "curve-pyusd-usdc", State: "GREEN"},
	}}, 1)

	pools, err := svc.List(context.Background(), domain.PoolListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].State != domain.PoolStateYellow {
		t.Fatalf("oracle state should map case-insensitively, got %s", pools[0].State)
	}
	if pools[0].Metrics.TWAP == nil || pools[0].Metrics.TWAP.String() != "0.997" {
		t.Fatalf("twap should be parsed, got %v", pools[0].Metrics.TWAP)
	}

	filtered, err := svc.List(context.Background(), domain.PoolListFilter{State: domain.PoolStateGreen})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].PoolID != "curve-pyusd-usdc" {
		t.Fatalf("state filter should apply, got %+v", filtered)
	}
}

func TestPoolList_DegradesOnOracleFailure(t *testing.T) {
	svc := NewPoolService(&fakeRiskOracle{err: errors.New("oracle down")}, 1)

	pools, err := svc.List(context.Background(), domain.PoolListFilter{})
	if err != nil {
		t.Fatalf("listing must not fail when the oracle is down: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("degraded listing should be empty, got %d", len(pools))
	}
}

func TestPoolList_StaticWithoutOracle(t *testing.T) {
	svc := NewPoolService(nil, 1)

	pools, err := svc.List(context.Background(), domain.PoolListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("static catalogue should list both pools, got %d", len(pools))
	}
}

func TestPoolGetByID_UsesStaticCatalogue(t *testing.T) {
	svc := NewPoolService(&fakeRiskOracle{err: errors.New("oracle down")}, 1)

	pool := svc.GetByID(context.Background(), "curve-pyusd-usdc")
	if pool == nil {
		t.Fatal("pricing lookup must not depend on the oracle")
	}
	if pool.State != domain.PoolStateGreen {
		t.Fatalf("unexpected state %s", pool.State)
	}
	if svc.GetByID(context.Background(), "missing") != nil {
		t.Fatal("unknown pool should resolve to nil")
	}
}
