package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"

	"github.com/shopspring/decimal"
)

// PoolService exposes the catalogue of monitored pools. Listing prefers
// live oracle risk data and degrades to an empty list when the oracle is
// down; pricing lookups use the static catalogue so quotes never depend on
// oracle availability.
type PoolService struct {
	oracle  RiskOracle
	chainID uint64
	static  []domain.PoolSummary
}

func NewPoolService(riskOracle RiskOracle, chainID uint64) *PoolService {
	return &PoolService{
		oracle:  riskOracle,
		chainID: chainID,
		static:  staticCatalogue(chainID),
	}
}

func staticCatalogue(chainID uint64) []domain.PoolSummary {
	now := time.Now().UTC()
	twapPar := decimal.NewFromInt(1)
	twapOff := decimal.RequireFromString("0.998")
	reservePY := 0.62
	reserveUT := 0.38
	return []domain.PoolSummary{
		{
			PoolID:  "curve-pyusd-usdc",
			ChainID: chainID,
			Name:    "Curve PYUSD/USDC",
			Address: "0xPoolPYUSDUSDC",
			RiskID:  chain.HashUTF8("curve-pyusd-usdc"),
			State:   domain.PoolStateGreen,
			Metrics: domain.PoolMetrics{TWAP: &twapPar, ReserveRatio: &reservePY, UpdatedAt: &now},
		},
		{
			PoolID:  "curve-usdt-usdc",
			ChainID: chainID,
			Name:    "Curve USDT/USDC",
			Address: "0xPoolUSDTUSDC",
			RiskID:  chain.HashUTF8("curve-usdt-usdc"),
			State:   domain.PoolStateYellow,
			Metrics: domain.PoolMetrics{TWAP: &twapOff, ReserveRatio: &reserveUT, UpdatedAt: &now},
		},
	}
}

// List maps live oracle risks to pool summaries. Oracle failures yield an
// empty list so the catalogue endpoint stays usable during outages.
func (s *PoolService) List(ctx context.Context, filter domain.PoolListFilter) ([]domain.PoolSummary, error) {
	if s.oracle == nil {
		return s.listStatic(filter), nil
	}
	risks, err := s.oracle.ListRisks(ctx)
	if err != nil {
		log.Printf("pool listing degraded, oracle unavailable: %v", err)
		return []domain.PoolSummary{}, nil
	}

	out := make([]domain.PoolSummary, 0, len(risks))
	for _, risk := range risks {
		state := mapRiskState(risk.State)
		if filter.State != "" && state != filter.State {
			continue
		}
		poolID := risk.PoolID
		if poolID == "" {
			poolID = risk.RiskID
		}
		summary := domain.PoolSummary{
			PoolID:  poolID,
			ChainID: s.chainID,
			Name:    poolID,
			Address: poolID,
			RiskID:  risk.RiskID,
			State:   state,
		}
		if risk.Metrics.Twap1h != nil {
			if twap, err := decimal.NewFromString(*risk.Metrics.Twap1h); err == nil {
				summary.Metrics.TWAP = &twap
			}
		}
		if risk.UpdatedAt > 0 {
			updated := time.Unix(risk.UpdatedAt, 0).UTC()
			summary.Metrics.UpdatedAt = &updated
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetByID resolves a pool from the static catalogue for pricing.
func (s *PoolService) GetByID(_ context.Context, poolID string) *domain.PoolSummary {
	for i := range s.static {
		if s.static[i].PoolID == poolID {
			return &s.static[i]
		}
	}
	return nil
}

func (s *PoolService) listStatic(filter domain.PoolListFilter) []domain.PoolSummary {
	out := make([]domain.PoolSummary, 0, len(s.static))
	for _, pool := range s.static {
		if filter.State != "" && pool.State != filter.State {
			continue
		}
		if filter.ChainID != 0 && pool.ChainID != filter.ChainID {
			continue
		}
		out = append(out, pool)
	}
	return out
}

func mapRiskState(state string) domain.PoolState {
	switch strings.ToUpper(state) {
	case "YELLOW":
		return domain.PoolStateYellow
	case "RED":
		return domain.PoolStateRed
	default:
		return domain.PoolStateGreen
	}
}
