package db

import (
	"context"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnchorRepository struct {
	db *gorm.DB
}

func NewAnchorRepository(db *gorm.DB) *AnchorRepository {
	return &AnchorRepository{db: db}
}

// Upsert stores one anchor per (risk, kind). Replays overwrite the attested
// values but keep the original created_at, so first-observation time is
// preserved across validator retries.
func (r *AnchorRepository) Upsert(ctx context.Context, riskID string, kind domain.AnchorKind, point domain.AnchorPoint) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AnchorModel{
		RiskID:      riskID,
		AnchorType:  string(kind),
		Timestamp:   point.Timestamp,
		TwapE18:     point.TwapE18,
		SnapshotCID: point.SnapshotCID,
		TxHash:      stringPtrIfNotEmpty(point.TxHash),
		CreatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "risk_id"}, {Name: "anchor_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"timestamp", "twap_e18", "snapshot_cid", "tx_hash"}),
		}).
		Create(&model).Error
}

// Window assembles the depeg window for a risk from its start and end
// anchors. Either half may be nil.
func (r *AnchorRepository) Window(ctx context.Context, riskID string) (domain.AnchorWindow, error) {
	if r.db == nil {
		return domain.AnchorWindow{}, errDBUnavailable
	}
	var models []AnchorModel
	if err := r.db.WithContext(ctx).
		Where("risk_id = ? AND anchor_type IN ?", riskID, []string{string(domain.AnchorDepegStart), string(domain.AnchorDepegEnd)}).
		Find(&models).Error; err != nil {
		return domain.AnchorWindow{}, err
	}
	window := domain.AnchorWindow{RiskID: riskID}
	for _, model := range models {
		point := anchorPointFromModel(model)
		switch domain.AnchorKind(model.AnchorType) {
		case domain.AnchorDepegStart:
			window.Start = &point
		case domain.AnchorDepegEnd:
			window.End = &point
		}
	}
	return window, nil
}

// AnchorRow pairs a stored anchor with its risk and kind.
type AnchorRow struct {
	RiskID string
	Kind   domain.AnchorKind
	Point  domain.AnchorPoint
}

// ListAll returns every stored anchor in insertion order, for cache
// hydration at startup.
func (r *AnchorRepository) ListAll(ctx context.Context) ([]AnchorRow, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AnchorModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]AnchorRow, 0, len(models))
	for _, model := range models {
		out = append(out, AnchorRow{
			RiskID: model.RiskID,
			Kind:   domain.AnchorKind(model.AnchorType),
			Point:  anchorPointFromModel(model),
		})
	}
	return out, nil
}

func anchorPointFromModel(model AnchorModel) domain.AnchorPoint {
	return domain.AnchorPoint{
		Timestamp:   model.Timestamp,
		TwapE18:     model.TwapE18,
		SnapshotCID: model.SnapshotCID,
		TxHash:      stringFromPtr(model.TxHash),
		CreatedAt:   model.CreatedAt,
	}
}

type LiquidationRepository struct {
	db *gorm.DB
}

func NewLiquidationRepository(db *gorm.DB) *LiquidationRepository {
	return &LiquidationRepository{db: db}
}

// Upsert stores one evidence row per (risk, liquidation id), keeping the
// original created_at on replay.
func (r *LiquidationRepository) Upsert(ctx context.Context, ev domain.LiquidationEvidence) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := LiquidationModel{
		RiskID:        ev.RiskID,
		LiquidationID: ev.LiquidationID,
		UserAddress:   ev.User,
		Timestamp:     ev.Timestamp,
		TwapE18:       ev.TwapE18,
		HFBeforeE4:    ev.HFBeforeE4,
		HFAfterE4:     ev.HFAfterE4,
		SnapshotCID:   ev.SnapshotCID,
		TxHash:        stringPtrIfNotEmpty(ev.TxHash),
		CreatedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "risk_id"}, {Name: "liquidation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_address", "timestamp", "twap_e18", "hf_before_e4", "hf_after_e4", "snapshot_cid", "tx_hash"}),
		}).
		Create(&model).Error
}

func (r *LiquidationRepository) ListByRisk(ctx context.Context, riskID string) ([]domain.LiquidationEvidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LiquidationModel
	if err := r.db.WithContext(ctx).
		Where("risk_id = ?", riskID).
		Order("timestamp ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LiquidationEvidence, 0, len(models))
	for _, model := range models {
		out = append(out, liquidationFromModel(model))
	}
	return out, nil
}

// ListAll returns every evidence row in insertion order, for cache
// hydration at startup.
func (r *LiquidationRepository) ListAll(ctx context.Context) ([]domain.LiquidationEvidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LiquidationModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LiquidationEvidence, 0, len(models))
	for _, model := range models {
		out = append(out, liquidationFromModel(model))
	}
	return out, nil
}

func liquidationFromModel(model LiquidationModel) domain.LiquidationEvidence {
	return domain.LiquidationEvidence{
		RiskID:        model.RiskID,
		LiquidationID: model.LiquidationID,
		User:          model.UserAddress,
		Timestamp:     model.Timestamp,
		TwapE18:       model.TwapE18,
		HFBeforeE4:    model.HFBeforeE4,
		HFAfterE4:     model.HFAfterE4,
		SnapshotCID:   model.SnapshotCID,
		TxHash:        stringFromPtr(model.TxHash),
		CreatedAt:     model.CreatedAt,
	}
}
