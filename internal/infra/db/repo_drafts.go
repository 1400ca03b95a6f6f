package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func (r *DraftRepository) Create(ctx context.Context, draft domain.PolicyDraft) (domain.PolicyDraft, error) {
	if r.db == nil {
		return domain.PolicyDraft{}, errDBUnavailable
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	model, err := draftModelFromDomain(draft)
	if err != nil {
		return domain.PolicyDraft{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.PolicyDraft{}, err
	}
	return draft, nil
}

func (r *DraftRepository) GetByID(ctx context.Context, id string) (domain.PolicyDraft, error) {
	if r.db == nil {
		return domain.PolicyDraft{}, errDBUnavailable
	}
	var model PolicyDraftModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PolicyDraft{}, domain.NotFound("DRAFT_NOT_FOUND", "policy draft not found")
	}
	if err != nil {
		return domain.PolicyDraft{}, err
	}
	return draftFromModel(model)
}

func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&PolicyDraftModel{}).Error
}

// DeleteOlderThan sweeps abandoned drafts. Signature deadlines are an hour,
// so anything older than the cutoff can never finalize.
func (r *DraftRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&PolicyDraftModel{})
	return res.RowsAffected, res.Error
}

func draftModelFromDomain(draft domain.PolicyDraft) (PolicyDraftModel, error) {
	calldataJSON, err := json.Marshal(draft.Calldata)
	if err != nil {
		return PolicyDraftModel{}, fmt.Errorf("marshal draft calldata: %w", err)
	}
	return PolicyDraftModel{
		ID:               draft.ID,
		Wallet:           draft.Wallet,
		Product:          string(draft.Product),
		PolicyType:       string(draft.PolicyType),
		RiskID:           draft.RiskID,
		TermDays:         int(draft.TermDays),
		InsuredAmount:    draft.InsuredAmount,
		PremiumUSD:       draft.PremiumUSD,
		CoverageCapUSD:   draft.CoverageCapUSD,
		DeductibleBps:    draft.DeductibleBps,
		StartAt:          draft.StartAt,
		ActiveAt:         draft.ActiveAt,
		EndAt:            draft.EndAt,
		TermsHash:        draft.TermsHash,
		Params:           jsonMap(draft.Params),
		PricingBreakdown: jsonMap(draft.Breakdown),
		OnchainCalldata:  calldataJSON,
		Metadata:         jsonMap(draft.Metadata),
		CreatedAt:        draft.CreatedAt,
	}, nil
}

func draftFromModel(model PolicyDraftModel) (domain.PolicyDraft, error) {
	var calldata domain.MintCalldata
	if len(model.OnchainCalldata) > 0 {
		if err := json.Unmarshal(model.OnchainCalldata, &calldata); err != nil {
			return domain.PolicyDraft{}, fmt.Errorf("unmarshal draft calldata: %w", err)
		}
	}
	return domain.PolicyDraft{
		ID:             model.ID,
		Wallet:         model.Wallet,
		Product:        domain.ProductType(model.Product),
		PolicyType:     domain.PolicyType(model.PolicyType),
		RiskID:         model.RiskID,
		TermDays:       domain.TermDays(model.TermDays),
		InsuredAmount:  model.InsuredAmount,
		PremiumUSD:     model.PremiumUSD,
		CoverageCapUSD: model.CoverageCapUSD,
		DeductibleBps:  model.DeductibleBps,
		StartAt:        model.StartAt,
		ActiveAt:       model.ActiveAt,
		EndAt:          model.EndAt,
		TermsHash:      model.TermsHash,
		Params:         fromJSONMap(model.Params),
		Breakdown:      fromJSONMap(model.PricingBreakdown),
		Calldata:       calldata,
		Metadata:       fromJSONMap(model.Metadata),
		CreatedAt:      model.CreatedAt,
	}, nil
}
