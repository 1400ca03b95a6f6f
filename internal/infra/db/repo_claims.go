package db

import (
	"context"
	"errors"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Create(ctx context.Context, claim domain.Claim) (domain.Claim, error) {
	if r.db == nil {
		return domain.Claim{}, errDBUnavailable
	}
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}
	model := claimModelFromDomain(claim)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Claim{}, err
	}
	return claim, nil
}

func (r *ClaimRepository) GetByID(ctx context.Context, id string) (domain.Claim, error) {
	if r.db == nil {
		return domain.Claim{}, errDBUnavailable
	}
	var model ClaimModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Claim{}, domain.NotFound("CLAIM_NOT_FOUND", "claim not found")
	}
	if err != nil {
		return domain.Claim{}, err
	}
	return claimFromModel(model), nil
}

func (r *ClaimRepository) ListByPolicy(ctx context.Context, policyID string) ([]domain.Claim, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ClaimModel
	if err := r.db.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Claim, 0, len(models))
	for _, model := range models {
		out = append(out, claimFromModel(model))
	}
	return out, nil
}

// UpdateStatus advances a claim. An empty txHash keeps the stored one.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id string, status domain.ClaimStatus, txHash string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	updates := map[string]any{"status": string(status)}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}
	return r.db.WithContext(ctx).
		Model(&ClaimModel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListQueued joins queued claims to their policies, oldest first, for the
// operator review queue.
func (r *ClaimRepository) ListQueued(ctx context.Context) ([]domain.ClaimQueueItem, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	type queuedRow struct {
		ClaimModel
		Wallet string
		RiskID string
	}
	var rows []queuedRow
	if err := r.db.WithContext(ctx).
		Table("claims").
		Select("claims.*, policies.wallet AS wallet, policies.risk_id AS risk_id").
		Joins("JOIN policies ON claims.policy_id = policies.id").
		Where("claims.status = ?", string(domain.ClaimStatusQueued)).
		Order("claims.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ClaimQueueItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ClaimQueueItem{
			ClaimID:  row.ID,
			PolicyID: row.PolicyID,
			Product:  domain.ProductType(row.Product),
			RiskID:   row.RiskID,
			Wallet:   row.Wallet,
			Payout:   row.Payout,
			QueuedAt: row.ClaimModel.CreatedAt,
			Status:   domain.ClaimStatus(row.ClaimModel.Status),
		})
	}
	return out, nil
}

func claimModelFromDomain(claim domain.Claim) ClaimModel {
	return ClaimModel{
		ID:        claim.ID,
		PolicyID:  claim.PolicyID,
		Product:   string(claim.Product),
		Status:    string(claim.Status),
		Payout:    claim.Payout,
		Payload:   jsonMap(claim.Payload),
		Signature: stringPtrIfNotEmpty(claim.Signature),
		ExpiresAt: claim.ExpiresAt,
		TxHash:    stringPtrIfNotEmpty(claim.TxHash),
		CreatedAt: claim.CreatedAt,
	}
}

func claimFromModel(model ClaimModel) domain.Claim {
	return domain.Claim{
		ID:        model.ID,
		PolicyID:  model.PolicyID,
		Product:   domain.ProductType(model.Product),
		Status:    domain.ClaimStatus(model.Status),
		Payout:    model.Payout,
		Payload:   fromJSONMap(model.Payload),
		Signature: stringFromPtr(model.Signature),
		ExpiresAt: model.ExpiresAt,
		TxHash:    stringFromPtr(model.TxHash),
		CreatedAt: model.CreatedAt,
	}
}
