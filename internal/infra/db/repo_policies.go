package db

import (
	"context"
	"errors"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// policyUpsertColumns lists everything refreshed on conflict. created_at is
// deliberately absent so replays keep the original row's timestamp.
var policyUpsertColumns = []string{
	"wallet", "product", "policy_type", "risk_id", "insured_amount",
	"coverage_cap_usd", "deductible_bps", "term_days", "start_at",
	"active_at", "end_at", "claimed_up_to", "nonce", "status", "metadata",
}

// Upsert writes a policy keyed by its on-chain token id. Re-processing the
// same mint receipt lands on the same row.
func (r *PolicyRepository) Upsert(ctx context.Context, policy domain.Policy) (domain.Policy, error) {
	if r.db == nil {
		return domain.Policy{}, errDBUnavailable
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	model := policyModelFromDomain(policy)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(policyUpsertColumns),
		}).
		Create(&model).Error
	if err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}

// CreateRetiringDraft finalizes in one transaction: the policy row is
// upserted and the originating draft removed, so a draft can never survive
// its own policy.
func (r *PolicyRepository) CreateRetiringDraft(ctx context.Context, policy domain.Policy, draftID string) (domain.Policy, error) {
	if r.db == nil {
		return domain.Policy{}, errDBUnavailable
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	model := policyModelFromDomain(policy)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(policyUpsertColumns),
			}).
			Create(&model).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", draftID).Delete(&PolicyDraftModel{}).Error
	})
	if err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}

func (r *PolicyRepository) GetByID(ctx context.Context, id string) (domain.Policy, error) {
	if r.db == nil {
		return domain.Policy{}, errDBUnavailable
	}
	var model PolicyModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Policy{}, domain.NotFound("POLICY_NOT_FOUND", "policy not found")
	}
	if err != nil {
		return domain.Policy{}, err
	}
	return policyFromModel(model), nil
}

func (r *PolicyRepository) ListByWallet(ctx context.Context, wallet string) ([]domain.Policy, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []PolicyModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(wallet) = LOWER(?)", wallet).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Policy, 0, len(models))
	for _, model := range models {
		out = append(out, policyFromModel(model))
	}
	return out, nil
}

// UpdateSettlement advances status, claimed-up-to and nonce after a signed
// settlement. The guard on the previous nonce rejects concurrent writers:
// zero rows affected means someone else settled first.
func (r *PolicyRepository) UpdateSettlement(ctx context.Context, id string, status domain.PolicyStatus, claimedUpTo, newNonce, prevNonce int64, metadataPatch map[string]any) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&PolicyModel{}).
		Where("id = ? AND nonce = ?", id, prevNonce).
		Updates(map[string]any{
			"status":        string(status),
			"claimed_up_to": claimedUpTo,
			"nonce":         newNonce,
			"metadata":      gorm.Expr("metadata || ?::jsonb", datatypes.JSONMap(metadataPatch)),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conflict("POLICY_NONCE_STALE", "policy was settled concurrently")
	}
	return nil
}

func (r *PolicyRepository) UpdateStatus(ctx context.Context, id string, status domain.PolicyStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Model(&PolicyModel{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
}

// MergeMetadataByRiskAndOwner patches metadata on every policy a wallet
// holds against a risk. Used to stamp anchoring evidence onto covers.
func (r *PolicyRepository) MergeMetadataByRiskAndOwner(ctx context.Context, riskID, owner string, patch map[string]any) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if len(patch) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&PolicyModel{}).
		Where("risk_id = ? AND LOWER(wallet) = LOWER(?)", riskID, owner).
		Update("metadata", gorm.Expr("metadata || ?::jsonb", datatypes.JSONMap(patch))).Error
}

func (r *PolicyRepository) ListByStatus(ctx context.Context, status domain.PolicyStatus) ([]domain.Policy, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []PolicyModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Policy, 0, len(models))
	for _, model := range models {
		out = append(out, policyFromModel(model))
	}
	return out, nil
}

func policyModelFromDomain(policy domain.Policy) PolicyModel {
	return PolicyModel{
		ID:             policy.ID,
		DraftID:        stringPtrIfNotEmpty(policy.DraftID),
		Wallet:         policy.Wallet,
		Product:        string(policy.Product),
		PolicyType:     string(policy.PolicyType),
		RiskID:         policy.RiskID,
		InsuredAmount:  policy.InsuredAmount,
		CoverageCapUSD: policy.CoverageCapUSD,
		DeductibleBps:  policy.DeductibleBps,
		TermDays:       int(policy.TermDays),
		StartAt:        policy.StartAt,
		ActiveAt:       policy.ActiveAt,
		EndAt:          policy.EndAt,
		ClaimedUpTo:    policy.ClaimedUpTo,
		Nonce:          policy.Nonce,
		Status:         string(policy.Status),
		Metadata:       jsonMap(policy.Metadata),
		NFTTokenID:     policy.NFTTokenID,
		CreatedAt:      policy.CreatedAt,
	}
}

func policyFromModel(model PolicyModel) domain.Policy {
	return domain.Policy{
		ID:             model.ID,
		DraftID:        stringFromPtr(model.DraftID),
		Wallet:         model.Wallet,
		Product:        domain.ProductType(model.Product),
		PolicyType:     domain.PolicyType(model.PolicyType),
		RiskID:         model.RiskID,
		InsuredAmount:  model.InsuredAmount,
		CoverageCapUSD: model.CoverageCapUSD,
		DeductibleBps:  model.DeductibleBps,
		TermDays:       domain.TermDays(model.TermDays),
		StartAt:        model.StartAt,
		ActiveAt:       model.ActiveAt,
		EndAt:          model.EndAt,
		ClaimedUpTo:    model.ClaimedUpTo,
		Nonce:          model.Nonce,
		Status:         domain.PolicyStatus(model.Status),
		Metadata:       fromJSONMap(model.Metadata),
		NFTTokenID:     model.NFTTokenID,
		CreatedAt:      model.CreatedAt,
	}
}
