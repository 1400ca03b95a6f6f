package usecase

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"

	"github.com/shopspring/decimal"
)

// FinalizeRequest identifies the draft and the mint transaction claimed to
// fulfil it.
type FinalizeRequest struct {
	DraftID       string
	TxHashMint    string
	PremiumTxHash string
}

// FinalizationReconciler turns a draft plus a mined mint transaction into
// the canonical policy record. On-chain data wins over draft fields; the
// draft is retired in the same transaction that writes the policy.
type FinalizationReconciler struct {
	drafts   DraftStore
	policies PolicyStore
	gateway  ContractGateway
	now      Clock
}

func NewFinalizationReconciler(drafts DraftStore, policies PolicyStore, gateway ContractGateway) *FinalizationReconciler {
	return &FinalizationReconciler{
		drafts:   drafts,
		policies: policies,
		gateway:  gateway,
		now:      time.Now,
	}
}

func (r *FinalizationReconciler) Finalize(ctx context.Context, req FinalizeRequest) (domain.Policy, error) {
	if req.DraftID == "" || req.TxHashMint == "" {
		return domain.Policy{}, domain.Validation("INVALID_PARAMS", "draftId and txHashMint are required")
	}

	draft, err := r.drafts.GetByID(ctx, req.DraftID)
	if err != nil {
		return domain.Policy{}, err
	}

	receipt, err := r.gateway.MintReceipt(ctx, req.TxHashMint)
	if err != nil {
		return domain.Policy{}, err
	}
	minted, err := chain.FindPolicyMinted(receipt.Logs, r.gateway.PolicyNFTAddress())
	if err != nil {
		return domain.Policy{}, err
	}
	if !chain.EqualAddresses(minted.Owner, draft.Wallet) {
		return domain.Policy{}, domain.Validation("MINT_MISMATCH", "minted policy owner does not match draft wallet")
	}

	onchain, err := r.gateway.PolicyData(ctx, minted.PolicyID)
	if err != nil {
		return domain.Policy{}, err
	}

	policyID := minted.PolicyID.String()
	policy := domain.Policy{
		ID:             policyID,
		DraftID:        draft.ID,
		Wallet:         strings.ToLower(minted.Owner),
		Product:        draft.Product,
		PolicyType:     domain.PolicyTypeFromCode(onchain.PolicyType),
		RiskID:         fallbackString(onchain.RiskID, draft.RiskID),
		InsuredAmount:  fallbackAmount(onchain.InsuredAmount, draft.InsuredAmount),
		CoverageCapUSD: coverageCapUSD(onchain.CoverageCap, draft.CoverageCapUSD),
		DeductibleBps:  fallbackInt(int(onchain.DeductibleBps), draft.DeductibleBps),
		TermDays:       draft.TermDays,
		StartAt:        fallbackInt64(onchain.StartAt, draft.StartAt),
		ActiveAt:       fallbackInt64(onchain.ActiveAt, draft.ActiveAt),
		EndAt:          fallbackInt64(onchain.EndAt, draft.EndAt),
		ClaimedUpTo:    onchain.ClaimedUpTo,
		Nonce:          0,
		Metadata:       finalMetadata(draft.Metadata, req.PremiumTxHash),
		NFTTokenID:     policyID,
	}
	policy.Status = initialStatus(r.now().Unix(), policy.StartAt, policy.EndAt)

	return r.policies.CreateRetiringDraft(ctx, policy, draft.ID)
}

// initialStatus places a freshly confirmed policy on the wall clock.
func initialStatus(now, startAt, endAt int64) domain.PolicyStatus {
	switch {
	case now < startAt:
		return domain.PolicyStatusDraft
	case now < endAt:
		return domain.PolicyStatusActive
	default:
		return domain.PolicyStatusExpired
	}
}

func finalMetadata(draftMetadata map[string]any, premiumTxHash string) map[string]any {
	out := make(map[string]any, len(draftMetadata)+1)
	for k, v := range draftMetadata {
		out[k] = v
	}
	if premiumTxHash != "" {
		out["premiumTxHash"] = premiumTxHash
	}
	return out
}

func fallbackString(primary, fallback string) string {
	if primary == "" || isZeroBytes32(primary) {
		return fallback
	}
	return primary
}

func isZeroBytes32(s string) bool {
	trimmed := strings.TrimPrefix(s, "0x")
	return strings.Trim(trimmed, "0") == ""
}

func fallbackAmount(primary *big.Int, fallback string) string {
	if primary == nil || primary.Sign() == 0 {
		return fallback
	}
	return primary.String()
}

func coverageCapUSD(atomic *big.Int, fallback decimal.Decimal) decimal.Decimal {
	if atomic == nil || atomic.Sign() == 0 {
		return fallback
	}
	return decimal.NewFromBigInt(atomic, -6)
}

func fallbackInt(primary, fallback int) int {
	if primary == 0 {
		return fallback
	}
	return primary
}

func fallbackInt64(primary, fallback int64) int64 {
	if primary == 0 {
		return fallback
	}
	return primary
}
