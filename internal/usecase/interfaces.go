package usecase

import (
	"context"
	"math/big"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/db"
	"github.com/craterface77/liquidity-guard-be/internal/infra/gatepolicy"
	"github.com/craterface77/liquidity-guard-be/internal/infra/oracle"
)

type DraftStore interface {
	Create(ctx context.Context, draft domain.PolicyDraft) (domain.PolicyDraft, error)
	GetByID(ctx context.Context, id string) (domain.PolicyDraft, error)
	Delete(ctx context.Context, id string) error
}

type PolicyStore interface {
	Upsert(ctx context.Context, policy domain.Policy) (domain.Policy, error)
	CreateRetiringDraft(ctx context.Context, policy domain.Policy, draftID string) (domain.Policy, error)
	GetByID(ctx context.Context, id string) (domain.Policy, error)
	ListByWallet(ctx context.Context, wallet string) ([]domain.Policy, error)
	UpdateSettlement(ctx context.Context, id string, status domain.PolicyStatus, claimedUpTo, newNonce, prevNonce int64, metadataPatch map[string]any) error
	MergeMetadataByRiskAndOwner(ctx context.Context, riskID, owner string, patch map[string]any) error
}

type AnchorStore interface {
	Upsert(ctx context.Context, riskID string, kind domain.AnchorKind, point domain.AnchorPoint) error
	Window(ctx context.Context, riskID string) (domain.AnchorWindow, error)
	ListAll(ctx context.Context) ([]db.AnchorRow, error)
}

type LiquidationStore interface {
	Upsert(ctx context.Context, ev domain.LiquidationEvidence) error
	ListAll(ctx context.Context) ([]domain.LiquidationEvidence, error)
}

type ClaimStore interface {
	Create(ctx context.Context, claim domain.Claim) (domain.Claim, error)
	ListByPolicy(ctx context.Context, policyID string) ([]domain.Claim, error)
	ListQueued(ctx context.Context) ([]domain.ClaimQueueItem, error)
}

// ContractGateway is the on-chain surface the services read and write.
type ContractGateway interface {
	ChainID() uint64
	DistributorAddress() string
	PolicyNFTAddress() string
	BuyerNonce(ctx context.Context, wallet string) (*big.Int, error)
	PolicyData(ctx context.Context, policyID *big.Int) (*chain.OnChainPolicy, error)
	DlpPolicyData(ctx context.Context, policyID *big.Int) (*chain.OnChainDlpPolicy, error)
	MintReceipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	ReserveTotals(ctx context.Context) (nav, pendingClaims, pendingRedemptions *big.Int, err error)
	AnchorDepegStart(ctx context.Context, riskID string, timestamp int64, twapE18 *big.Int, snapshotCID string) (string, error)
	AnchorDepegEnd(ctx context.Context, riskID string, timestamp int64, twapE18 *big.Int, snapshotCID string) (string, error)
	AnchorLiquidation(ctx context.Context, ev domain.LiquidationEvidence) (string, error)
}

// RiskOracle is the external validator's read surface.
type RiskOracle interface {
	ListRisks(ctx context.Context) ([]oracle.Risk, error)
}

// QuoteSigner signs EIP-712 envelopes and reports its address.
type QuoteSigner interface {
	SignTypedData(td domain.TypedData) (string, error)
	Address() string
}

// GateOverride is the optional rego policy deciding queue-vs-settle.
type GateOverride interface {
	Evaluate(ctx context.Context, input gatepolicy.GateInput) (gatepolicy.GateResult, error)
}

// Clock lets tests pin time.
type Clock func() time.Time
