package usecase

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/db"
)

type fakeGateway struct {
	chainID     uint64
	distributor string
	policyNFT   string

	nonce      *big.Int
	nonceErr   error
	receipt    *chain.Receipt
	receiptErr error
	policy     *chain.OnChainPolicy
	dlp        *chain.OnChainDlpPolicy

	nav         *big.Int
	claims      *big.Int
	redemptions *big.Int
	reserveErr  error

	anchorTxHash string
	anchorErr    error
	startAnchors int
	endAnchors   int
	liquidations []domain.LiquidationEvidence
}

func (g *fakeGateway) ChainID() uint64            { return g.chainID }
func (g *fakeGateway) DistributorAddress() string { return g.distributor }
func (g *fakeGateway) PolicyNFTAddress() string   { return g.policyNFT }

func (g *fakeGateway) BuyerNonce(context.Context, string) (*big.Int, error) {
	if g.nonceErr != nil {
		return nil, g.nonceErr
	}
	if g.nonce == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(g.nonce), nil
}

func (g *fakeGateway) PolicyData(context.Context, *big.Int) (*chain.OnChainPolicy, error) {
	if g.policy == nil {
		return nil, domain.Upstream("CONTRACT_CALL", "no policy data", nil)
	}
	return g.policy, nil
}

func (g *fakeGateway) DlpPolicyData(context.Context, *big.Int) (*chain.OnChainDlpPolicy, error) {
	if g.dlp == nil {
		return nil, domain.Upstream("CONTRACT_CALL", "no dlp data", nil)
	}
	return g.dlp, nil
}

func (g *fakeGateway) MintReceipt(context.Context, string) (*chain.Receipt, error) {
	if g.receiptErr != nil {
		return nil, g.receiptErr
	}
	if g.receipt == nil {
		return nil, domain.NotFound("TX_NOT_MINED", "transaction not mined")
	}
	return g.receipt, nil
}

func (g *fakeGateway) ReserveTotals(context.Context) (*big.Int, *big.Int, *big.Int, error) {
	if g.reserveErr != nil {
		return nil, nil, nil, g.reserveErr
	}
	return g.nav, g.claims, g.redemptions, nil
}

func (g *fakeGateway) AnchorDepegStart(context.Context, string, int64, *big.Int, string) (string, error) {
	if g.anchorErr != nil {
		return "", g.anchorErr
	}
	g.startAnchors++
	return g.anchorTxHash, nil
}

func (g *fakeGateway) AnchorDepegEnd(context.Context, string, int64, *big.Int, string) (string, error) {
	if g.anchorErr != nil {
		return "", g.anchorErr
	}
	g.endAnchors++
	return g.anchorTxHash, nil
}

func (g *fakeGateway) AnchorLiquidation(_ context.Context, ev domain.LiquidationEvidence) (string, error) {
	if g.anchorErr != nil {
		return "", g.anchorErr
	}
	g.liquidations = append(g.liquidations, ev)
	return g.anchorTxHash, nil
}

type fakeDraftStore struct {
	drafts map[string]domain.PolicyDraft
	seq    int
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]domain.PolicyDraft)}
}

func (s *fakeDraftStore) Create(_ context.Context, draft domain.PolicyDraft) (domain.PolicyDraft, error) {
	s.seq++
	draft.ID = fmt.Sprintf("draft-%d", s.seq)
	draft.CreatedAt = time.Now().UTC()
	s.drafts[draft.ID] = draft
	return draft, nil
}

func (s *fakeDraftStore) GetByID(_ context.Context, id string) (domain.PolicyDraft, error) {
	draft, ok := s.drafts[id]
	if !ok {
		return domain.PolicyDraft{}, domain.NotFound("DRAFT_NOT_FOUND", "draft not found")
	}
	return draft, nil
}

func (s *fakeDraftStore) Delete(_ context.Context, id string) error {
	delete(s.drafts, id)
	return nil
}

type settlementCall struct {
	policyID    string
	status      domain.PolicyStatus
	claimedUpTo int64
	newNonce    int64
	prevNonce   int64
}

type fakePolicyStore struct {
	policies       map[string]domain.Policy
	retiredDrafts  []string
	settlements    []settlementCall
	metadataMerges []string
	settlementErr  error
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{policies: make(map[string]domain.Policy)}
}

func (s *fakePolicyStore) Upsert(_ context.Context, policy domain.Policy) (domain.Policy, error) {
	s.policies[policy.ID] = policy
	return policy, nil
}

func (s *fakePolicyStore) CreateRetiringDraft(_ context.Context, policy domain.Policy, draftID string) (domain.Policy, error) {
	s.policies[policy.ID] = policy
	s.retiredDrafts = append(s.retiredDrafts, draftID)
	return policy, nil
}

func (s *fakePolicyStore) GetByID(_ context.Context, id string) (domain.Policy, error) {
	policy, ok := s.policies[id]
	if !ok {
		return domain.Policy{}, domain.NotFound("POLICY_NOT_FOUND", "policy not found")
	}
	return policy, nil
}

func (s *fakePolicyStore) ListByWallet(_ context.Context, wallet string) ([]domain.Policy, error) {
	out := make([]domain.Policy, 0)
	for _, policy := range s.policies {
		if strings.EqualFold(policy.Wallet, wallet) {
			out = append(out, policy)
		}
	}
	return out, nil
}

func (s *fakePolicyStore) UpdateSettlement(_ context.Context, id string, status domain.PolicyStatus, claimedUpTo, newNonce, prevNonce int64, _ map[string]any) error {
	if s.settlementErr != nil {
		return s.settlementErr
	}
	policy, ok := s.policies[id]
	if !ok {
		return domain.NotFound("POLICY_NOT_FOUND", "policy not found")
	}
	if policy.Nonce != prevNonce {
		return domain.Conflict("POLICY_NONCE_STALE", "policy nonce advanced concurrently")
	}
	policy.Status = status
	policy.ClaimedUpTo = claimedUpTo
	policy.Nonce = newNonce
	s.policies[id] = policy
	s.settlements = append(s.settlements, settlementCall{
		policyID:    id,
		status:      status,
		claimedUpTo: claimedUpTo,
		newNonce:    newNonce,
		prevNonce:   prevNonce,
	})
	return nil
}

func (s *fakePolicyStore) MergeMetadataByRiskAndOwner(_ context.Context, riskID, owner string, patch map[string]any) error {
	s.metadataMerges = append(s.metadataMerges, riskID+"|"+strings.ToLower(owner))
	for id, policy := range s.policies {
		if policy.RiskID != riskID || !strings.EqualFold(policy.Wallet, owner) {
			continue
		}
		if policy.Metadata == nil {
			policy.Metadata = make(map[string]any)
		}
		for k, v := range patch {
			policy.Metadata[k] = v
		}
		s.policies[id] = policy
	}
	return nil
}

type fakeAnchorStore struct {
	rows    []db.AnchorRow
	listErr error
}

func (s *fakeAnchorStore) Upsert(_ context.Context, riskID string, kind domain.AnchorKind, point domain.AnchorPoint) error {
	for i, row := range s.rows {
		if row.RiskID == riskID && row.Kind == kind {
			s.rows[i].Point = point
			return nil
		}
	}
	s.rows = append(s.rows, db.AnchorRow{RiskID: riskID, Kind: kind, Point: point})
	return nil
}

func (s *fakeAnchorStore) Window(_ context.Context, riskID string) (domain.AnchorWindow, error) {
	window := domain.AnchorWindow{RiskID: riskID}
	for i, row := range s.rows {
		if row.RiskID != riskID {
			continue
		}
		switch row.Kind {
		case domain.AnchorDepegStart:
			window.Start = &s.rows[i].Point
		case domain.AnchorDepegEnd:
			window.End = &s.rows[i].Point
		}
	}
	return window, nil
}

func (s *fakeAnchorStore) ListAll(context.Context) ([]db.AnchorRow, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rows, nil
}

type fakeLiquidationStore struct {
	records []domain.LiquidationEvidence
}

func (s *fakeLiquidationStore) Upsert(_ context.Context, ev domain.LiquidationEvidence) error {
	for i, record := range s.records {
		if record.RiskID == ev.RiskID && record.LiquidationID == ev.LiquidationID {
			s.records[i] = ev
			return nil
		}
	}
	s.records = append(s.records, ev)
	return nil
}

func (s *fakeLiquidationStore) ListAll(context.Context) ([]domain.LiquidationEvidence, error) {
	return s.records, nil
}

type fakeClaimStore struct {
	claims []domain.Claim
	seq    int
}

func (s *fakeClaimStore) Create(_ context.Context, claim domain.Claim) (domain.Claim, error) {
	s.seq++
	claim.ID = fmt.Sprintf("claim-%d", s.seq)
	claim.CreatedAt = time.Now().UTC()
	s.claims = append(s.claims, claim)
	return claim, nil
}

func (s *fakeClaimStore) ListByPolicy(_ context.Context, policyID string) ([]domain.Claim, error) {
	out := make([]domain.Claim, 0)
	for _, claim := range s.claims {
		if claim.PolicyID == policyID {
			out = append(out, claim)
		}
	}
	return out, nil
}

func (s *fakeClaimStore) ListQueued(context.Context) ([]domain.ClaimQueueItem, error) {
	out := make([]domain.ClaimQueueItem, 0)
	for _, claim := range s.claims {
		if claim.Status != domain.ClaimStatusQueued {
			continue
		}
		out = append(out, domain.ClaimQueueItem{
			ClaimID:  claim.ID,
			PolicyID: claim.PolicyID,
			Product:  claim.Product,
			Payout:   claim.Payout,
			QueuedAt: claim.CreatedAt,
			Status:   claim.Status,
		})
	}
	return out, nil
}

type fakeSigner struct {
	signature string
	signErr   error
	signed    []domain.TypedData
}

func (s *fakeSigner) SignTypedData(td domain.TypedData) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signed = append(s.signed, td)
	if s.signature == "" {
		return "0xsignature", nil
	}
	return s.signature, nil
}

func (s *fakeSigner) Address() string { return "0x00000000000000000000000000000000000000aa" }
