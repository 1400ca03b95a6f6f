package usecase

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/gatepolicy"

	"github.com/shopspring/decimal"
)

const (
	payoutDomainName    = "LiquidityGuardPayout"
	payoutDomainVersion = "1"
	claimDeadlineSecs   = 15 * 60

	zeroAddress = "0x0000000000000000000000000000000000000000"
)

var (
	poolPayoutShare    = decimal.RequireFromString("0.7")
	lendingPayoutShare = decimal.RequireFromString("0.1")
)

var claimPayloadTypes = map[string][]domain.TypedDataField{
	"ClaimPayload": {
		{Name: "policyId", Type: "uint256"},
		{Name: "riskId", Type: "bytes32"},
		{Name: "S", Type: "uint64"},
		{Name: "E", Type: "uint64"},
		{Name: "Lstar", Type: "uint256"},
		{Name: "refValue", Type: "uint256"},
		{Name: "curValue", Type: "uint256"},
		{Name: "payout", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

var liquidationPayloadTypes = map[string][]domain.TypedDataField{
	"LiquidationClaimPayload": {
		{Name: "policyId", Type: "uint256"},
		{Name: "riskId", Type: "bytes32"},
		{Name: "liquidationId", Type: "bytes32"},
		{Name: "user", Type: "address"},
		{Name: "collateralAsset", Type: "address"},
		{Name: "aavePool", Type: "address"},
		{Name: "S", Type: "uint64"},
		{Name: "E", Type: "uint64"},
		{Name: "liquidatedCollateralAmount", Type: "uint256"},
		{Name: "priceAtLiquidationE18", Type: "uint256"},
		{Name: "bonusBps", Type: "uint256"},
		{Name: "payout", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

// ClaimComputer derives claim payloads from anchored evidence and signs
// them for on-chain settlement. Signing is not idempotent: each sign
// advances the policy nonce.
type ClaimComputer struct {
	policies PolicyStore
	claims   ClaimStore
	ledger   *EvidenceLedger
	signer   QuoteSigner
	gate     GateOverride

	chainID      uint64
	payoutModule string
	now          Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewClaimComputer(policies PolicyStore, claims ClaimStore, ledger *EvidenceLedger, signer QuoteSigner, gate GateOverride, chainID uint64, payoutModule string) *ClaimComputer {
	if payoutModule == "" {
		payoutModule = zeroAddress
	}
	return &ClaimComputer{
		policies:     policies,
		claims:       claims,
		ledger:       ledger,
		signer:       signer,
		gate:         gate,
		chainID:      chainID,
		payoutModule: payoutModule,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// policyLock serializes claim signing per policy so concurrent requests
// cannot both observe the same nonce.
func (c *ClaimComputer) policyLock(policyID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[policyID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[policyID] = lock
	}
	return lock
}

func (c *ClaimComputer) Preview(ctx context.Context, policyID string) (domain.ClaimPreview, error) {
	policy, err := c.policies.GetByID(ctx, policyID)
	if err != nil {
		return domain.ClaimPreview{}, err
	}
	payload, payout, err := c.buildPayload(ctx, policy)
	if err != nil {
		return domain.ClaimPreview{}, err
	}
	return domain.ClaimPreview{
		PolicyID:       policy.ID,
		Product:        policy.Product,
		PolicyType:     policy.PolicyType,
		RiskID:         policy.RiskID,
		SettlementFrom: payload["S"].(int64),
		SettlementTo:   payload["E"].(int64),
		Payload:        payload,
		PayoutEstimate: payout,
	}, nil
}

func (c *ClaimComputer) Sign(ctx context.Context, policyID string) (domain.ClaimSignature, error) {
	if c.signer == nil {
		return domain.ClaimSignature{}, domain.ConfigMissing("ORACLE_SIGNER_KEY", "payout signer key is not configured")
	}

	lock := c.policyLock(policyID)
	lock.Lock()
	defer lock.Unlock()

	policy, err := c.policies.GetByID(ctx, policyID)
	if err != nil {
		return domain.ClaimSignature{}, err
	}
	payload, payout, err := c.buildPayload(ctx, policy)
	if err != nil {
		return domain.ClaimSignature{}, err
	}
	if payout.Sign() <= 0 {
		return domain.ClaimSignature{}, domain.Validation("INVALID_CLAIM_PAYOUT", "computed payout is not positive")
	}

	deadline := payload["deadline"].(int64)
	settlementEnd := payload["E"].(int64)

	typedData, message := c.buildTypedData(policy, payload)
	signature, err := c.signer.SignTypedData(typedData)
	if err != nil {
		return domain.ClaimSignature{}, fmt.Errorf("sign claim: %w", err)
	}

	gate := c.gateDecision(ctx, policy, payout)
	claimStatus := domain.ClaimStatusSigned
	policyStatus := domain.PolicyStatusClaimed
	if gate.Queue {
		claimStatus = domain.ClaimStatusQueued
		policyStatus = domain.PolicyStatusQueued
	}

	expiresAt := time.Unix(deadline, 0).UTC()
	claim := domain.Claim{
		PolicyID:  policy.ID,
		Product:   policy.Product,
		Status:    claimStatus,
		Payout:    payout,
		Payload:   message,
		Signature: signature,
		ExpiresAt: &expiresAt,
	}
	if _, err := c.claims.Create(ctx, claim); err != nil {
		return domain.ClaimSignature{}, err
	}

	if err := c.policies.UpdateSettlement(ctx, policy.ID, policyStatus, settlementEnd, policy.Nonce+1, policy.Nonce, map[string]any{}); err != nil {
		return domain.ClaimSignature{}, err
	}

	return domain.ClaimSignature{
		PolicyID:   policy.ID,
		PolicyType: policy.PolicyType,
		RiskID:     policy.RiskID,
		Domain:     typedData.Domain,
		TypedData:  typedData,
		Payload:    message,
		Signature:  signature,
		Payout:     payout,
		ExpiresAt:  expiresAt,
	}, nil
}

// gateDecision consults the operator bundle when present and falls back to
// the built-in threshold rule, also used when the bundle errors.
func (c *ClaimComputer) gateDecision(ctx context.Context, policy domain.Policy, payout decimal.Decimal) gatepolicy.GateResult {
	if c.gate != nil {
		result, err := c.gate.Evaluate(ctx, gatepolicy.GateInput{
			PolicyID:    policy.ID,
			Product:     string(policy.Product),
			Payout:      payout.String(),
			CoverageCap: policy.CoverageCapUSD.String(),
			RatioBps:    gatepolicy.RatioBps(payout, policy.CoverageCapUSD),
		})
		if err == nil {
			return result
		}
		log.Printf("claim gate bundle failed for policy %s, using default rule: %v", policy.ID, err)
	}
	return gatepolicy.DefaultDecision(payout, policy.CoverageCapUSD)
}

func (c *ClaimComputer) buildPayload(ctx context.Context, policy domain.Policy) (map[string]any, decimal.Decimal, error) {
	window, err := c.ledger.Window(ctx, policy.RiskID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if window.Start == nil {
		return nil, decimal.Zero, domain.Validation("WINDOW_NOT_ANCHORED", "depeg window start is not anchored for this risk")
	}

	now := c.now().Unix()
	settlementFrom := window.Start.Timestamp
	settlementTo := now
	if window.End != nil {
		settlementTo = window.End.Timestamp
	}
	deadline := now + claimDeadlineSecs

	insured := policy.InsuredUSD()
	cap := policy.CoverageCapUSD

	if policy.PolicyType == domain.PolicyTypeCurveLP {
		payout := decimal.Min(cap, insured.Mul(poolPayoutShare))
		payload := map[string]any{
			"policyId": numericPolicyID(policy),
			"riskId":   policy.RiskID,
			"S":        settlementFrom,
			"E":        settlementTo,
			"Lstar":    insured.String(),
			"refValue": insured.Round(6).String(),
			"curValue": insured.Sub(payout).Round(6).String(),
			"payout":   payout.String(),
			"nonce":    policy.Nonce,
			"deadline": deadline,
		}
		return payload, payout, nil
	}

	liquidationID := policy.MetadataString("lastLiquidationId")
	if liquidationID == "" {
		return nil, decimal.Zero, domain.Validation("NO_LIQUIDATION_EVIDENCE", "no liquidation evidence recorded for this policy")
	}
	evidence, err := c.ledger.Evidence(ctx, policy.RiskID, liquidationID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if evidence == nil {
		return nil, decimal.Zero, domain.Validation("NO_LIQUIDATION_EVIDENCE", "liquidation evidence is missing for the anchored liquidation")
	}

	payout := decimal.Min(cap, insured.Mul(lendingPayoutShare))
	collateralAsset := policy.MetadataString("collateralAsset")
	if collateralAsset == "" {
		collateralAsset = zeroAddress
	}
	lendingPool := policy.MetadataString("lendingPool")
	if lendingPool == "" {
		lendingPool = zeroAddress
	}

	payload := map[string]any{
		"policyId":                   numericPolicyID(policy),
		"riskId":                     policy.RiskID,
		"liquidationId":              evidence.LiquidationID,
		"user":                       policy.Wallet,
		"collateralAsset":            collateralAsset,
		"aavePool":                   lendingPool,
		"S":                          settlementFrom,
		"E":                          settlementTo,
		"liquidatedCollateralAmount": insured.Mul(decimal.RequireFromString("0.12")).Round(6).String(),
		"priceAtLiquidationE18":      evidence.TwapE18,
		"bonusBps":                   1000,
		"payout":                     payout.String(),
		"nonce":                      policy.Nonce,
		"deadline":                   deadline,
	}
	return payload, payout, nil
}

// buildTypedData converts a preview payload into the EIP-712 envelope the
// payout module verifies. USD values become 6-decimal atomic integers.
func (c *ClaimComputer) buildTypedData(policy domain.Policy, payload map[string]any) (domain.TypedData, map[string]any) {
	eipDomain := map[string]any{
		"name":              payoutDomainName,
		"version":           payoutDomainVersion,
		"chainId":           c.chainID,
		"verifyingContract": c.payoutModule,
	}

	if policy.PolicyType == domain.PolicyTypeCurveLP {
		message := map[string]any{
			"policyId": payload["policyId"],
			"riskId":   payload["riskId"],
			"S":        payload["S"],
			"E":        payload["E"],
			"Lstar":    usdToAtomic(payload["Lstar"]),
			"refValue": usdToAtomic(payload["refValue"]),
			"curValue": usdToAtomic(payload["curValue"]),
			"payout":   usdToAtomic(payload["payout"]),
			"nonce":    payload["nonce"],
			"deadline": payload["deadline"],
		}
		return domain.TypedData{
			Domain:      eipDomain,
			Types:       claimPayloadTypes,
			PrimaryType: "ClaimPayload",
			Message:     message,
		}, message
	}

	message := map[string]any{
		"policyId":                   payload["policyId"],
		"riskId":                     payload["riskId"],
		"liquidationId":              payload["liquidationId"],
		"user":                       payload["user"],
		"collateralAsset":            payload["collateralAsset"],
		"aavePool":                   payload["aavePool"],
		"S":                          payload["S"],
		"E":                          payload["E"],
		"liquidatedCollateralAmount": usdToAtomic(payload["liquidatedCollateralAmount"]),
		"priceAtLiquidationE18":      payload["priceAtLiquidationE18"],
		"bonusBps":                   payload["bonusBps"],
		"payout":                     usdToAtomic(payload["payout"]),
		"nonce":                      payload["nonce"],
		"deadline":                   payload["deadline"],
	}
	return domain.TypedData{
		Domain:      eipDomain,
		Types:       liquidationPayloadTypes,
		PrimaryType: "LiquidationClaimPayload",
		Message:     message,
	}, message
}

// ListByWallet returns all claims across a wallet's policies in creation
// order.
func (c *ClaimComputer) ListByWallet(ctx context.Context, wallet string) ([]domain.Claim, error) {
	if wallet == "" {
		return []domain.Claim{}, nil
	}
	policies, err := c.policies.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := make([]domain.Claim, 0)
	for _, policy := range policies {
		claims, err := c.claims.ListByPolicy(ctx, policy.ID)
		if err != nil {
			return nil, err
		}
		for _, claim := range claims {
			if _, ok := seen[claim.ID]; ok {
				continue
			}
			seen[claim.ID] = struct{}{}
			out = append(out, claim)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (c *ClaimComputer) Queue(ctx context.Context) ([]domain.ClaimQueueItem, error) {
	return c.claims.ListQueued(ctx)
}

// numericPolicyID is the uint256 the payout module knows the policy by.
// Token ids are already numeric; anything else degrades to a byte sum.
func numericPolicyID(policy domain.Policy) string {
	if _, ok := new(big.Int).SetString(policy.NFTTokenID, 10); ok {
		return policy.NFTTokenID
	}
	sum := 0
	for _, b := range []byte(policy.ID) {
		sum += int(b)
	}
	return fmt.Sprintf("%d", sum)
}

func usdToAtomic(value any) string {
	s, ok := value.(string)
	if !ok {
		return "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "0"
	}
	return d.Round(6).Shift(6).Truncate(0).String()
}
