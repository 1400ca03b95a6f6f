package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"

	"github.com/shopspring/decimal"
)

const (
	quoteDomainName    = "LiquidityGuardDistributor"
	quoteDomainVersion = "1"

	defaultCoverageRatioBps = 8000
	defaultMaxPayoutBps     = 1000
)

var quoteTypes = map[string][]domain.TypedDataField{
	"Quote": {
		{Name: "buyer", Type: "address"},
		{Name: "policyType", Type: "uint8"},
		{Name: "riskId", Type: "bytes32"},
		{Name: "insuredAmount", Type: "uint256"},
		{Name: "coverageCap", Type: "uint256"},
		{Name: "deductibleBps", Type: "uint32"},
		{Name: "startAt", Type: "uint64"},
		{Name: "activeAt", Type: "uint64"},
		{Name: "endAt", Type: "uint64"},
		{Name: "extraDataHash", Type: "bytes32"},
		{Name: "premium", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
	},
}

// DraftRequest is a priced-and-signed offer request for one wallet.
type DraftRequest struct {
	Wallet        string
	Product       domain.ProductType
	TermDays      domain.TermDays
	InsuredAmount decimal.Decimal
	PoolID        string
	Lending       *domain.LendingParams
}

// DraftOrchestrator prices a request, binds it to on-chain mint parameters
// and signs the quote the distributor verifies at purchase time.
type DraftOrchestrator struct {
	drafts  DraftStore
	quotes  *QuoteEngine
	gateway ContractGateway
	signer  QuoteSigner

	quoteDeadline   time.Duration
	mintStartBuffer time.Duration
	now             Clock
}

func NewDraftOrchestrator(drafts DraftStore, quotes *QuoteEngine, gateway ContractGateway, signer QuoteSigner, quoteDeadline, mintStartBuffer time.Duration) *DraftOrchestrator {
	return &DraftOrchestrator{
		drafts:          drafts,
		quotes:          quotes,
		gateway:         gateway,
		signer:          signer,
		quoteDeadline:   quoteDeadline,
		mintStartBuffer: mintStartBuffer,
		now:             time.Now,
	}
}

type quoteContext struct {
	riskID     string
	policyType domain.PolicyType
	params     map[string]any
	metadata   map[string]any
	extraData  []byte
}

func (o *DraftOrchestrator) CreateDraft(ctx context.Context, req DraftRequest) (domain.PolicyDraft, error) {
	if o.gateway == nil || o.gateway.DistributorAddress() == "" {
		return domain.PolicyDraft{}, domain.ConfigMissing("POLICY_DISTRIBUTOR_ADDRESS", "distributor contract address is not configured")
	}
	if o.signer == nil {
		return domain.PolicyDraft{}, domain.ConfigMissing("QUOTE_SIGNER_KEY", "quote signer key is not configured")
	}
	wallet, err := chain.NormalizeAddress(req.Wallet)
	if err != nil {
		return domain.PolicyDraft{}, domain.Validation("INVALID_WALLET", "wallet is not a valid address")
	}
	if !req.TermDays.Valid() {
		return domain.PolicyDraft{}, domain.Validation("INVALID_TERM", "termDays must be 10, 20 or 30")
	}
	if req.InsuredAmount.Sign() <= 0 {
		return domain.PolicyDraft{}, domain.Validation("INVALID_AMOUNT", "insuredAmount must be positive")
	}

	qc, err := o.buildQuoteContext(req)
	if err != nil {
		return domain.PolicyDraft{}, err
	}

	quote, err := o.quotes.Quote(ctx, o.buildQuoteRequest(req))
	if err != nil {
		return domain.PolicyDraft{}, err
	}

	now := o.now().Unix()
	startAt := now + int64(o.mintStartBuffer/time.Second)
	activeAt := startAt + int64(quote.CliffHours)*3600
	endAt := activeAt + int64(req.TermDays)*86400
	deadline := now + int64(o.quoteDeadline/time.Second)

	premiumAtomic := toUSDCAtomic(quote.PremiumUSD)
	coverageCapAtomic := toUSDCAtomic(quote.CoverageCapUSD)
	insuredAtomic := toInsuredAtomic(req.Product, req.InsuredAmount)

	nonce, err := o.gateway.BuyerNonce(ctx, wallet)
	if err != nil {
		return domain.PolicyDraft{}, err
	}

	extraDataHex := chain.BytesToHex(qc.extraData)
	mintParams := domain.MintParams{
		PolicyType:    qc.policyType.OnChainCode(),
		RiskID:        qc.riskID,
		InsuredAmount: insuredAtomic,
		CoverageCap:   coverageCapAtomic,
		DeductibleBps: uint32(quote.DeductibleBps),
		StartAt:       startAt,
		ActiveAt:      activeAt,
		EndAt:         endAt,
		ExtraData:     extraDataHex,
	}

	typedData := domain.TypedData{
		Domain: map[string]any{
			"name":              quoteDomainName,
			"version":           quoteDomainVersion,
			"chainId":           o.gateway.ChainID(),
			"verifyingContract": o.gateway.DistributorAddress(),
		},
		Types:       quoteTypes,
		PrimaryType: "Quote",
		Message: map[string]any{
			"buyer":         wallet,
			"policyType":    int(mintParams.PolicyType),
			"riskId":        qc.riskID,
			"insuredAmount": insuredAtomic,
			"coverageCap":   coverageCapAtomic,
			"deductibleBps": quote.DeductibleBps,
			"startAt":       startAt,
			"activeAt":      activeAt,
			"endAt":         endAt,
			"extraDataHash": chain.Keccak256Hex(qc.extraData),
			"premium":       premiumAtomic,
			"deadline":      deadline,
			"nonce":         nonce.String(),
		},
	}

	signature, err := o.signer.SignTypedData(typedData)
	if err != nil {
		return domain.PolicyDraft{}, fmt.Errorf("sign quote: %w", err)
	}

	termsHash, err := hashTerms(qc.params)
	if err != nil {
		return domain.PolicyDraft{}, err
	}

	draft := domain.PolicyDraft{
		Wallet:         strings.ToLower(wallet),
		Product:        req.Product,
		PolicyType:     qc.policyType,
		RiskID:         qc.riskID,
		TermDays:       req.TermDays,
		InsuredAmount:  insuredAtomic,
		PremiumUSD:     quote.PremiumUSD,
		CoverageCapUSD: quote.CoverageCapUSD,
		DeductibleBps:  quote.DeductibleBps,
		StartAt:        startAt,
		ActiveAt:       activeAt,
		EndAt:          endAt,
		TermsHash:      termsHash,
		Params:         qc.params,
		Breakdown:      quote.Breakdown,
		Metadata:       qc.metadata,
		Calldata: domain.MintCalldata{
			Signature:          signature,
			Deadline:           deadline,
			Nonce:              nonce.String(),
			MintParams:         mintParams,
			TypedData:          typedData,
			DistributorAddress: o.gateway.DistributorAddress(),
			ExtraData:          extraDataHex,
			PremiumAtomic:      premiumAtomic,
			CoverageCapAtomic:  coverageCapAtomic,
		},
	}

	return o.drafts.Create(ctx, draft)
}

func (o *DraftOrchestrator) buildQuoteRequest(req DraftRequest) domain.QuoteRequest {
	out := domain.QuoteRequest{
		Product:  req.Product,
		TermDays: req.TermDays,
	}
	if req.Product == domain.ProductDepegLP {
		out.PoolID = req.PoolID
		out.InsuredLP = req.InsuredAmount
		return out
	}
	lending := *req.Lending
	lending.InsuredAmountUSD = req.InsuredAmount
	out.Lending = &lending
	return out
}

func (o *DraftOrchestrator) buildQuoteContext(req DraftRequest) (quoteContext, error) {
	if req.Product == domain.ProductDepegLP {
		if strings.TrimSpace(req.PoolID) == "" {
			return quoteContext{}, domain.Validation("INVALID_PARAMS", "poolId is required for DEPEG_LP")
		}
		return quoteContext{
			riskID:     chain.HashUTF8(req.PoolID),
			policyType: domain.PolicyTypeCurveLP,
			params:     map[string]any{"poolId": req.PoolID},
			metadata:   map[string]any{"poolId": req.PoolID},
			extraData:  nil,
		}, nil
	}

	if req.Lending == nil {
		return quoteContext{}, domain.Validation("INVALID_PARAMS", "lending configuration is required for AAVE_DLP")
	}
	lending := req.Lending
	if lending.ChainID == 0 {
		return quoteContext{}, domain.Validation("INVALID_PARAMS", "lending chainId must be positive")
	}
	lendingPool, err := chain.NormalizeAddress(lending.LendingPool)
	if err != nil {
		return quoteContext{}, domain.Validation("INVALID_PARAMS", "lendingPool is not a valid address")
	}
	collateralAsset, err := chain.NormalizeAddress(lending.CollateralAsset)
	if err != nil {
		return quoteContext{}, domain.Validation("INVALID_PARAMS", "collateralAsset is not a valid address")
	}

	coverageRatioBps := defaultCoverageRatioBps
	if lending.CoverageRatioBps != nil {
		coverageRatioBps = *lending.CoverageRatioBps
	}
	maxPayoutBps := defaultMaxPayoutBps
	if lending.MaxPayoutBps != nil {
		maxPayoutBps = *lending.MaxPayoutBps
	}
	if coverageRatioBps < 0 || coverageRatioBps > 10000 || maxPayoutBps < 0 || maxPayoutBps > 10000 {
		return quoteContext{}, domain.Validation("INVALID_PARAMS", "bps values must be within [0, 10000]")
	}

	chainIDWord := chain.WordUint(new(big.Int).SetUint64(uint64(lending.ChainID)))
	poolWord, err := chain.WordAddress(lendingPool)
	if err != nil {
		return quoteContext{}, err
	}
	assetWord, err := chain.WordAddress(collateralAsset)
	if err != nil {
		return quoteContext{}, err
	}

	extraData := chain.EncodeTuple(
		chainIDWord,
		poolWord,
		assetWord,
		chain.WordUint(big.NewInt(int64(coverageRatioBps))),
		chain.WordUint(big.NewInt(int64(maxPayoutBps))),
	)
	riskID := chain.Keccak256Hex(chain.EncodeTuple(chainIDWord, poolWord, assetWord))

	params := map[string]any{
		"chainId":          lending.ChainID,
		"lendingPool":      lendingPool,
		"collateralAsset":  collateralAsset,
		"coverageRatioBps": coverageRatioBps,
		"maxPayoutBps":     maxPayoutBps,
	}
	metadata := map[string]any{
		"chainId":          lending.ChainID,
		"lendingPool":      lendingPool,
		"collateralAsset":  collateralAsset,
		"coverageRatioBps": coverageRatioBps,
		"maxPayoutBps":     maxPayoutBps,
	}

	return quoteContext{
		riskID:     riskID,
		policyType: domain.PolicyTypeAaveDLP,
		params:     params,
		metadata:   metadata,
		extraData:  extraData,
	}, nil
}

// hashTerms commits to the sanitized pricing inputs. json.Marshal sorts map
// keys, so equal params always hash equal.
func hashTerms(params map[string]any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal terms: %w", err)
	}
	return chain.HashUTF8(string(raw)), nil
}

// toUSDCAtomic converts a USD decimal to 6-decimal atomic units.
func toUSDCAtomic(value decimal.Decimal) string {
	return value.Round(6).Shift(6).Truncate(0).String()
}

func toInsuredAtomic(product domain.ProductType, amount decimal.Decimal) string {
	if product == domain.ProductDepegLP {
		return amount.Round(0).String()
	}
	return amount.Round(6).Shift(6).Truncate(0).String()
}
