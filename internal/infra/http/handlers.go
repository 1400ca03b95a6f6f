package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type lendingInput struct {
	ChainID          uint32          `json:"chainId"`
	LendingPool      string          `json:"lendingPool"`
	CollateralAsset  string          `json:"collateralAsset"`
	InsuredAmountUSD decimal.Decimal `json:"insuredAmountUSD"`
	LTV              *float64        `json:"ltv,omitempty"`
	HealthFactor     *float64        `json:"healthFactor,omitempty"`
	CoverageRatioBps *int            `json:"coverageRatioBps,omitempty"`
	MaxPayoutBps     *int            `json:"maxPayoutBps,omitempty"`
}

type quoteRequest struct {
	Product   string          `json:"product"`
	TermDays  int             `json:"termDays"`
	PoolID    string          `json:"poolId,omitempty"`
	InsuredLP decimal.Decimal `json:"insuredLP,omitempty"`
	Lending   *lendingInput   `json:"lending,omitempty"`
}

type quoteResponse struct {
	Product        string          `json:"product"`
	PremiumUSD     decimal.Decimal `json:"premiumUSD"`
	CoverageCapUSD decimal.Decimal `json:"coverageCapUSD"`
	DeductibleBps  int             `json:"deductibleBps"`
	CliffHours     int             `json:"cliffHours"`
	Breakdown      map[string]any  `json:"breakdown"`
}

type draftRequest struct {
	Wallet        string          `json:"wallet"`
	Product       string          `json:"product"`
	TermDays      int             `json:"termDays"`
	InsuredAmount decimal.Decimal `json:"insuredAmount"`
	PoolID        string          `json:"poolId,omitempty"`
	Lending       *lendingInput   `json:"lending,omitempty"`
}

type draftResponse struct {
	DraftID        string              `json:"draftId"`
	Wallet         string              `json:"wallet"`
	Product        string              `json:"product"`
	RiskID         string              `json:"riskId"`
	TermDays       int                 `json:"termDays"`
	InsuredAmount  string              `json:"insuredAmount"`
	PremiumUSD     decimal.Decimal     `json:"premiumUSD"`
	CoverageCapUSD decimal.Decimal     `json:"coverageCapUSD"`
	DeductibleBps  int                 `json:"deductibleBps"`
	StartAt        int64               `json:"startAt"`
	ActiveAt       int64               `json:"activeAt"`
	EndAt          int64               `json:"endAt"`
	TermsHash      string              `json:"termsHash"`
	Breakdown      map[string]any      `json:"breakdown,omitempty"`
	Calldata       domain.MintCalldata `json:"calldata"`
	CreatedAt      string              `json:"createdAt"`
}

type finalizeRequest struct {
	DraftID       string `json:"draftId"`
	TxHashMint    string `json:"txHashMint"`
	PremiumTxHash string `json:"premiumTxHash,omitempty"`
}

type policyResponse struct {
	ID             string          `json:"id"`
	Wallet         string          `json:"wallet"`
	Product        string          `json:"product"`
	RiskID         string          `json:"riskId"`
	InsuredAmount  string          `json:"insuredAmount"`
	CoverageCapUSD decimal.Decimal `json:"coverageCapUSD"`
	DeductibleBps  int             `json:"deductibleBps"`
	TermDays       int             `json:"termDays"`
	StartAt        int64           `json:"startAt"`
	ActiveAt       int64           `json:"activeAt"`
	EndAt          int64           `json:"endAt"`
	ClaimedUpTo    int64           `json:"claimedUpTo"`
	Nonce          int64           `json:"nonce"`
	Status         string          `json:"status"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	NFTTokenID     string          `json:"nftTokenId,omitempty"`
	CreatedAt      string          `json:"createdAt"`
}

type claimTargetRequest struct {
	PolicyID string `json:"policyId"`
}

type claimPreviewResponse struct {
	PolicyID       string          `json:"policyId"`
	Product        string          `json:"product"`
	RiskID         string          `json:"riskId"`
	SettlementFrom int64           `json:"settlementFrom"`
	SettlementTo   int64           `json:"settlementTo"`
	Payload        map[string]any  `json:"payload"`
	PayoutEstimate decimal.Decimal `json:"payoutEstimate"`
}

type claimSignResponse struct {
	PolicyID  string           `json:"policyId"`
	RiskID    string           `json:"riskId"`
	TypedData domain.TypedData `json:"typedData"`
	Payload   map[string]any   `json:"payload"`
	Signature string           `json:"signature"`
	Payout    decimal.Decimal  `json:"payout"`
	ExpiresAt string           `json:"expiresAt"`
}

type claimResponse struct {
	ID        string          `json:"id"`
	PolicyID  string          `json:"policyId"`
	Product   string          `json:"product"`
	Status    string          `json:"status"`
	Payout    decimal.Decimal `json:"payout"`
	Payload   map[string]any  `json:"payload,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ExpiresAt string          `json:"expiresAt,omitempty"`
	TxHash    string          `json:"txHash,omitempty"`
	CreatedAt string          `json:"createdAt"`
}

type claimQueueResponse struct {
	ClaimID  string          `json:"claimId"`
	PolicyID string          `json:"policyId"`
	Product  string          `json:"product"`
	RiskID   string          `json:"riskId"`
	Wallet   string          `json:"wallet"`
	Payout   decimal.Decimal `json:"payout"`
	QueuedAt string          `json:"queuedAt"`
	Status   string          `json:"status"`
}

type poolMetricsResponse struct {
	TWAP         *decimal.Decimal `json:"twap,omitempty"`
	ReserveRatio *float64         `json:"reserveRatio,omitempty"`
	UpdatedAt    string           `json:"updatedAt,omitempty"`
}

type poolResponse struct {
	PoolID  string              `json:"poolId"`
	ChainID uint64              `json:"chainId"`
	Name    string              `json:"name"`
	Address string              `json:"address,omitempty"`
	RiskID  string              `json:"riskId"`
	State   string              `json:"state"`
	Metrics poolMetricsResponse `json:"metrics"`
}

type reserveResponse struct {
	NAVUSD                decimal.Decimal `json:"navUSD"`
	CashRatio             decimal.Decimal `json:"cashRatio"`
	PendingClaimsUSD      decimal.Decimal `json:"pendingClaimsUSD"`
	PendingRedemptionsUSD decimal.Decimal `json:"pendingRedemptionsUSD"`
	PricePerShare         decimal.Decimal `json:"pricePerShare"`
	UpdatedAt             string          `json:"updatedAt"`
}

func (s *Server) handleListPools(c *gin.Context) {
	if s.pools == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "pool service is not configured")
		return
	}
	filter := domain.PoolListFilter{State: domain.PoolState(c.Query("state"))}
	summaries, err := s.pools.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]poolResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, buildPoolResponse(summary))
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func (s *Server) handleQuote(c *gin.Context) {
	if s.quotes == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "quote engine is not configured")
		return
	}
	if !s.enforceRateLimit(c, routePricingQuote) {
		return
	}
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	quote, err := s.quotes.Quote(c.Request.Context(), domain.QuoteRequest{
		Product:   domain.ProductType(req.Product),
		TermDays:  domain.TermDays(req.TermDays),
		PoolID:    req.PoolID,
		InsuredLP: req.InsuredLP,
		Lending:   lendingParams(req.Lending),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{
		Product:        string(quote.Product),
		PremiumUSD:     quote.PremiumUSD,
		CoverageCapUSD: quote.CoverageCapUSD,
		DeductibleBps:  quote.DeductibleBps,
		CliffHours:     quote.CliffHours,
		Breakdown:      quote.Breakdown,
	})
}

func (s *Server) handleCreateDraft(c *gin.Context) {
	if s.drafts == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "draft orchestrator is not configured")
		return
	}
	if !s.enforceRateLimit(c, routePoliciesDraft) {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	draft, err := s.drafts.CreateDraft(c.Request.Context(), usecase.DraftRequest{
		Wallet:        req.Wallet,
		Product:       domain.ProductType(req.Product),
		TermDays:      domain.TermDays(req.TermDays),
		InsuredAmount: req.InsuredAmount,
		PoolID:        req.PoolID,
		Lending:       lendingParams(req.Lending),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildDraftResponse(draft))
}

func (s *Server) handleFinalize(c *gin.Context) {
	if s.finalizer == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "finalization is not configured")
		return
	}
	if !s.enforceRateLimit(c, routePoliciesFinalize) {
		return
	}
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	policy, err := s.finalizer.Finalize(c.Request.Context(), usecase.FinalizeRequest{
		DraftID:       req.DraftID,
		TxHashMint:    req.TxHashMint,
		PremiumTxHash: req.PremiumTxHash,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildPolicyResponse(policy))
}

func (s *Server) handleListPolicies(c *gin.Context) {
	if s.policies == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "policy store is not configured")
		return
	}
	wallet := c.Query("wallet")
	if wallet == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PARAMS", "wallet query parameter is required")
		return
	}
	policies, err := s.policies.ListByWallet(c.Request.Context(), wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]policyResponse, 0, len(policies))
	for _, policy := range policies {
		out = append(out, buildPolicyResponse(policy))
	}
	c.JSON(http.StatusOK, gin.H{"policies": out})
}

func (s *Server) handleGetPolicy(c *gin.Context) {
	if s.policies == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "policy store is not configured")
		return
	}
	policy, err := s.policies.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildPolicyResponse(policy))
}

func (s *Server) handleClaimPreview(c *gin.Context) {
	if s.claims == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "claim computer is not configured")
		return
	}
	var req claimTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PolicyID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PARAMS", "policyId is required")
		return
	}
	preview, err := s.claims.Preview(c.Request.Context(), req.PolicyID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimPreviewResponse{
		PolicyID:       preview.PolicyID,
		Product:        string(preview.Product),
		RiskID:         preview.RiskID,
		SettlementFrom: preview.SettlementFrom,
		SettlementTo:   preview.SettlementTo,
		Payload:        preview.Payload,
		PayoutEstimate: preview.PayoutEstimate,
	})
}

func (s *Server) handleClaimSign(c *gin.Context) {
	if s.claims == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "claim computer is not configured")
		return
	}
	if !s.enforceRateLimit(c, routeClaimsSign) {
		return
	}
	var req claimTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PolicyID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PARAMS", "policyId is required")
		return
	}
	signed, err := s.claims.Sign(c.Request.Context(), req.PolicyID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claimSignResponse{
		PolicyID:  signed.PolicyID,
		RiskID:    signed.RiskID,
		TypedData: signed.TypedData,
		Payload:   signed.Payload,
		Signature: signed.Signature,
		Payout:    signed.Payout,
		ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListClaims(c *gin.Context) {
	if s.claims == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "claim computer is not configured")
		return
	}
	wallet := c.Query("wallet")
	if wallet == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_PARAMS", "wallet query parameter is required")
		return
	}
	claims, err := s.claims.ListByWallet(c.Request.Context(), wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]claimResponse, 0, len(claims))
	for _, claim := range claims {
		out = append(out, buildClaimResponse(claim))
	}
	c.JSON(http.StatusOK, gin.H{"claims": out})
}

func (s *Server) handleClaimQueue(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.claims == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "claim computer is not configured")
		return
	}
	items, err := s.claims.Queue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]claimQueueResponse, 0, len(items))
	for _, item := range items {
		out = append(out, claimQueueResponse{
			ClaimID:  item.ClaimID,
			PolicyID: item.PolicyID,
			Product:  string(item.Product),
			RiskID:   item.RiskID,
			Wallet:   item.Wallet,
			Payout:   item.Payout,
			QueuedAt: item.QueuedAt.UTC().Format(time.RFC3339),
			Status:   string(item.Status),
		})
	}
	c.JSON(http.StatusOK, gin.H{"queue": out})
}

func (s *Server) handleReserveOverview(c *gin.Context) {
	if s.reserve == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "reserve service is not configured")
		return
	}
	overview, err := s.reserve.Overview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reserveResponse{
		NAVUSD:                overview.NAVUSD,
		CashRatio:             overview.CashRatio,
		PendingClaimsUSD:      overview.PendingClaimsUSD,
		PendingRedemptionsUSD: overview.PendingRedemptionsUSD,
		PricePerShare:         overview.PricePerShare,
		UpdatedAt:             overview.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAdminAnchor(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.ledger == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "evidence ledger is not configured")
		return
	}
	var env domain.AnchorEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	if err := s.ledger.PublishAnchor(c.Request.Context(), env); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "anchored"})
}

func (s *Server) handleAdminWhitelist(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.ledger == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "evidence ledger is not configured")
		return
	}
	var req domain.WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	if err := s.ledger.RecordWhitelistChange(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// handleValidatorAnchor accepts HMAC-signed anchor pushes from the external
// validator. The signature covers the raw body, so the body is read before
// JSON decoding.
func (s *Server) handleValidatorAnchor(c *gin.Context) {
	if s.webhook == nil || s.ledger == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "validator webhook is not configured")
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", "request body could not be read")
		return
	}
	if err := s.webhook.Verify(c.GetHeader, body); err != nil {
		status := http.StatusUnauthorized
		code, message, details := errorParts(err)
		c.JSON(status, errorResponse{Code: code, Message: message, Details: details})
		return
	}
	var env domain.AnchorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return
	}
	if err := s.ledger.PublishAnchor(c.Request.Context(), env); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "anchored"})
}

func lendingParams(input *lendingInput) *domain.LendingParams {
	if input == nil {
		return nil
	}
	return &domain.LendingParams{
		ChainID:          input.ChainID,
		LendingPool:      input.LendingPool,
		CollateralAsset:  input.CollateralAsset,
		InsuredAmountUSD: input.InsuredAmountUSD,
		LTV:              input.LTV,
		HealthFactor:     input.HealthFactor,
		CoverageRatioBps: input.CoverageRatioBps,
		MaxPayoutBps:     input.MaxPayoutBps,
	}
}

func buildPoolResponse(summary domain.PoolSummary) poolResponse {
	metrics := poolMetricsResponse{
		TWAP:         summary.Metrics.TWAP,
		ReserveRatio: summary.Metrics.ReserveRatio,
	}
	if summary.Metrics.UpdatedAt != nil {
		metrics.UpdatedAt = summary.Metrics.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return poolResponse{
		PoolID:  summary.PoolID,
		ChainID: summary.ChainID,
		Name:    summary.Name,
		Address: summary.Address,
		RiskID:  summary.RiskID,
		State:   string(summary.State),
		Metrics: metrics,
	}
}

func buildDraftResponse(draft domain.PolicyDraft) draftResponse {
	return draftResponse{
		DraftID:        draft.ID,
		Wallet:         draft.Wallet,
		Product:        string(draft.Product),
		RiskID:         draft.RiskID,
		TermDays:       int(draft.TermDays),
		InsuredAmount:  draft.InsuredAmount,
		PremiumUSD:     draft.PremiumUSD,
		CoverageCapUSD: draft.CoverageCapUSD,
		DeductibleBps:  draft.DeductibleBps,
		StartAt:        draft.StartAt,
		ActiveAt:       draft.ActiveAt,
		EndAt:          draft.EndAt,
		TermsHash:      draft.TermsHash,
		Breakdown:      draft.Breakdown,
		Calldata:       draft.Calldata,
		CreatedAt:      draft.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func buildPolicyResponse(policy domain.Policy) policyResponse {
	return policyResponse{
		ID:             policy.ID,
		Wallet:         policy.Wallet,
		Product:        string(policy.Product),
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
		Metadata:       policy.Metadata,
		NFTTokenID:     policy.NFTTokenID,
		CreatedAt:      policy.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func buildClaimResponse(claim domain.Claim) claimResponse {
	out := claimResponse{
		ID:        claim.ID,
		PolicyID:  claim.PolicyID,
		Product:   string(claim.Product),
		Status:    string(claim.Status),
		Payout:    claim.Payout,
		Payload:   claim.Payload,
		Signature: claim.Signature,
		TxHash:    claim.TxHash,
		CreatedAt: claim.CreatedAt.UTC().Format(time.RFC3339),
	}
	if claim.ExpiresAt != nil {
		out.ExpiresAt = claim.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return out
}

// errorParts extracts the structured code/message/details from a domain
// error, with generic fallbacks for anything else.
func errorParts(err error) (string, string, any) {
	var e *domain.Error
	if errors.As(err, &e) {
		return e.Code, e.Message, e.Details
	}
	return "INTERNAL", err.Error(), nil
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindUpstream:
		status = http.StatusBadGateway
	case domain.KindConfig:
		status = http.StatusServiceUnavailable
	}
	code, message, details := errorParts(err)
	c.JSON(status, errorResponse{Code: code, Message: message, Details: details})
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
