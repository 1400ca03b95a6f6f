package usecase

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"

	"github.com/shopspring/decimal"
)

const testWallet = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func newTestOrchestrator(gateway *fakeGateway, signer *fakeSigner) (*DraftOrchestrator, *fakeDraftStore) {
	drafts := newFakeDraftStore()
	quotes := NewQuoteEngine(NewPoolService(nil, 1))
	o := NewDraftOrchestrator(drafts, quotes, gateway, signer, time.Hour, 5*time.Minute)
	o.now = func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }
	return o, drafts
}

func TestCreateDraft_DepegLP(t *testing.T) {
	gateway := &fakeGateway{
		chainID:     1,
		distributor: "0x00000000000000000000000000000000000000d1",
		nonce:       big.NewInt(7),
	}
	signer := &fakeSigner{}
	o, drafts := newTestOrchestrator(gateway, signer)

	draft, err := o.CreateDraft(context.Background(), DraftRequest{
		Wallet:        testWallet,
		Product:       domain.ProductDepegLP,
		TermDays:      domain.Term10,
		InsuredAmount: decimal.NewFromInt(1000),
		PoolID:        "curve-pyusd-usdc",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	now := int64(1_700_000_000)
	if draft.StartAt != now+300 {
		t.Fatalf("startAt should be now+300, got %d", draft.StartAt)
	}
	if draft.ActiveAt != draft.StartAt+24*3600 {
		t.Fatalf("activeAt should trail startAt by the cliff, got %d", draft.ActiveAt)
	}
	if draft.EndAt != draft.ActiveAt+10*86400 {
		t.Fatalf("endAt should be activeAt+term, got %d", draft.EndAt)
	}
	if draft.Calldata.Deadline != now+3600 {
		t.Fatalf("quote deadline should be now+3600, got %d", draft.Calldata.Deadline)
	}

	if draft.Wallet != strings.ToLower(testWallet) {
		t.Fatalf("wallet should be stored lowercase, got %s", draft.Wallet)
	}
	if draft.RiskID != chain.HashUTF8("curve-pyusd-usdc") {
		t.Fatalf("risk id should be the keccak of the pool id, got %s", draft.RiskID)
	}
	if draft.Calldata.Nonce != "7" {
		t.Fatalf("expected buyer nonce 7, got %s", draft.Calldata.Nonce)
	}
	if draft.Calldata.Signature != "0xsignature" {
		t.Fatalf("unexpected signature %s", draft.Calldata.Signature)
	}
	// premium 10 USD as 6-decimal atomic
	if draft.Calldata.PremiumAtomic != "10000000" {
		t.Fatalf("expected premium atomic 10000000, got %s", draft.Calldata.PremiumAtomic)
	}
	// LP units stay native for DEPEG_LP
	if draft.InsuredAmount != "1000" {
		t.Fatalf("expected insured amount 1000, got %s", draft.InsuredAmount)
	}
	if draft.TermsHash == "" {
		t.Fatal("terms hash must be set")
	}

	if len(signer.signed) != 1 {
		t.Fatalf("expected one signed envelope, got %d", len(signer.signed))
	}
	message := signer.signed[0].Message
	if message["deadline"] != now+3600 {
		t.Fatalf("signed deadline mismatch: %v", message["deadline"])
	}
	if message["nonce"] != "7" {
		t.Fatalf("signed nonce mismatch: %v", message["nonce"])
	}
	if _, ok := drafts.drafts[draft.ID]; !ok {
		t.Fatal("draft should be persisted")
	}
}

func TestCreateDraft_AaveDLP(t *testing.T) {
	gateway := &fakeGateway{
		chainID:     1,
		distributor: "0x00000000000000000000000000000000000000d1",
		nonce:       big.NewInt(0),
	}
	o, _ := newTestOrchestrator(gateway, &fakeSigner{})

	draft, err := o.CreateDraft(context.Background(), DraftRequest{
		Wallet:        testWallet,
		Product:       domain.ProductAaveDLP,
		TermDays:      domain.Term20,
		InsuredAmount: decimal.NewFromInt(10000),
		Lending: &domain.LendingParams{
			ChainID:         1,
			LendingPool:     "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
			CollateralAsset: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if draft.PolicyType != domain.PolicyTypeAaveDLP {
		t.Fatalf("expected AAVE_DLP policy type, got %v", draft.PolicyType)
	}
	// chainId + pool + asset + 2 bps words
	if len(draft.Calldata.ExtraData) != 2+5*64 {
		t.Fatalf("extra data should encode five words, got %d chars", len(draft.Calldata.ExtraData))
	}
	if len(draft.RiskID) != 66 {
		t.Fatalf("risk id should be bytes32 hex, got %s", draft.RiskID)
	}
	// USD insured amounts are stored as 6-decimal atomics
	if draft.InsuredAmount != "10000000000" {
		t.Fatalf("expected insured atomic 10000000000, got %s", draft.InsuredAmount)
	}
	if draft.Params["coverageRatioBps"] != 8000 || draft.Params["maxPayoutBps"] != 1000 {
		t.Fatalf("expected default bps values, got %v", draft.Params)
	}

	same, err := o.CreateDraft(context.Background(), DraftRequest{
		Wallet:        testWallet,
		Product:       domain.ProductAaveDLP,
		TermDays:      domain.Term20,
		InsuredAmount: decimal.NewFromInt(5000),
		Lending: &domain.LendingParams{
			ChainID:         1,
			LendingPool:     "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2",
			CollateralAsset: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		},
	})
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}
	if same.RiskID != draft.RiskID {
		t.Fatalf("risk id must be casing-invariant: %s vs %s", same.RiskID, draft.RiskID)
	}
}

func TestCreateDraft_Validation(t *testing.T) {
	gateway := &fakeGateway{
		chainID:     1,
		distributor: "0x00000000000000000000000000000000000000d1",
	}
	o, drafts := newTestOrchestrator(gateway, &fakeSigner{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  DraftRequest
	}{
		{"bad wallet", DraftRequest{Wallet: "not-an-address", Product: domain.ProductDepegLP, TermDays: domain.Term10, InsuredAmount: decimal.NewFromInt(1), PoolID: "p"}},
		{"bad term", DraftRequest{Wallet: testWallet, Product: domain.ProductDepegLP, TermDays: 11, InsuredAmount: decimal.NewFromInt(1), PoolID: "p"}},
		{"zero amount", DraftRequest{Wallet: testWallet, Product: domain.ProductDepegLP, TermDays: domain.Term10, InsuredAmount: decimal.Zero, PoolID: "p"}},
		{"missing pool", DraftRequest{Wallet: testWallet, Product: domain.ProductDepegLP, TermDays: domain.Term10, InsuredAmount: decimal.NewFromInt(1)}},
		{"missing lending", DraftRequest{Wallet: testWallet, Product: domain.ProductAaveDLP, TermDays: domain.Term10, InsuredAmount: decimal.NewFromInt(1)}},
	}
	for _, tc := range cases {
		if _, err := o.CreateDraft(ctx, tc.req); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	if len(drafts.drafts) != 0 {
		t.Fatalf("no draft should be persisted on validation failure, got %d", len(drafts.drafts))
	}
}

func TestCreateDraft_MissingConfig(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeGateway{chainID: 1}, &fakeSigner{})

	_, err := o.CreateDraft(context.Background(), DraftRequest{
		Wallet:        testWallet,
		Product:       domain.ProductDepegLP,
		TermDays:      domain.Term10,
		InsuredAmount: decimal.NewFromInt(1),
		PoolID:        "curve-pyusd-usdc",
	})
	if domain.KindOf(err) != domain.KindConfig {
		t.Fatalf("expected config error without distributor address, got %v", err)
	}
}
