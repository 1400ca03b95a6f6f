//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testWallet = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"

func TestDraftRepository_CreateGetDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	draft, err := store.Drafts.Create(ctx, testDraft(""))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if draft.ID == "" {
		t.Fatal("draft id was not assigned")
	}

	got, err := store.Drafts.GetByID(ctx, draft.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if got.Wallet != testWallet || got.TermsHash != draft.TermsHash {
		t.Fatalf("draft round trip mismatch: %+v", got)
	}
	if got.Calldata.Signature != draft.Calldata.Signature {
		t.Fatal("calldata bundle did not survive the round trip")
	}

	if err := store.Drafts.Delete(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := store.Drafts.GetByID(ctx, draft.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestPolicyRepository_CreateRetiringDraft(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	draft, err := store.Drafts.Create(ctx, testDraft(""))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	policy := testPolicy("42", draft.ID)
	if _, err := store.Policies.CreateRetiringDraft(ctx, policy, draft.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := store.Policies.GetByID(ctx, "42")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if got.Wallet != testWallet || got.Status != domain.PolicyStatusActive {
		t.Fatalf("policy mismatch: %+v", got)
	}
	if _, err := store.Drafts.GetByID(ctx, draft.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("draft must not survive its policy, got %v", err)
	}

	// Replaying the same finalize lands on the same row.
	if _, err := store.Policies.CreateRetiringDraft(ctx, policy, draft.ID); err != nil {
		t.Fatalf("replayed finalize: %v", err)
	}
	listed, err := store.Policies.ListByWallet(ctx, strings.ToUpper(testWallet))
	if err != nil {
		t.Fatalf("list by wallet: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one policy after replay, got %d", len(listed))
	}
}

func TestPolicyRepository_UpdateSettlementNonceGuard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Policies.Upsert(ctx, testPolicy("7", "")); err != nil {
		t.Fatalf("upsert policy: %v", err)
	}

	err := store.Policies.UpdateSettlement(ctx, "7", domain.PolicyStatusClaimed, 1_700_000_500, 1, 0, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	got, err := store.Policies.GetByID(ctx, "7")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if got.Nonce != 1 || got.ClaimedUpTo != 1_700_000_500 || got.Status != domain.PolicyStatusClaimed {
		t.Fatalf("settlement did not land: %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("metadata patch missing: %v", got.Metadata)
	}

	// A writer still holding the old nonce loses.
	err = store.Policies.UpdateSettlement(ctx, "7", domain.PolicyStatusClaimed, 1_700_000_600, 1, 0, map[string]any{})
	if domain.KindOf(err) != domain.KindConflict {
		t.Fatalf("expected conflict on stale nonce, got %v", err)
	}
}

func TestAnchorRepository_UpsertKeepsCreatedAt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	riskID := "0x" + strings.Repeat("ab", 32)

	point := domain.AnchorPoint{Timestamp: 1_700_000_000, TwapE18: "980000000000000000", SnapshotCID: "0x" + strings.Repeat("cd", 32), TxHash: "0xfirst"}
	if err := store.Anchors.Upsert(ctx, riskID, domain.AnchorDepegStart, point); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	rows, err := store.Anchors.ListAll(ctx)
	if err != nil {
		t.Fatalf("list anchors: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one anchor row, got %d", len(rows))
	}
	firstCreated := rows[0].Point.CreatedAt

	point.Timestamp = 1_700_000_100
	point.TxHash = "0xsecond"
	if err := store.Anchors.Upsert(ctx, riskID, domain.AnchorDepegStart, point); err != nil {
		t.Fatalf("replay upsert: %v", err)
	}
	rows, err = store.Anchors.ListAll(ctx)
	if err != nil {
		t.Fatalf("list anchors after replay: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("replay must not add a row, got %d", len(rows))
	}
	if rows[0].Point.Timestamp != 1_700_000_100 || rows[0].Point.TxHash != "0xsecond" {
		t.Fatalf("replay did not refresh values: %+v", rows[0].Point)
	}
	if !rows[0].Point.CreatedAt.Equal(firstCreated) {
		t.Fatalf("created_at drifted on replay: %v -> %v", firstCreated, rows[0].Point.CreatedAt)
	}

	if err := store.Anchors.Upsert(ctx, riskID, domain.AnchorDepegEnd, domain.AnchorPoint{Timestamp: 1_700_000_900, TwapE18: "1000000000000000000"}); err != nil {
		t.Fatalf("end upsert: %v", err)
	}
	window, err := store.Anchors.Window(ctx, riskID)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if window.Start == nil || window.End == nil {
		t.Fatalf("window halves missing: %+v", window)
	}
	if window.Start.Timestamp != 1_700_000_100 || window.End.Timestamp != 1_700_000_900 {
		t.Fatalf("window mismatch: start %d end %d", window.Start.Timestamp, window.End.Timestamp)
	}
}

func TestClaimRepository_CreateAndQueue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Policies.Upsert(ctx, testPolicy("9", "")); err != nil {
		t.Fatalf("upsert policy: %v", err)
	}

	expires := time.Unix(1_700_000_900, 0).UTC()
	claim, err := store.Claims.Create(ctx, domain.Claim{
		PolicyID:  "9",
		Product:   domain.ProductDepegLP,
		Status:    domain.ClaimStatusQueued,
		Payout:    decimal.RequireFromString("700"),
		Payload:   map[string]any{"policyId": "9"},
		Signature: "0xsig",
		ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	if claim.ID == "" {
		t.Fatal("claim id was not assigned")
	}

	queue, err := store.Claims.ListQueued(ctx)
	if err != nil {
		t.Fatalf("list queued: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("expected one queued claim, got %d", len(queue))
	}
	item := queue[0]
	if item.ClaimID != claim.ID || item.PolicyID != "9" || item.Wallet != testWallet {
		t.Fatalf("queue item mismatch: %+v", item)
	}
	if !item.Payout.Equal(decimal.RequireFromString("700")) {
		t.Fatalf("queue payout = %s, want 700", item.Payout)
	}

	if err := store.Claims.UpdateStatus(ctx, claim.ID, domain.ClaimStatusSubmitted, "0xsettle"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := store.Claims.GetByID(ctx, claim.ID)
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got.Status != domain.ClaimStatusSubmitted || got.TxHash != "0xsettle" {
		t.Fatalf("status update mismatch: %+v", got)
	}
	if queue, err = store.Claims.ListQueued(ctx); err != nil || len(queue) != 0 {
		t.Fatalf("queue should drain after submission: %v, %d items", err, len(queue))
	}
}

func testDraft(id string) domain.PolicyDraft {
	return domain.PolicyDraft{
		ID:             id,
		Wallet:         testWallet,
		Product:        domain.ProductDepegLP,
		PolicyType:     domain.PolicyTypeCurveLP,
		RiskID:         "0x" + strings.Repeat("ab", 32),
		TermDays:       domain.Term10,
		InsuredAmount:  "1000",
		PremiumUSD:     decimal.RequireFromString("10"),
		CoverageCapUSD: decimal.RequireFromString("900"),
		DeductibleBps:  500,
		StartAt:        1_700_000_300,
		ActiveAt:       1_700_086_700,
		EndAt:          1_700_950_700,
		TermsHash:      "0x" + strings.Repeat("ef", 32),
		Params:         map[string]any{"poolId": "curve-pyusd-usdc"},
		Breakdown:      map[string]any{"termRate": "0.01"},
		Calldata:       domain.MintCalldata{Signature: "0xquote", Deadline: 1_700_003_600, Nonce: "0"},
	}
}

func testPolicy(id, draftID string) domain.Policy {
	return domain.Policy{
		ID:             id,
		DraftID:        draftID,
		Wallet:         testWallet,
		Product:        domain.ProductDepegLP,
		PolicyType:     domain.PolicyTypeCurveLP,
		RiskID:         "0x" + strings.Repeat("ab", 32),
		InsuredAmount:  "1000",
		CoverageCapUSD: decimal.RequireFromString("900"),
		DeductibleBps:  500,
		TermDays:       domain.Term10,
		StartAt:        1_700_000_300,
		ActiveAt:       1_700_086_700,
		EndAt:          1_700_950_700,
		Status:         domain.PolicyStatusActive,
		Metadata:       map[string]any{},
		NFTTokenID:     id,
	}
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lockTestDB(t, gdb)
	if err := gdb.AutoMigrate(
		&PolicyDraftModel{},
		&PolicyModel{},
		&AnchorModel{},
		&LiquidationModel{},
		&ClaimModel{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resetTestDB(t, gdb)
	return newStore(gdb)
}

func lockTestDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(772014003)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(772014003)")
		_ = conn.Close()
	})
}

func resetTestDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	for _, table := range []string{"claims", "liquidations", "anchors", "policies", "policy_drafts"} {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
}
