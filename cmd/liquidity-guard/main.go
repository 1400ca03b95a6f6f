package main

import (
	"context"
	"log"

	"github.com/craterface77/liquidity-guard-be/internal/config"
	"github.com/craterface77/liquidity-guard-be/internal/domain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/chain"
	"github.com/craterface77/liquidity-guard-be/internal/infra/db"
	"github.com/craterface77/liquidity-guard-be/internal/infra/gatepolicy"
	httpinfra "github.com/craterface77/liquidity-guard-be/internal/infra/http"
	"github.com/craterface77/liquidity-guard-be/internal/infra/oracle"
	"github.com/craterface77/liquidity-guard-be/internal/infra/ratelimit"
	"github.com/craterface77/liquidity-guard-be/internal/infra/webhookauth"
	"github.com/craterface77/liquidity-guard-be/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	gateway := buildGateway(cfg)

	var quoteSigner usecase.QuoteSigner
	if cfg.QuoteSignerKeyHex != "" {
		key, err := chain.ParseKey(cfg.QuoteSignerKeyHex)
		if err != nil {
			log.Fatalf("invalid quote signer key: %v", err)
		}
		quoteSigner = chain.NewTypedSigner(key)
	}
	var payoutSigner usecase.QuoteSigner
	if cfg.OracleSignerKeyHex != "" {
		key, err := chain.ParseKey(cfg.OracleSignerKeyHex)
		if err != nil {
			log.Fatalf("invalid oracle signer key: %v", err)
		}
		payoutSigner = chain.NewTypedSigner(key)
	}

	var riskOracle usecase.RiskOracle
	if cfg.ValidatorAPIBaseURL != "" {
		client, err := oracle.NewClient(cfg.ValidatorAPIBaseURL, cfg.ValidatorAPISecret, nil)
		if err != nil {
			log.Fatalf("failed to init validator client: %v", err)
		}
		riskOracle = client
	}

	var webhook domain.WebhookVerifier
	if cfg.ValidatorAPISecret != "" {
		verifier, err := webhookauth.NewHMACVerifier(cfg.ValidatorAPISecret, cfg.WebhookMaxAge())
		if err != nil {
			log.Fatalf("failed to init webhook verifier: %v", err)
		}
		webhook = verifier
	}

	var gate usecase.GateOverride
	if cfg.ClaimGateBundlePath != "" {
		engine, err := gatepolicy.NewEngineFromBundlePath(context.Background(), cfg.ClaimGateBundlePath)
		if err != nil {
			log.Fatalf("failed to load claim gate bundle: %v", err)
		}
		gate = engine
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				log.Printf("redis rate limiter unavailable, using in-memory: %v", err)
			} else {
				limiter = redisLimiter
			}
		}
		if limiter == nil {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
		}
	}

	pools := usecase.NewPoolService(riskOracle, cfg.ChainID)
	quotes := usecase.NewQuoteEngine(pools)
	drafts := usecase.NewDraftOrchestrator(store.Drafts, quotes, gateway, quoteSigner, cfg.QuoteDeadline(), cfg.MintStartBuffer())
	finalizer := usecase.NewFinalizationReconciler(store.Drafts, store.Policies, gateway)
	ledger := usecase.NewEvidenceLedger(store.Anchors, store.Liquidations, store.Policies, gateway)
	claims := usecase.NewClaimComputer(store.Policies, store.Claims, ledger, payoutSigner, gate, cfg.ChainID, cfg.PayoutModuleAddress)
	reserve := usecase.NewReserveService(gateway)

	srv := httpinfra.NewServer(cfg, store, httpinfra.ServerDeps{
		Pools:       pools,
		Quotes:      quotes,
		Drafts:      drafts,
		Finalizer:   finalizer,
		Ledger:      ledger,
		Claims:      claims,
		Reserve:     reserve,
		Policies:    store.Policies,
		Webhook:     webhook,
		RateLimiter: limiter,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// buildGateway wires the on-chain surface when an RPC endpoint is set. The
// engine stays usable without it; chain-backed routes report config errors.
func buildGateway(cfg config.Config) usecase.ContractGateway {
	if cfg.RPCURL == "" {
		return nil
	}
	rpc, err := chain.NewRPCClient(cfg.RPCURL, nil)
	if err != nil {
		log.Fatalf("invalid rpc url: %v", err)
	}
	var oracleKey *chain.Key
	if cfg.OracleSignerKeyHex != "" {
		key, err := chain.ParseKey(cfg.OracleSignerKeyHex)
		if err != nil {
			log.Fatalf("invalid oracle signer key: %v", err)
		}
		oracleKey = key
	}
	return chain.NewGateway(rpc, chain.GatewayConfig{
		ChainID:              cfg.ChainID,
		DistributorAddress:   cfg.PolicyDistributorAddress,
		PolicyNFTAddress:     cfg.PolicyNFTAddress,
		PayoutModuleAddress:  cfg.PayoutModuleAddress,
		ReservePoolAddress:   cfg.ReservePoolAddress,
		OracleAnchorsAddress: cfg.OracleAnchorsAddress,
	}, oracleKey)
}
