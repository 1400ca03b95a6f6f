package chain

import (
	"context"
	"math/big"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

// Gateway exposes the typed contract surface the services need. All read
// calls go through eth_call against the configured addresses; anchor writes
// are signed with the oracle key and submitted as legacy transactions.
type Gateway struct {
	rpc     *RPCClient
	chainID uint64

	distributor   string
	policyNFT     string
	payoutModule  string
	reservePool   string
	oracleAnchors string

	oracleKey *Key
}

type GatewayConfig struct {
	ChainID              uint64
	DistributorAddress   string
	PolicyNFTAddress     string
	PayoutModuleAddress  string
	ReservePoolAddress   string
	OracleAnchorsAddress string
}

func NewGateway(rpc *RPCClient, cfg GatewayConfig, oracleKey *Key) *Gateway {
	return &Gateway{
		rpc:           rpc,
		chainID:       cfg.ChainID,
		distributor:   cfg.DistributorAddress,
		policyNFT:     cfg.PolicyNFTAddress,
		payoutModule:  cfg.PayoutModuleAddress,
		reservePool:   cfg.ReservePoolAddress,
		oracleAnchors: cfg.OracleAnchorsAddress,
		oracleKey:     oracleKey,
	}
}

func (g *Gateway) ChainID() uint64 { return g.chainID }

func (g *Gateway) DistributorAddress() string { return g.distributor }

func (g *Gateway) PolicyNFTAddress() string { return g.policyNFT }

func (g *Gateway) callWords(ctx context.Context, to, signature string, expect int, args ...any) ([][]byte, error) {
	data, err := EncodeCall(signature, args...)
	if err != nil {
		return nil, domain.Upstream("CONTRACT_CALL_ENCODE", "failed to encode contract call", err)
	}
	out, err := g.rpc.EthCall(ctx, to, data)
	if err != nil {
		return nil, err
	}
	words, err := DecodeWords(out, expect)
	if err != nil {
		return nil, domain.Upstream("CONTRACT_CALL_DECODE", "unexpected contract return shape", err)
	}
	return words, nil
}

// BuyerNonce reads the distributor's EIP-712 nonce for a wallet.
func (g *Gateway) BuyerNonce(ctx context.Context, wallet string) (*big.Int, error) {
	addr, err := NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	words, err := g.callWords(ctx, g.distributor, "nonces(address)", 1, addr)
	if err != nil {
		return nil, err
	}
	return WordToBig(words[0]), nil
}

// OnChainPolicy mirrors the NFT's policyData tuple.
type OnChainPolicy struct {
	PolicyType    uint8
	RiskID        string
	InsuredAmount *big.Int
	CoverageCap   *big.Int
	DeductibleBps uint32
	StartAt       int64
	ActiveAt      int64
	EndAt         int64
	ClaimedUpTo   int64
}

func (g *Gateway) PolicyData(ctx context.Context, policyID *big.Int) (*OnChainPolicy, error) {
	words, err := g.callWords(ctx, g.policyNFT, "policyData(uint256)", 9, policyID)
	if err != nil {
		return nil, err
	}
	return &OnChainPolicy{
		PolicyType:    uint8(WordToBig(words[0]).Uint64()),
		RiskID:        WordToBytes32Hex(words[1]),
		InsuredAmount: WordToBig(words[2]),
		CoverageCap:   WordToBig(words[3]),
		DeductibleBps: uint32(WordToBig(words[4]).Uint64()),
		StartAt:       int64(WordToBig(words[5]).Uint64()),
		ActiveAt:      int64(WordToBig(words[6]).Uint64()),
		EndAt:         int64(WordToBig(words[7]).Uint64()),
		ClaimedUpTo:   int64(WordToBig(words[8]).Uint64()),
	}, nil
}

// OnChainDlpPolicy mirrors the NFT's dlpPolicyData tuple for lending covers.
type OnChainDlpPolicy struct {
	ChainID          uint32
	LendingPool      string
	CollateralAsset  string
	CoverageRatioBps uint16
	MaxPayoutBps     uint16
}

func (g *Gateway) DlpPolicyData(ctx context.Context, policyID *big.Int) (*OnChainDlpPolicy, error) {
	words, err := g.callWords(ctx, g.policyNFT, "dlpPolicyData(uint256)", 5, policyID)
	if err != nil {
		return nil, err
	}
	return &OnChainDlpPolicy{
		ChainID:          uint32(WordToBig(words[0]).Uint64()),
		LendingPool:      WordToAddress(words[1]),
		CollateralAsset:  WordToAddress(words[2]),
		CoverageRatioBps: uint16(WordToBig(words[3]).Uint64()),
		MaxPayoutBps:     uint16(WordToBig(words[4]).Uint64()),
	}, nil
}

func (g *Gateway) OwnerOf(ctx context.Context, tokenID *big.Int) (string, error) {
	words, err := g.callWords(ctx, g.policyNFT, "ownerOf(uint256)", 1, tokenID)
	if err != nil {
		return "", err
	}
	return WordToAddress(words[0]), nil
}

// PolicyNonce reads the payout module's replay nonce for a policy.
func (g *Gateway) PolicyNonce(ctx context.Context, policyID *big.Int) (*big.Int, error) {
	words, err := g.callWords(ctx, g.payoutModule, "policyNonces(uint256)", 1, policyID)
	if err != nil {
		return nil, err
	}
	return WordToBig(words[0]), nil
}

// ReserveTotals reads the reserve pool's headline figures in atomic USDC.
func (g *Gateway) ReserveTotals(ctx context.Context) (nav, pendingClaims, pendingRedemptions *big.Int, err error) {
	navWords, err := g.callWords(ctx, g.reservePool, "totalManagedAssets()", 1)
	if err != nil {
		return nil, nil, nil, err
	}
	claimWords, err := g.callWords(ctx, g.reservePool, "pendingClaims()", 1)
	if err != nil {
		return nil, nil, nil, err
	}
	redeemWords, err := g.callWords(ctx, g.reservePool, "pendingRedemptions()", 1)
	if err != nil {
		return nil, nil, nil, err
	}
	return WordToBig(navWords[0]), WordToBig(claimWords[0]), WordToBig(redeemWords[0]), nil
}

// MintReceipt fetches a mined transaction receipt, translating the unmined
// case into a not-found error the caller can surface.
func (g *Gateway) MintReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := g.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.NotFound("TX_NOT_MINED", "transaction is not mined yet")
	}
	return receipt, nil
}

func (g *Gateway) submitAnchor(ctx context.Context, signature string, args ...any) (string, error) {
	if g.oracleAnchors == "" || g.oracleKey == nil {
		return "", nil
	}
	data, err := EncodeCall(signature, args...)
	if err != nil {
		return "", domain.Upstream("ANCHOR_ENCODE", "failed to encode anchor submission", err)
	}
	return g.rpc.SubmitAndWait(ctx, g.oracleKey, g.chainID, g.oracleAnchors, data)
}

// AnchorDepegStart records the opening point of a depeg window on chain.
// Returns an empty hash when no anchors contract is configured.
func (g *Gateway) AnchorDepegStart(ctx context.Context, riskID string, timestamp int64, twapE18 *big.Int, snapshotCID string) (string, error) {
	return g.submitAnchor(ctx, "anchorDepegStart(bytes32,uint64,uint192,bytes32)",
		riskID, uint64(timestamp), twapE18, snapshotCID)
}

func (g *Gateway) AnchorDepegEnd(ctx context.Context, riskID string, timestamp int64, twapE18 *big.Int, snapshotCID string) (string, error) {
	return g.submitAnchor(ctx, "anchorDepegEnd(bytes32,uint64,uint192,bytes32)",
		riskID, uint64(timestamp), twapE18, snapshotCID)
}

func (g *Gateway) AnchorLiquidation(ctx context.Context, ev domain.LiquidationEvidence) (string, error) {
	twap, err := NormalizeUint(ev.TwapE18, "twapE18")
	if err != nil {
		return "", err
	}
	return g.submitAnchor(ctx, "anchorDepegLiquidation(bytes32,bytes32,address,uint64,uint192,uint64,uint64,bytes32)",
		ev.RiskID, ev.LiquidationID, ev.User,
		uint64(ev.Timestamp), twap,
		uint64(ev.HFBeforeE4), uint64(ev.HFAfterE4),
		ev.SnapshotCID)
}
