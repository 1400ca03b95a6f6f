package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

const (
	anchorTxGasLimit   = uint64(300000)
	receiptPollEvery   = 2 * time.Second
	receiptWaitTimeout = 2 * time.Minute
)

// rlpEncodeBytes encodes a byte string per RLP.
func rlpEncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(rlpLength(len(b), 0x80), b...)
}

func rlpEncodeUint(i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return []byte{0x80}
	}
	return rlpEncodeBytes(i.Bytes())
}

func rlpEncodeList(items ...[]byte) []byte {
	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	return append(rlpLength(len(payload), 0xc0), payload...)
}

func rlpLength(length int, offset byte) []byte {
	if length < 56 {
		return []byte{offset + byte(length)}
	}
	lenBytes := new(big.Int).SetInt64(int64(length)).Bytes()
	out := []byte{offset + 55 + byte(len(lenBytes))}
	return append(out, lenBytes...)
}

type legacyTx struct {
	nonce    uint64
	gasPrice *big.Int
	gas      uint64
	to       string
	value    *big.Int
	data     []byte
}

func (tx legacyTx) signingHash(chainID uint64) ([]byte, error) {
	to, err := hexDecode(tx.to)
	if err != nil {
		return nil, err
	}
	encoded := rlpEncodeList(
		rlpEncodeUint(new(big.Int).SetUint64(tx.nonce)),
		rlpEncodeUint(tx.gasPrice),
		rlpEncodeUint(new(big.Int).SetUint64(tx.gas)),
		rlpEncodeBytes(to),
		rlpEncodeUint(tx.value),
		rlpEncodeBytes(tx.data),
		rlpEncodeUint(new(big.Int).SetUint64(chainID)),
		rlpEncodeUint(nil),
		rlpEncodeUint(nil),
	)
	return Keccak256(encoded), nil
}

func (tx legacyTx) encodeSigned(v uint64, r, s []byte) ([]byte, error) {
	to, err := hexDecode(tx.to)
	if err != nil {
		return nil, err
	}
	return rlpEncodeList(
		rlpEncodeUint(new(big.Int).SetUint64(tx.nonce)),
		rlpEncodeUint(tx.gasPrice),
		rlpEncodeUint(new(big.Int).SetUint64(tx.gas)),
		rlpEncodeBytes(to),
		rlpEncodeUint(tx.value),
		rlpEncodeBytes(tx.data),
		rlpEncodeUint(new(big.Int).SetUint64(v)),
		rlpEncodeUint(new(big.Int).SetBytes(r)),
		rlpEncodeUint(new(big.Int).SetBytes(s)),
	), nil
}

// SubmitAndWait signs a contract call as an EIP-155 legacy transaction,
// broadcasts it and polls until it is mined. Returns the transaction hash
// only after on-chain confirmation; the caller persists nothing before that.
func (c *RPCClient) SubmitAndWait(ctx context.Context, key *Key, chainID uint64, to string, data []byte) (string, error) {
	nonce, err := c.PendingNonce(ctx, key.Address())
	if err != nil {
		return "", err
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return "", err
	}

	tx := legacyTx{
		nonce:    nonce,
		gasPrice: gasPrice,
		gas:      anchorTxGasLimit,
		to:       to,
		value:    nil,
		data:     data,
	}
	hash, err := tx.signingHash(chainID)
	if err != nil {
		return "", err
	}
	r, s, v, err := key.SignHashEIP155(hash, chainID)
	if err != nil {
		return "", err
	}
	raw, err := tx.encodeSigned(v, r, s)
	if err != nil {
		return "", err
	}
	txHash, err := c.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(receiptWaitTimeout)
	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err != nil {
			return "", err
		}
		if receipt != nil {
			if receipt.Status == "0x0" {
				return "", domain.Upstream("TX_REVERTED", "attestation transaction reverted", nil)
			}
			return txHash, nil
		}
		if time.Now().After(deadline) {
			return "", domain.Upstream("TX_TIMEOUT", "attestation transaction not mined in time", nil)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(receiptPollEvery):
		}
	}
}
