package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

const maxRPCResponseBytes = 4 * 1024 * 1024

// RPCClient is a minimal Ethereum JSON-RPC client. The http doer is
// injectable for tests.
type RPCClient struct {
	url    string
	httpDo func(*http.Request) (*http.Response, error)
	nextID atomic.Uint64
}

func NewRPCClient(url string, httpClient *http.Client) (*RPCClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, domain.ConfigMissing("CONFIG_MISSING", "RPC_URL is not configured")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &RPCClient{url: url, httpDo: doer}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) Call(ctx context.Context, out any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpDo(req)
	if err != nil {
		return domain.Upstream("RPC_UNAVAILABLE", "chain rpc request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCResponseBytes))
	if err != nil {
		return domain.Upstream("RPC_UNAVAILABLE", "chain rpc response unreadable", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Upstream("RPC_UNAVAILABLE", fmt.Sprintf("chain rpc status %d", resp.StatusCode), nil)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.Upstream("RPC_UNAVAILABLE", "chain rpc response is not json", err)
	}
	if decoded.Error != nil {
		return domain.Upstream("RPC_ERROR", fmt.Sprintf("chain rpc error %d: %s", decoded.Error.Code, decoded.Error.Message), nil)
	}
	if out == nil {
		return nil
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return errNullResult
	}
	return json.Unmarshal(decoded.Result, out)
}

var errNullResult = errors.New("rpc result is null")

// EthCall executes a read-only contract call and returns the raw return data.
func (c *RPCClient) EthCall(ctx context.Context, to string, data []byte) ([]byte, error) {
	var result string
	call := map[string]string{"to": to, "data": "0x" + hexEncode(data)}
	if err := c.Call(ctx, &result, "eth_call", call, "latest"); err != nil {
		return nil, err
	}
	return hexDecode(result)
}

func (c *RPCClient) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, &result, "eth_chainId"); err != nil {
		return 0, err
	}
	return hexToUint64(result)
}

func (c *RPCClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.Call(ctx, &result, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return hexToBig(result)
}

func (c *RPCClient) PendingNonce(ctx context.Context, address string) (uint64, error) {
	var result string
	if err := c.Call(ctx, &result, "eth_getTransactionCount", address, "pending"); err != nil {
		return 0, err
	}
	return hexToUint64(result)
}

func (c *RPCClient) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var txHash string
	if err := c.Call(ctx, &txHash, "eth_sendRawTransaction", "0x"+hexEncode(raw)); err != nil {
		return "", err
	}
	return txHash, nil
}

// Log is one opaque receipt log entry; decoding specific events from a log
// list is a pure function (see mintlog.go).
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	BlockNumber     string `json:"blockNumber"`
	Logs            []Log  `json:"logs"`
}

// TransactionReceipt returns nil without error when the transaction is
// unknown or not yet mined.
func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt Receipt
	err := c.Call(ctx, &receipt, "eth_getTransactionReceipt", txHash)
	if errors.Is(err, errNullResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
