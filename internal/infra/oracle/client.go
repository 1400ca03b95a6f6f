package oracle

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

const maxResponseBytes = 4 * 1024 * 1024

// Client talks to the off-chain validator API. POST requests carry an HMAC
// over "timestamp.body" so the validator can authenticate the caller.
type Client struct {
	baseURL string
	secret  []byte
	httpDo  func(*http.Request) (*http.Response, error)
	now     func() time.Time
}

func NewClient(baseURL, secret string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, domain.ConfigMissing("VALIDATOR_API_BASE_URL", "validator api base url is not configured")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpDo:  doer,
		now:     time.Now,
	}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c, nil
}

// Risk is one monitored risk as the validator reports it.
type Risk struct {
	RiskID       string      `json:"riskId"`
	Product      string      `json:"product"`
	PoolID       string      `json:"poolId"`
	State        string      `json:"state"`
	UpdatedAt    int64       `json:"updatedAt"`
	LatestWindow *RiskWindow `json:"latestWindow"`
	Metrics      RiskMetrics `json:"metrics"`
	SamplesCount int         `json:"samplesCount,omitempty"`
}

type RiskWindow struct {
	S int64  `json:"S"`
	E *int64 `json:"E"`
}

type RiskMetrics struct {
	Twap1h       *string `json:"twap1h"`
	Twap4h       *string `json:"twap4h"`
	LiquidityUSD *string `json:"liquidityUSD"`
}

type listRisksResponse struct {
	Items []Risk `json:"items"`
}

// ClaimRequest carries a policy snapshot to the validator's claim
// endpoints.
type ClaimRequest struct {
	Policy    map[string]any `json:"policy"`
	ClaimMode string         `json:"claimMode"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Deadline  int64          `json:"deadline,omitempty"`
}

type ClaimPreview struct {
	RiskID    string         `json:"riskId"`
	PolicyID  string         `json:"policyId"`
	S         int64          `json:"S"`
	E         int64          `json:"E"`
	Lstar     any            `json:"Lstar"`
	RefValue  string         `json:"refValue"`
	CurValue  string         `json:"curValue"`
	Payout    string         `json:"payout"`
	TwapStart *string        `json:"twapStart,omitempty"`
	TwapEnd   *string        `json:"twapEnd,omitempty"`
	Snapshots any            `json:"snapshots,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
}

type ClaimSignature struct {
	PolicyID  string         `json:"policyId"`
	RiskID    string         `json:"riskId"`
	TypedData map[string]any `json:"typedData"`
	Signature string         `json:"signature"`
	ExpiresAt int64          `json:"expiresAt"`
	Calc      map[string]any `json:"calc,omitempty"`
}

func (c *Client) ListRisks(ctx context.Context) ([]Risk, error) {
	var out listRisksResponse
	if err := c.request(ctx, http.MethodGet, "/validator/api/v1/risk", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) PreviewClaim(ctx context.Context, req ClaimRequest) (*ClaimPreview, error) {
	var out ClaimPreview
	if err := c.request(ctx, http.MethodPost, "/validator/api/v1/claims/preview", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignClaim(ctx context.Context, req ClaimRequest) (*ClaimSignature, error) {
	var out ClaimSignature
	if err := c.request(ctx, http.MethodPost, "/validator/api/v1/claims/sign", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal validator request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(c.secret) > 0 && method == http.MethodPost {
		timestamp := fmt.Sprintf("%d", c.now().Unix())
		req.Header.Set("x-lg-timestamp", timestamp)
		req.Header.Set("x-lg-signature", SignPayload(c.secret, timestamp, payload))
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return domain.Upstream("VALIDATOR_UNAVAILABLE", "validator api request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Upstream("VALIDATOR_UNAVAILABLE", "validator api response unreadable", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Upstream("VALIDATOR_ERROR",
			fmt.Sprintf("validator api returned %d: %s", resp.StatusCode, truncate(raw, 256)), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Upstream("VALIDATOR_ERROR", "validator api response is not valid json", err)
	}
	return nil
}

// SignPayload computes the hex HMAC-SHA256 over "timestamp.body".
func SignPayload(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
