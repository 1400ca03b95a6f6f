package gatepolicy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/open-policy-agent/opa/rego"
	"github.com/shopspring/decimal"
)

const defaultQuery = "data.liquidityguard.gate.result"

// GateInput is what a gate policy sees for one computed claim.
type GateInput struct {
	PolicyID    string `json:"policyId"`
	Product     string `json:"product"`
	Payout      string `json:"payout"`
	CoverageCap string `json:"coverageCap"`
	RatioBps    int64  `json:"ratioBps"`
}

// GateResult is the policy's verdict. Queue=true parks the claim for
// operator review instead of settling immediately.
type GateResult struct {
	Queue  bool   `json:"queue"`
	Reason string `json:"reason,omitempty"`
}

// Engine evaluates an operator-supplied rego bundle that can override the
// built-in queue threshold. A nil engine means the caller falls back to the
// default rule.
type Engine struct {
	query rego.PreparedEvalQuery
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input GateInput) (GateResult, error) {
	if e == nil {
		return GateResult{}, errors.New("gate policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return GateResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return GateResult{}, errors.New("empty gate policy result")
	}
	payload, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return GateResult{}, err
	}
	var result GateResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return GateResult{}, err
	}
	return result, nil
}

// queueThresholdBps is the built-in gate: payouts above 80% of the coverage
// cap are queued for review.
const queueThresholdBps = 8000

// DefaultDecision applies the built-in threshold rule.
func DefaultDecision(payout, coverageCap decimal.Decimal) GateResult {
	if coverageCap.IsZero() {
		return GateResult{Queue: true, Reason: "coverage cap is zero"}
	}
	ratio := payout.Div(coverageCap)
	if ratio.GreaterThan(decimal.NewFromInt(queueThresholdBps).Shift(-4)) {
		return GateResult{Queue: true, Reason: "payout exceeds review threshold"}
	}
	return GateResult{}
}

// RatioBps expresses payout/coverageCap in basis points for policy input.
func RatioBps(payout, coverageCap decimal.Decimal) int64 {
	if coverageCap.IsZero() {
		return 0
	}
	return payout.Div(coverageCap).Shift(4).IntPart()
}
