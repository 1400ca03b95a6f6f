package domain

type ProductType string

const (
	ProductDepegLP ProductType = "DEPEG_LP"
	ProductAaveDLP ProductType = "AAVE_DLP"
)

func (p ProductType) Valid() bool {
	return p == ProductDepegLP || p == ProductAaveDLP
}

type PolicyType string

const (
	PolicyTypeCurveLP PolicyType = "CURVE_LP"
	PolicyTypeAaveDLP PolicyType = "AAVE_DLP"
)

// OnChainCode is the uint8 the distributor and policy token contracts use.
func (p PolicyType) OnChainCode() uint8 {
	if p == PolicyTypeAaveDLP {
		return 1
	}
	return 0
}

func PolicyTypeFromCode(code uint8) PolicyType {
	if code == 1 {
		return PolicyTypeAaveDLP
	}
	return PolicyTypeCurveLP
}

type TermDays int

const (
	Term10 TermDays = 10
	Term20 TermDays = 20
	Term30 TermDays = 30
)

func (t TermDays) Valid() bool {
	return t == Term10 || t == Term20 || t == Term30
}

type PolicyStatus string

const (
	PolicyStatusDraft   PolicyStatus = "draft"
	PolicyStatusPending PolicyStatus = "pending"
	PolicyStatusActive  PolicyStatus = "active"
	PolicyStatusExpired PolicyStatus = "expired"
	PolicyStatusClaimed PolicyStatus = "claimed"
	PolicyStatusQueued  PolicyStatus = "queued"
)

type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusSigned    ClaimStatus = "signed"
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusPaid      ClaimStatus = "paid"
	ClaimStatusQueued    ClaimStatus = "queued"
)
