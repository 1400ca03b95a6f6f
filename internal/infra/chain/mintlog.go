package chain

import (
	"math/big"
	"strings"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

// PolicyMinted(policyId indexed, owner indexed, policyType indexed, riskId)
var policyMintedTopic = EventTopic("PolicyMinted(uint256,address,uint8,bytes32)")

type PolicyMintedEvent struct {
	PolicyID   *big.Int
	Owner      string
	PolicyType uint8
	RiskID     string
}

// ExtractPolicyMinted scans opaque receipt logs for a PolicyMinted event
// emitted by the policy token contract. Pure over its inputs; returns nil
// when no matching event exists.
func ExtractPolicyMinted(logs []Log, policyNFTAddress string) *PolicyMintedEvent {
	for _, entry := range logs {
		if !EqualAddresses(entry.Address, policyNFTAddress) {
			continue
		}
		if len(entry.Topics) != 4 || !strings.EqualFold(entry.Topics[0], policyMintedTopic) {
			continue
		}
		policyID, err := hexToBig(entry.Topics[1])
		if err != nil {
			continue
		}
		ownerWord, err := hexDecode(entry.Topics[2])
		if err != nil || len(ownerWord) != 32 {
			continue
		}
		typeWord, err := hexToBig(entry.Topics[3])
		if err != nil {
			continue
		}
		data, err := hexDecode(entry.Data)
		if err != nil || len(data) < 32 {
			continue
		}
		return &PolicyMintedEvent{
			PolicyID:   policyID,
			Owner:      WordToAddress(ownerWord),
			PolicyType: uint8(typeWord.Uint64()),
			RiskID:     WordToBytes32Hex(data[:32]),
		}
	}
	return nil
}

// FindPolicyMinted wraps ExtractPolicyMinted with the not-found error the
// finalization path surfaces when a transaction carries no mint proof.
func FindPolicyMinted(logs []Log, policyNFTAddress string) (*PolicyMintedEvent, error) {
	event := ExtractPolicyMinted(logs, policyNFTAddress)
	if event == nil {
		return nil, domain.Validation("MINT_EVENT_NOT_FOUND", "PolicyMinted event not found in transaction logs")
	}
	return event, nil
}
