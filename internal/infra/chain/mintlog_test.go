package chain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

const (
	mintNFTAddress = "0x00000000000000000000000000000000000000Cf"
	mintOwner      = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
)

func mintedTestLog(address string, policyID int64, policyType uint8) Log {
	riskWord := "0x" + strings.Repeat("cd", 32)
	return Log{
		Address: address,
		Topics: []string{
			policyMintedTopic,
			fmt.Sprintf("0x%064x", policyID),
			"0x000000000000000000000000" + strings.TrimPrefix(mintOwner, "0x"),
			fmt.Sprintf("0x%064x", policyType),
		},
		Data: riskWord,
	}
}

func TestExtractPolicyMinted(t *testing.T) {
	logs := []Log{
		{Address: mintNFTAddress, Topics: []string{EventTopic("Transfer(address,address,uint256)")}},
		mintedTestLog(mintNFTAddress, 42, 1),
	}

	event := ExtractPolicyMinted(logs, mintNFTAddress)
	if event == nil {
		t.Fatal("expected a PolicyMinted event")
	}
	if event.PolicyID.Int64() != 42 {
		t.Fatalf("policyID = %s, want 42", event.PolicyID)
	}
	if !strings.EqualFold(event.Owner, mintOwner) {
		t.Fatalf("owner = %s, want %s", event.Owner, mintOwner)
	}
	if event.PolicyType != 1 {
		t.Fatalf("policyType = %d, want 1", event.PolicyType)
	}
	if event.RiskID != "0x"+strings.Repeat("cd", 32) {
		t.Fatalf("riskID = %s", event.RiskID)
	}
}

func TestExtractPolicyMinted_IgnoresOtherContracts(t *testing.T) {
	logs := []Log{mintedTestLog("0x00000000000000000000000000000000000000dd", 7, 0)}
	if event := ExtractPolicyMinted(logs, mintNFTAddress); event != nil {
		t.Fatalf("event from a foreign contract must be ignored, got %+v", event)
	}
}

func TestExtractPolicyMinted_AddressCaseInsensitive(t *testing.T) {
	logs := []Log{mintedTestLog(strings.ToLower(mintNFTAddress), 7, 0)}
	if event := ExtractPolicyMinted(logs, "0x"+strings.ToUpper(mintNFTAddress[2:])); event == nil {
		t.Fatal("emitter address comparison should ignore case")
	}
}

func TestFindPolicyMinted_ErrorsWhenAbsent(t *testing.T) {
	_, err := FindPolicyMinted(nil, mintNFTAddress)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
