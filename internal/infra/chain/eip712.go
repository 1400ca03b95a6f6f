package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

// HashTypedData computes the EIP-712 digest of a typed-data envelope whose
// message values use the engine's wire encodings (decimal strings, hex
// strings, plain numbers).
func HashTypedData(td domain.TypedData) ([]byte, error) {
	fields, ok := td.Types[td.PrimaryType]
	if !ok {
		return nil, fmt.Errorf("typed data: unknown primary type %q", td.PrimaryType)
	}
	domainSep, err := hashDomain(td.Domain)
	if err != nil {
		return nil, err
	}
	structHash, err := hashStruct(td.PrimaryType, fields, td.Message)
	if err != nil {
		return nil, err
	}
	return Keccak256([]byte{0x19, 0x01}, domainSep, structHash), nil
}

func hashDomain(d map[string]any) ([]byte, error) {
	fields := []domain.TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
	present := make([]domain.TypedDataField, 0, len(fields))
	for _, f := range fields {
		if _, ok := d[f.Name]; ok {
			present = append(present, f)
		}
	}
	return hashStruct("EIP712Domain", present, d)
}

func hashStruct(typeName string, fields []domain.TypedDataField, values map[string]any) ([]byte, error) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type + " " + f.Name
	}
	typeHash := Keccak256([]byte(typeName + "(" + strings.Join(parts, ",") + ")"))

	encoded := make([]byte, 0, 32*(len(fields)+1))
	encoded = append(encoded, typeHash...)
	for _, f := range fields {
		atom, err := encodeAtom(f.Type, values[f.Name], f.Name)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, atom...)
	}
	return Keccak256(encoded), nil
}

func encodeAtom(fieldType string, value any, label string) ([]byte, error) {
	switch {
	case fieldType == "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("typed data: %s must be a string", label)
		}
		return Keccak256([]byte(s)), nil
	case fieldType == "address":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("typed data: %s must be an address string", label)
		}
		raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		b, err := hex.DecodeString(raw)
		if err != nil || len(b) != 20 {
			return nil, fmt.Errorf("typed data: %s is not a 20-byte address", label)
		}
		return leftPad32(b), nil
	case fieldType == "bytes32":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("typed data: %s must be a bytes32 hex string", label)
		}
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("typed data: %s is not 32 bytes", label)
		}
		return b, nil
	case strings.HasPrefix(fieldType, "uint"):
		i, err := NormalizeUint(value, label)
		if err != nil {
			return nil, err
		}
		return encodeUint256(i), nil
	default:
		return nil, fmt.Errorf("typed data: unsupported field type %q", fieldType)
	}
}

func encodeUint256(i *big.Int) []byte {
	return leftPad32(i.Bytes())
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// SignTypedData hashes the envelope and signs it with key, returning a
// 0x-prefixed 65-byte signature.
func SignTypedData(key *Key, td domain.TypedData) (string, error) {
	digest, err := HashTypedData(td)
	if err != nil {
		return "", err
	}
	sig, err := key.SignHash(digest)
	if err != nil {
		return "", err
	}
	return SignatureHex(sig), nil
}
