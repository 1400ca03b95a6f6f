package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/craterface77/liquidity-guard-be/internal/domain"
)

var decimalDigits = regexp.MustCompile(`^[0-9]+$`)

// Keccak256 is the hash every identifier and signature path in the protocol
// is built on.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func Keccak256Hex(data ...[]byte) string {
	return "0x" + hex.EncodeToString(Keccak256(data...))
}

// HashUTF8 derives a 32-byte risk identifier from an arbitrary string.
func HashUTF8(s string) string {
	return Keccak256Hex([]byte(s))
}

func isHexString(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	body := s[2:]
	if len(body) == 0 || len(body)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}

// NormalizeBytes32 canonicalizes identifiers and content references:
// 32-byte hex passes through, shorter hex is left-aligned zero-padded,
// UTF-8 text up to 32 bytes is zero-padded, longer text is keccak-hashed
// down to 32 bytes. The result is stable under re-normalization.
func NormalizeBytes32(value, label string) (string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", domain.Validation("INVALID_ANCHOR_FIELD", label+" is required")
	}

	if isHexString(raw) {
		body := strings.ToLower(raw[2:])
		if len(body) == 64 {
			return "0x" + body, nil
		}
		if len(body) > 64 {
			return "", domain.Validation("INVALID_ANCHOR_FIELD", label+" exceeds 32 bytes")
		}
		return "0x" + strings.Repeat("0", 64-len(body)) + body, nil
	}

	utf8 := []byte(raw)
	if len(utf8) > 32 {
		return Keccak256Hex(utf8), nil
	}
	padded := make([]byte, 32)
	copy(padded, utf8)
	return "0x" + hex.EncodeToString(padded), nil
}

// NormalizeUint accepts decimal strings, 0x-hex strings and native integer
// types and returns a canonical non-negative big integer.
func NormalizeUint(value any, label string) (*big.Int, error) {
	switch v := value.(type) {
	case nil:
		return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" is required")
	case *big.Int:
		if v.Sign() < 0 {
			return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" must be non-negative")
		}
		return new(big.Int).Set(v), nil
	case int:
		return normalizeInt64(int64(v), label)
	case int64:
		return normalizeInt64(v, label)
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		if v != v || v < 0 {
			return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" must be a non-negative number")
		}
		f := new(big.Float).SetFloat64(v)
		i, _ := f.Int(nil)
		return i, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" is required")
		}
		if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
			i, ok := new(big.Int).SetString(trimmed[2:], 16)
			if !ok {
				return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" is not a valid hex integer")
			}
			return i, nil
		}
		if !decimalDigits.MatchString(trimmed) {
			return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" must be a decimal or hex integer string")
		}
		i, _ := new(big.Int).SetString(trimmed, 10)
		return i, nil
	default:
		return nil, domain.Validation("INVALID_ANCHOR_FIELD", fmt.Sprintf("%s is not a valid integer value", label))
	}
}

func normalizeInt64(v int64, label string) (*big.Int, error) {
	if v < 0 {
		return nil, domain.Validation("INVALID_ANCHOR_FIELD", label+" must be non-negative")
	}
	return big.NewInt(v), nil
}

// NormalizeAddress validates a 20-byte hex address and returns its EIP-55
// checksummed form.
func NormalizeAddress(value string) (string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", domain.Validation("INVALID_ANCHOR_FIELD", "address is required")
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != 40 {
		return "", domain.Validation("INVALID_ANCHOR_FIELD", "address must be 20 bytes")
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", domain.Validation("INVALID_ANCHOR_FIELD", "address is not valid hex")
	}
	return ChecksumAddress(raw), nil
}

// ChecksumAddress applies EIP-55 casing to a bare 40-char hex address.
func ChecksumAddress(hexAddr string) string {
	lower := strings.ToLower(hexAddr)
	sum := Keccak256([]byte(lower))
	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' {
			nibble := sum[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				c = c - 'a' + 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// EqualAddresses compares two addresses ignoring checksum casing.
func EqualAddresses(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
