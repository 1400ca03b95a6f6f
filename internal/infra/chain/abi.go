package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Fixed-shape ABI helpers for the handful of contract calls the engine
// makes. All arguments and returns involved are static 32-byte words, so no
// general-purpose ABI machinery is needed.

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}

func hexToBig(s string) (*big.Int, error) {
	i, ok := new(big.Int).SetString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"), 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return i, nil
}

func hexToUint64(s string) (uint64, error) {
	i, err := hexToBig(s)
	if err != nil {
		return 0, err
	}
	return i.Uint64(), nil
}

// MethodID returns the 4-byte selector of a canonical signature.
func MethodID(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// EventTopic returns the topic0 hash of a canonical event signature.
func EventTopic(signature string) string {
	return "0x" + hexEncode(Keccak256([]byte(signature)))
}

func wordUint(i *big.Int) []byte {
	return leftPad32(i.Bytes())
}

func wordAddress(addr string) ([]byte, error) {
	raw, err := hexDecode(addr)
	if err != nil || len(raw) != 20 {
		return nil, fmt.Errorf("invalid address %q", addr)
	}
	return leftPad32(raw), nil
}

func wordBytes32(value string) ([]byte, error) {
	raw, err := hexDecode(value)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid bytes32 %q", value)
	}
	return raw, nil
}

// EncodeCall assembles selector + static words. Each arg must be *big.Int,
// an address string, or a bytes32 hex string.
func EncodeCall(signature string, args ...any) ([]byte, error) {
	data := append([]byte{}, MethodID(signature)...)
	for i, arg := range args {
		var (
			word []byte
			err  error
		)
		switch v := arg.(type) {
		case *big.Int:
			word = wordUint(v)
		case uint64:
			word = wordUint(new(big.Int).SetUint64(v))
		case string:
			if len(strings.TrimPrefix(v, "0x")) == 40 {
				word, err = wordAddress(v)
			} else {
				word, err = wordBytes32(v)
			}
		default:
			err = fmt.Errorf("unsupported abi argument %T", arg)
		}
		if err != nil {
			return nil, fmt.Errorf("abi arg %d for %s: %w", i, signature, err)
		}
		data = append(data, word...)
	}
	return data, nil
}

// DecodeWords splits static return data into 32-byte words.
func DecodeWords(data []byte, expect int) ([][]byte, error) {
	if len(data) < expect*32 {
		return nil, fmt.Errorf("abi return too short: have %d bytes, want %d words", len(data), expect)
	}
	words := make([][]byte, expect)
	for i := 0; i < expect; i++ {
		words[i] = data[i*32 : (i+1)*32]
	}
	return words, nil
}

func WordToBig(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}

func WordToAddress(word []byte) string {
	return ChecksumAddress(hexEncode(word[12:]))
}

func WordToBytes32Hex(word []byte) string {
	return "0x" + hexEncode(word)
}

// WordUint, WordAddress and WordBytes32 expose word encoding for callers
// assembling static tuples.
func WordUint(i *big.Int) []byte { return wordUint(i) }

func WordAddress(addr string) ([]byte, error) { return wordAddress(addr) }

func WordBytes32(value string) ([]byte, error) { return wordBytes32(value) }

// HexToBytes decodes a 0x-prefixed hex payload.
func HexToBytes(s string) ([]byte, error) { return hexDecode(s) }

// BytesToHex encodes raw bytes as 0x-prefixed hex.
func BytesToHex(b []byte) string { return "0x" + hexEncode(b) }

// EncodeTuple packs static values as a dynamic tuple payload (offset-free,
// since every member is static). Used for the lending extraData blob.
func EncodeTuple(words ...[]byte) []byte {
	out := make([]byte, 0, 32*len(words))
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}
