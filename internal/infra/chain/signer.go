package chain

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/craterface77/liquidity-guard-be/internal/domain"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Key wraps a secp256k1 private key used for quote signing, claim signing
// and anchor transaction submission.
type Key struct {
	priv *secp256k1.PrivateKey
}

func ParseKey(hexKey string) (*Key, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if raw == "" {
		return nil, errors.New("private key is empty")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.New("private key is not valid hex")
	}
	if len(b) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	return &Key{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Address derives the checksummed Ethereum address of the key.
func (k *Key) Address() string {
	pub := k.priv.PubKey().SerializeUncompressed()
	sum := Keccak256(pub[1:])
	return ChecksumAddress(hex.EncodeToString(sum[12:]))
}

// SignHash produces a 65-byte r||s||v signature with v in {27,28}.
func (k *Key) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, errors.New("signing input must be a 32-byte hash")
	}
	compact := secpecdsa.SignCompact(k.priv, hash, false)
	// SignCompact lays the signature out as v||r||s with v = 27 + recovery id.
	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0]
	return sig, nil
}

// SignHashEIP155 returns r, s and the EIP-155 recovery value for chainID.
func (k *Key) SignHashEIP155(hash []byte, chainID uint64) (r, s []byte, v uint64, err error) {
	sig, err := k.SignHash(hash)
	if err != nil {
		return nil, nil, 0, err
	}
	recID := uint64(sig[64]) - 27
	return sig[0:32], sig[32:64], recID + 35 + 2*chainID, nil
}

func SignatureHex(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

// TypedSigner binds a key to the EIP-712 signing path.
type TypedSigner struct {
	key *Key
}

func NewTypedSigner(key *Key) *TypedSigner {
	return &TypedSigner{key: key}
}

func (s *TypedSigner) SignTypedData(td domain.TypedData) (string, error) {
	return SignTypedData(s.key, td)
}

func (s *TypedSigner) Address() string {
	return s.key.Address()
}
