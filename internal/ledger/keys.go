package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// PaymentSigningKeyType is the text envelope type written by cardano-cli for
// normal payment signing keys.
const PaymentSigningKeyType = "PaymentSigningKeyShelley_ed25519"

// KeyHashSize is the size of a payment key hash.
const KeyHashSize = 28

type textEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// SigningKey is an ed25519 payment signing key.
type SigningKey struct {
	priv ed25519.PrivateKey
}

// NewSigningKey creates a key from a 32-byte seed.
func NewSigningKey(seed []byte) (*SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errclass.ErrKeyInvalid.WithMessagef("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &SigningKey{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// LoadSigningKey reads a cardano-cli text envelope from path.
func LoadSigningKey(path string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrKeyInvalid.WithMessagef("read %s", path).WithCause(err)
	}
	return ParseSigningKey(data)
}

// ParseSigningKey decodes a text envelope holding a CBOR-wrapped seed.
func ParseSigningKey(data []byte) (*SigningKey, error) {
	var env textEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errclass.ErrKeyInvalid.WithMessage("parse text envelope").WithCause(err)
	}
	if env.Type != PaymentSigningKeyType {
		return nil, errclass.ErrKeyInvalid.WithMessagef("unsupported key type %q", env.Type)
	}
	raw, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, errclass.ErrKeyInvalid.WithMessage("decode cborHex").WithCause(err)
	}
	var seed []byte
	if err := cbor.Unmarshal(raw, &seed); err != nil {
		return nil, errclass.ErrKeyInvalid.WithMessage("decode key cbor").WithCause(err)
	}
	return NewSigningKey(seed)
}

// MarshalTextEnvelope renders the key the way cardano-cli stores it.
func (k *SigningKey) MarshalTextEnvelope() ([]byte, error) {
	raw, err := encMode.Marshal(k.priv.Seed())
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(textEnvelope{
		Type:        PaymentSigningKeyType,
		Description: "Payment Signing Key",
		CborHex:     hex.EncodeToString(raw),
	}, "", "    ")
}

// VerificationKey returns the public half of the key.
func (k *SigningKey) VerificationKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// KeyHash returns the blake2b-224 hash of the verification key.
func (k *SigningKey) KeyHash() []byte {
	h, _ := blake2b.New(KeyHashSize, nil)
	h.Write(k.VerificationKey())
	return h.Sum(nil)
}

// Sign signs msg (a transaction body hash).
func (k *SigningKey) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}
