package anchor

import (
	"crypto/rand"
	"io"
	"math/big"
)

// Onchain identifiers are 8-digit numbers.
const (
	MinOnchainID uint64 = 10_000_000
	MaxOnchainID uint64 = 99_999_999
)

// IDSource hands out onchain identifiers for projects seen for the first time.
type IDSource interface {
	NewID() (uint64, error)
}

// RandomIDs draws identifiers uniformly from [MinOnchainID, MaxOnchainID].
type RandomIDs struct {
	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
}

// NewID implements IDSource.
func (r RandomIDs) NewID() (uint64, error) {
	src := r.Rand
	if src == nil {
		src = rand.Reader
	}
	n, err := rand.Int(src, new(big.Int).SetUint64(MaxOnchainID-MinOnchainID+1))
	if err != nil {
		return 0, err
	}
	return MinOnchainID + n.Uint64(), nil
}

// FixedID always returns the same identifier.
type FixedID uint64

// NewID implements IDSource.
func (f FixedID) NewID() (uint64, error) {
	return uint64(f), nil
}
