package ledger

import (
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// enterpriseKeyHeader is the header nibble of an enterprise address whose
// payment part is a key hash.
const enterpriseKeyHeader = 0x60

// Address is a Shelley enterprise address: header byte plus payment key hash.
type Address struct {
	Network Network
	Bytes   []byte
}

// EnterpriseAddress derives the address paying to keyHash on n.
func EnterpriseAddress(n Network, keyHash []byte) Address {
	b := make([]byte, 0, 1+len(keyHash))
	b = append(b, enterpriseKeyHeader|n.Params().NetworkID)
	b = append(b, keyHash...)
	return Address{Network: n, Bytes: b}
}

// Bech32 renders the address with the network's human-readable prefix.
func (a Address) Bech32() (string, error) {
	conv, err := bech32.ConvertBits(a.Bytes, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(a.Network.Params().AddressHRP, conv)
}

func (a Address) String() string {
	s, err := a.Bech32()
	if err != nil {
		return "invalid-address"
	}
	return s
}
