// Package ledger holds the Cardano-specific pieces of anchoring: network
// selection, payment keys, enterprise addresses and metadata transactions.
package ledger

import (
	"fmt"
	"strings"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// Network is a supported Cardano network.
type Network int

const (
	Mainnet Network = iota + 1
	Preprod
)

// NetworkParams is what the rest of the tool needs to know about a network.
type NetworkParams struct {
	Name        string
	NetworkID   byte   // address header network tag
	Magic       uint32 // protocol magic
	Server      string // Blockfrost API base URL
	ExplorerURL string
	AddressHRP  string
}

var networks = map[Network]NetworkParams{
	Mainnet: {
		Name:        "mainnet",
		NetworkID:   1,
		Magic:       764824073,
		Server:      "https://cardano-mainnet.blockfrost.io/api/v0",
		ExplorerURL: "https://cardanoscan.io",
		AddressHRP:  "addr",
	},
	Preprod: {
		Name:        "preprod",
		NetworkID:   0,
		Magic:       1,
		Server:      "https://cardano-preprod.blockfrost.io/api/v0",
		ExplorerURL: "https://preprod.cardanoscan.io",
		AddressHRP:  "addr_test",
	},
}

// ParseNetwork converts a flag value into a Network.
func ParseNetwork(s string) (Network, error) {
	for n, p := range networks {
		if strings.EqualFold(s, p.Name) {
			return n, nil
		}
	}
	return 0, errclass.ErrNetworkInvalid.WithMessagef("unknown network %q (want mainnet or preprod)", s)
}

// Params returns the capability record of n.
func (n Network) Params() NetworkParams {
	return networks[n]
}

func (n Network) String() string {
	if p, ok := networks[n]; ok {
		return p.Name
	}
	return fmt.Sprintf("network(%d)", int(n))
}

// TxURL links a transaction on the network's explorer.
func (n Network) TxURL(txHash string) string {
	return n.Params().ExplorerURL + "/transaction/" + txHash
}
