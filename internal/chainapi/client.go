// Package chainapi adapts the Blockfrost API to the chain interfaces used by
// the publisher and the verifier.
package chainapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blockfrost/blockfrost-go"

	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/pkg/errclass"
)

// ErrNotFound is returned when the indexer has nothing under a label yet.
var ErrNotFound = errors.New("chainapi: not found")

const lovelaceUnit = "lovelace"

// api is the subset of the Blockfrost client gitgood talks to.
type api interface {
	AddressUTXOs(ctx context.Context, address string, query blockfrost.APIQueryParams) ([]blockfrost.AddressUTXO, error)
	LatestEpochParameters(ctx context.Context) (blockfrost.EpochParameters, error)
	BlockLatest(ctx context.Context) (blockfrost.Block, error)
	TransactionSubmit(ctx context.Context, cbor []byte) (string, error)
	MetadataTxContentInJSON(ctx context.Context, label string, query blockfrost.APIQueryParams) ([]blockfrost.MetadataTxContentInJSON, error)
}

// Client talks to one network through Blockfrost.
type Client struct {
	api     api
	network ledger.Network
}

// New creates a client for network authenticated with projectID.
func New(network ledger.Network, projectID string) (*Client, error) {
	if projectID == "" {
		return nil, errclass.ErrCredentialMissing.WithMessage("blockfrost project id is not set (PROJECT_ID)")
	}
	c := blockfrost.NewAPIClient(blockfrost.APIClientOptions{
		ProjectID: projectID,
		Server:    network.Params().Server,
	})
	return &Client{api: c, network: network}, nil
}

// Network reports the network the client talks to.
func (c *Client) Network() ledger.Network {
	return c.network
}

// UTxOs lists the unspent outputs at addr. An address that was never funded
// has no UTxOs rather than an error.
func (c *Client) UTxOs(ctx context.Context, addr string) ([]ledger.UTxO, error) {
	raw, err := c.api.AddressUTXOs(ctx, addr, blockfrost.APIQueryParams{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch utxos of %s: %w", addr, err)
	}
	out := make([]ledger.UTxO, 0, len(raw))
	for _, u := range raw {
		utxo := ledger.UTxO{TxHash: u.TxHash, Index: uint32(u.OutputIndex)}
		for _, a := range u.Amount {
			if a.Unit != lovelaceUnit {
				utxo.HasAssets = true
				continue
			}
			q, err := strconv.ParseUint(a.Quantity, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("utxo %s#%d: bad lovelace quantity %q", u.TxHash, u.OutputIndex, a.Quantity)
			}
			utxo.Lovelace = q
		}
		out = append(out, utxo)
	}
	return out, nil
}

// ProtocolParams returns the fee parameters of the current epoch.
func (c *Client) ProtocolParams(ctx context.Context) (ledger.ProtocolParams, error) {
	p, err := c.api.LatestEpochParameters(ctx)
	if err != nil {
		return ledger.ProtocolParams{}, fmt.Errorf("fetch protocol parameters: %w", err)
	}
	return ledger.ProtocolParams{MinFeeA: uint64(p.MinFeeA), MinFeeB: uint64(p.MinFeeB)}, nil
}

// TipSlot returns the slot of the latest block.
func (c *Client) TipSlot(ctx context.Context) (uint64, error) {
	b, err := c.api.BlockLatest(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch latest block: %w", err)
	}
	return uint64(b.Slot), nil
}

// Submit sends a signed transaction and returns its hash.
func (c *Client) Submit(ctx context.Context, tx []byte) (string, error) {
	hash, err := c.api.TransactionSubmit(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	return strings.Trim(hash, "\" \n"), nil
}

// Entry is one metadata document found under a label.
type Entry struct {
	TxHash string
	Msg    []string
}

// LatestMetadata returns the most recent metadata entry under label. It
// returns ErrNotFound when the label has no entries yet.
func (c *Client) LatestMetadata(ctx context.Context, label uint64) (*Entry, error) {
	raw, err := c.api.MetadataTxContentInJSON(ctx, strconv.FormatUint(label, 10), blockfrost.APIQueryParams{
		Count: 1,
		Order: "desc",
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query metadata label %d: %w", label, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	msg, err := decodeMsg(raw[0].JSONMetadata)
	if err != nil {
		return nil, fmt.Errorf("metadata of tx %s: %w", raw[0].TxHash, err)
	}
	return &Entry{TxHash: raw[0].TxHash, Msg: msg}, nil
}

// decodeMsg extracts the msg list from a label's JSON metadata value.
func decodeMsg(v any) ([]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Msg []string `json:"msg"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unexpected metadata shape: %w", err)
	}
	if doc.Msg == nil {
		return nil, errors.New("metadata has no msg list")
	}
	return doc.Msg, nil
}

func isNotFound(err error) bool {
	s := err.Error()
	return strings.Contains(s, "404") || strings.Contains(strings.ToLower(s), "not found")
}
