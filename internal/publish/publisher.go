// Package publish builds, signs and submits metadata anchor transactions.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/internal/metadata"
	"github.com/gitgood-project/gitgood/pkg/errclass"
	"github.com/gitgood-project/gitgood/pkg/logging"
)

// Chain is what the publisher needs from the chain API.
type Chain interface {
	UTxOs(ctx context.Context, addr string) ([]ledger.UTxO, error)
	ProtocolParams(ctx context.Context) (ledger.ProtocolParams, error)
	TipSlot(ctx context.Context) (uint64, error)
	Submit(ctx context.Context, tx []byte) (string, error)
}

// Publisher submits metadata documents from one signing key.
type Publisher struct {
	chain    Chain
	key      *ledger.SigningKey
	address  ledger.Address
	amount   uint64
	ttlSlots uint64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAmount sets the lovelace amount paid back to the sender.
func WithAmount(lovelace uint64) Option {
	return func(p *Publisher) {
		if lovelace > 0 {
			p.amount = lovelace
		}
	}
}

// WithTTLSlots sets how many slots past the tip the transaction stays valid.
func WithTTLSlots(slots uint64) Option {
	return func(p *Publisher) {
		if slots > 0 {
			p.ttlSlots = slots
		}
	}
}

// New creates a publisher paying from and to the enterprise address of key on network.
func New(chain Chain, key *ledger.SigningKey, network ledger.Network, opts ...Option) *Publisher {
	p := &Publisher{
		chain:    chain,
		key:      key,
		address:  ledger.EnterpriseAddress(network, key.KeyHash()),
		amount:   ledger.DefaultAmount,
		ttlSlots: ledger.DefaultTTLSlots,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Address returns the sender address.
func (p *Publisher) Address() ledger.Address {
	return p.address
}

// Publish submits doc and returns the transaction hash. Every failure is
// reported as ErrSubmissionFailed, except a lack of spendable funds which
// keeps its own class.
func (p *Publisher) Publish(ctx context.Context, doc *metadata.Document) (string, error) {
	addr := p.address.String()

	utxos, err := p.chain.UTxOs(ctx, addr)
	if err != nil {
		return "", submissionErr(err)
	}
	params, err := p.chain.ProtocolParams(ctx)
	if err != nil {
		return "", submissionErr(err)
	}
	tip, err := p.chain.TipSlot(ctx)
	if err != nil {
		return "", submissionErr(err)
	}

	tx, err := ledger.BuildTx(ledger.TxParams{
		Key:      p.key,
		Address:  p.address,
		UTxOs:    utxos,
		Amount:   p.amount,
		Metadata: doc.Metadata(),
		Params:   params,
		TTL:      tip + p.ttlSlots,
	})
	if err != nil {
		if errors.Is(err, errclass.ErrInsufficientFunds) {
			return "", err
		}
		return "", submissionErr(fmt.Errorf("build transaction: %w", err))
	}
	logging.Debug("transaction built", map[string]any{
		"tx_id": tx.ID,
		"fee":   tx.Fee,
		"size":  len(tx.CBOR),
		"input": fmt.Sprintf("%s#%d", tx.Input.TxHash, tx.Input.Index),
	})

	hash, err := p.chain.Submit(ctx, tx.CBOR)
	if err != nil {
		return "", submissionErr(err)
	}
	if hash == "" {
		hash = tx.ID
	}
	return hash, nil
}

func submissionErr(err error) error {
	return errclass.ErrSubmissionFailed.WithMessage("chain API").WithCause(err)
}
