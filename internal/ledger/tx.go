package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

const (
	// DefaultAmount is the nominal lovelace amount paid back to the sender.
	DefaultAmount uint64 = 2_000_000
	// MinChange is the smallest change output worth creating; less is left to the fee.
	MinChange uint64 = 1_000_000
	// FeeHeadroom is reserved on top of amount and change when picking an input.
	FeeHeadroom uint64 = 500_000
	// DefaultTTLSlots is how far past the tip a transaction stays valid.
	DefaultTTLSlots uint64 = 7200

	maxFeeIterations = 8
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ledger: cbor encoding mode: %v", err))
	}
	return em
}

// UTxO is a spendable output of the sender.
type UTxO struct {
	TxHash    string
	Index     uint32
	Lovelace  uint64
	HasAssets bool
}

// ProtocolParams carries the fee parameters of the current epoch.
type ProtocolParams struct {
	MinFeeA uint64
	MinFeeB uint64
}

// TxParams describes a metadata anchor transaction.
type TxParams struct {
	Key      *SigningKey
	Address  Address
	UTxOs    []UTxO
	Amount   uint64
	Metadata any
	Params   ProtocolParams
	TTL      uint64
}

// SignedTx is a built and signed transaction ready for submission.
type SignedTx struct {
	ID    string
	CBOR  []byte
	Fee   uint64
	Input UTxO
}

type txIn struct {
	_     struct{} `cbor:",toarray"`
	TxID  []byte
	Index uint32
}

type txOut struct {
	_       struct{} `cbor:",toarray"`
	Address []byte
	Amount  uint64
}

type txBody struct {
	Inputs  []txIn  `cbor:"0,keyasint"`
	Outputs []txOut `cbor:"1,keyasint"`
	Fee     uint64  `cbor:"2,keyasint"`
	TTL     uint64  `cbor:"3,keyasint,omitempty"`
	AuxHash []byte  `cbor:"7,keyasint,omitempty"`
}

type vkeyWitness struct {
	_    struct{} `cbor:",toarray"`
	VKey []byte
	Sig  []byte
}

type witnessSet struct {
	VKeys []vkeyWitness `cbor:"0,keyasint"`
}

type transaction struct {
	_         struct{} `cbor:",toarray"`
	Body      cbor.RawMessage
	Witnesses witnessSet
	Valid     bool
	Aux       cbor.RawMessage
}

// SelectInput picks the first pure-ADA UTxO holding at least need lovelace.
func SelectInput(utxos []UTxO, need uint64) (UTxO, error) {
	for _, u := range utxos {
		if !u.HasAssets && u.Lovelace >= need {
			return u, nil
		}
	}
	return UTxO{}, errclass.ErrInsufficientFunds.WithMessagef("no ADA-only UTxO with at least %d lovelace among %d", need, len(utxos))
}

// BuildTx builds and signs a transaction spending one input, paying Amount
// back to the sender, returning change, and carrying Metadata as auxiliary data.
func BuildTx(p TxParams) (*SignedTx, error) {
	if p.Key == nil {
		return nil, errclass.ErrKeyInvalid.WithMessage("no signing key")
	}
	in, err := SelectInput(p.UTxOs, p.Amount+MinChange+FeeHeadroom)
	if err != nil {
		return nil, err
	}
	txID, err := hex.DecodeString(in.TxHash)
	if err != nil || len(txID) != 32 {
		return nil, fmt.Errorf("invalid input tx hash %q", in.TxHash)
	}

	aux, err := encMode.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	auxHash := blake2b.Sum256(aux)

	var fee uint64
	for i := 0; i < maxFeeIterations; i++ {
		body, err := p.body(txIn{TxID: txID, Index: in.Index}, in.Lovelace, fee, auxHash[:])
		if err != nil {
			return nil, err
		}

		bodyBytes, err := encMode.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		id := blake2b.Sum256(bodyBytes)

		txBytes, err := encMode.Marshal(transaction{
			Body: bodyBytes,
			Witnesses: witnessSet{VKeys: []vkeyWitness{{
				VKey: p.Key.VerificationKey(),
				Sig:  p.Key.Sign(id[:]),
			}}},
			Valid: true,
			Aux:   aux,
		})
		if err != nil {
			return nil, fmt.Errorf("encode tx: %w", err)
		}

		need := p.Params.MinFeeA*uint64(len(txBytes)) + p.Params.MinFeeB
		if need <= body.Fee {
			return &SignedTx{ID: hex.EncodeToString(id[:]), CBOR: txBytes, Fee: body.Fee, Input: in}, nil
		}
		fee = need
	}
	return nil, fmt.Errorf("fee did not converge after %d iterations", maxFeeIterations)
}

// body lays out the outputs for a given fee; change below MinChange is added to the fee.
func (p TxParams) body(in txIn, inputLovelace, fee uint64, auxHash []byte) (txBody, error) {
	if inputLovelace < p.Amount+fee {
		return txBody{}, errclass.ErrInsufficientFunds.WithMessagef("input holds %d lovelace, need %d plus fee %d", inputLovelace, p.Amount, fee)
	}
	outputs := []txOut{{Address: p.Address.Bytes, Amount: p.Amount}}
	change := inputLovelace - p.Amount - fee
	if change >= MinChange {
		outputs = append(outputs, txOut{Address: p.Address.Bytes, Amount: change})
	} else {
		fee += change
	}
	return txBody{
		Inputs:  []txIn{in},
		Outputs: outputs,
		Fee:     fee,
		TTL:     p.TTL,
		AuxHash: auxHash,
	}, nil
}
