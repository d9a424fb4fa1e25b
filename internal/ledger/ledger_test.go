package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/gitgood-project/gitgood/pkg/errclass"
)

func testKey(t *testing.T) *SigningKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	k, err := NewSigningKey(seed)
	require.NoError(t, err)
	return k
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("mainnet")
	require.NoError(t, err)
	assert.Equal(t, Mainnet, n)

	n, err = ParseNetwork("PREPROD")
	require.NoError(t, err)
	assert.Equal(t, Preprod, n)
	assert.Equal(t, "preprod", n.String())
	assert.Equal(t, "https://preprod.cardanoscan.io/transaction/abc", n.TxURL("abc"))

	_, err = ParseNetwork("testnet")
	assert.True(t, errors.Is(err, errclass.ErrNetworkInvalid))
}

func TestSigningKey_TextEnvelopeRoundTrip(t *testing.T) {
	k := testKey(t)
	data, err := k.MarshalTextEnvelope()
	require.NoError(t, err)
	assert.Contains(t, string(data), PaymentSigningKeyType)
	// A 32-byte CBOR byte string is prefixed with 0x5820.
	assert.Contains(t, string(data), `"cborHex": "5820`)

	path := filepath.Join(t.TempDir(), "payment.skey")
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.Equal(t, k.VerificationKey(), loaded.VerificationKey())
	assert.Len(t, loaded.KeyHash(), KeyHashSize)
}

func TestParseSigningKey_Errors(t *testing.T) {
	tests := map[string]string{
		"not json":   `nope`,
		"wrong type": `{"type":"StakeSigningKeyShelley_ed25519","cborHex":"5820` + strings.Repeat("00", 32) + `"}`,
		"bad hex":    `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"zz"}`,
		"short seed": `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"4400010203"}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSigningKey([]byte(in))
			assert.True(t, errors.Is(err, errclass.ErrKeyInvalid), "got %v", err)
		})
	}
}

func TestLoadSigningKey_Missing(t *testing.T) {
	_, err := LoadSigningKey(filepath.Join(t.TempDir(), "missing.skey"))
	assert.True(t, errors.Is(err, errclass.ErrKeyInvalid))
}

func TestEnterpriseAddress(t *testing.T) {
	k := testKey(t)

	test := EnterpriseAddress(Preprod, k.KeyHash())
	require.Len(t, test.Bytes, 29)
	assert.Equal(t, byte(0x60), test.Bytes[0])
	assert.True(t, strings.HasPrefix(test.String(), "addr_test1"), test.String())

	main := EnterpriseAddress(Mainnet, k.KeyHash())
	assert.Equal(t, byte(0x61), main.Bytes[0])
	assert.True(t, strings.HasPrefix(main.String(), "addr1"), main.String())
}

func testParams(t *testing.T, utxos []UTxO) TxParams {
	k := testKey(t)
	return TxParams{
		Key:     k,
		Address: EnterpriseAddress(Preprod, k.KeyHash()),
		UTxOs:   utxos,
		Amount:  DefaultAmount,
		Metadata: map[uint64]map[string][]string{
			12345678: {"msg": {"demo", "abc123", "fix bug", "2024-01-01"}},
		},
		Params: ProtocolParams{MinFeeA: 44, MinFeeB: 155381},
		TTL:    1000,
	}
}

func TestBuildTx(t *testing.T) {
	utxo := UTxO{TxHash: strings.Repeat("ab", 32), Index: 1, Lovelace: 10_000_000}
	p := testParams(t, []UTxO{
		{TxHash: strings.Repeat("cd", 32), Lovelace: 50_000_000, HasAssets: true},
		utxo,
	})

	tx, err := BuildTx(p)
	require.NoError(t, err)
	assert.Equal(t, utxo, tx.Input)

	var parts []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(tx.CBOR, &parts))
	require.Len(t, parts, 4)

	var body txBody
	require.NoError(t, cbor.Unmarshal(parts[0], &body))
	require.Len(t, body.Inputs, 1)
	assert.Equal(t, uint32(1), body.Inputs[0].Index)
	require.Len(t, body.Outputs, 2)
	assert.Equal(t, DefaultAmount, body.Outputs[0].Amount)
	assert.Equal(t, utxo.Lovelace, body.Outputs[0].Amount+body.Outputs[1].Amount+body.Fee)
	assert.Equal(t, uint64(1000), body.TTL)
	assert.GreaterOrEqual(t, body.Fee, p.Params.MinFeeA*uint64(len(tx.CBOR))+p.Params.MinFeeB)

	id := blake2b.Sum256(parts[0])
	assert.Equal(t, hex.EncodeToString(id[:]), tx.ID)

	var ws witnessSet
	require.NoError(t, cbor.Unmarshal(parts[1], &ws))
	require.Len(t, ws.VKeys, 1)
	assert.True(t, ed25519.Verify(ws.VKeys[0].VKey, id[:], ws.VKeys[0].Sig))

	auxHash := blake2b.Sum256(parts[3])
	assert.Equal(t, auxHash[:], body.AuxHash)

	var md map[uint64]map[string][]string
	require.NoError(t, cbor.Unmarshal(parts[3], &md))
	assert.Equal(t, []string{"demo", "abc123", "fix bug", "2024-01-01"}, md[12345678]["msg"])
}

func TestBuildTx_SmallChangeGoesToFee(t *testing.T) {
	p := testParams(t, []UTxO{{TxHash: strings.Repeat("ab", 32), Lovelace: DefaultAmount + MinChange + FeeHeadroom}})
	p.Params.MinFeeB = 1_400_000

	tx, err := BuildTx(p)
	require.NoError(t, err)

	var parts []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(tx.CBOR, &parts))
	var body txBody
	require.NoError(t, cbor.Unmarshal(parts[0], &body))
	require.Len(t, body.Outputs, 1)
	assert.Equal(t, MinChange+FeeHeadroom, body.Fee)
}

func TestBuildTx_InsufficientFunds(t *testing.T) {
	p := testParams(t, []UTxO{{TxHash: strings.Repeat("ab", 32), Lovelace: DefaultAmount}})
	_, err := BuildTx(p)
	assert.True(t, errors.Is(err, errclass.ErrInsufficientFunds))

	_, err = BuildTx(testParams(t, nil))
	assert.True(t, errors.Is(err, errclass.ErrInsufficientFunds))
}
