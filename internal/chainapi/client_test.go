package chainapi

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/blockfrost/blockfrost-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgood-project/gitgood/internal/ledger"
	"github.com/gitgood-project/gitgood/pkg/errclass"
)

type fakeAPI struct {
	utxos     []blockfrost.AddressUTXO
	utxoErr   error
	params    blockfrost.EpochParameters
	block     blockfrost.Block
	submitted []byte
	submitErr error
	meta      []blockfrost.MetadataTxContentInJSON
	metaErr   error
	metaLabel string
	metaQuery blockfrost.APIQueryParams
}

func (f *fakeAPI) AddressUTXOs(_ context.Context, _ string, _ blockfrost.APIQueryParams) ([]blockfrost.AddressUTXO, error) {
	return f.utxos, f.utxoErr
}

func (f *fakeAPI) LatestEpochParameters(context.Context) (blockfrost.EpochParameters, error) {
	return f.params, nil
}

func (f *fakeAPI) BlockLatest(context.Context) (blockfrost.Block, error) {
	return f.block, nil
}

func (f *fakeAPI) TransactionSubmit(_ context.Context, tx []byte) (string, error) {
	f.submitted = tx
	return "\"deadbeef\"", f.submitErr
}

func (f *fakeAPI) MetadataTxContentInJSON(_ context.Context, label string, q blockfrost.APIQueryParams) ([]blockfrost.MetadataTxContentInJSON, error) {
	f.metaLabel = label
	f.metaQuery = q
	return f.meta, f.metaErr
}

func newTestClient(f *fakeAPI) *Client {
	return &Client{api: f, network: ledger.Preprod}
}

func TestNew_RequiresProjectID(t *testing.T) {
	_, err := New(ledger.Preprod, "")
	assert.True(t, errors.Is(err, errclass.ErrCredentialMissing))

	c, err := New(ledger.Mainnet, "mainnetXYZ")
	require.NoError(t, err)
	assert.Equal(t, ledger.Mainnet, c.Network())
}

func TestUTxOs(t *testing.T) {
	f := &fakeAPI{utxos: []blockfrost.AddressUTXO{
		{TxHash: "aa", OutputIndex: 0, Amount: []blockfrost.AddressAmount{{Unit: "lovelace", Quantity: "5000000"}}},
		{TxHash: "bb", OutputIndex: 2, Amount: []blockfrost.AddressAmount{
			{Unit: "lovelace", Quantity: "1500000"},
			{Unit: "abcdef0123", Quantity: "1"},
		}},
	}}
	got, err := newTestClient(f).UTxOs(context.Background(), "addr_test1xyz")
	require.NoError(t, err)
	assert.Equal(t, []ledger.UTxO{
		{TxHash: "aa", Index: 0, Lovelace: 5_000_000},
		{TxHash: "bb", Index: 2, Lovelace: 1_500_000, HasAssets: true},
	}, got)
}

func TestUTxOs_UnfundedAddress(t *testing.T) {
	f := &fakeAPI{utxoErr: errors.New(`{"status_code":404,"error":"Not Found"}`)}
	got, err := newTestClient(f).UTxOs(context.Background(), "addr_test1xyz")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUTxOs_BadQuantity(t *testing.T) {
	f := &fakeAPI{utxos: []blockfrost.AddressUTXO{
		{TxHash: "aa", Amount: []blockfrost.AddressAmount{{Unit: "lovelace", Quantity: "lots"}}},
	}}
	_, err := newTestClient(f).UTxOs(context.Background(), "addr_test1xyz")
	assert.Error(t, err)
}

func TestParamsAndTip(t *testing.T) {
	f := &fakeAPI{}
	f.params.MinFeeA = 44
	f.params.MinFeeB = 155381
	f.block.Slot = 4242
	c := newTestClient(f)

	p, err := c.ProtocolParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.ProtocolParams{MinFeeA: 44, MinFeeB: 155381}, p)

	slot, err := c.TipSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), slot)
}

func TestSubmit(t *testing.T) {
	f := &fakeAPI{}
	hash, err := newTestClient(f).Submit(context.Background(), []byte{0x84})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", hash)
	assert.Equal(t, []byte{0x84}, f.submitted)

	f.submitErr = errors.New("bad request")
	_, err = newTestClient(f).Submit(context.Background(), []byte{0x84})
	assert.ErrorContains(t, err, "bad request")
}

func TestLatestMetadata(t *testing.T) {
	var meta any
	require.NoError(t, json.Unmarshal([]byte(`{"msg":["demo","abc123","fix bug","2024-01-01"]}`), &meta))
	f := &fakeAPI{meta: []blockfrost.MetadataTxContentInJSON{{TxHash: "cafe", JSONMetadata: &meta}}}

	e, err := newTestClient(f).LatestMetadata(context.Background(), 12345678)
	require.NoError(t, err)
	assert.Equal(t, "cafe", e.TxHash)
	assert.Equal(t, []string{"demo", "abc123", "fix bug", "2024-01-01"}, e.Msg)
	assert.Equal(t, "12345678", f.metaLabel)
	assert.Equal(t, 1, f.metaQuery.Count)
	assert.Equal(t, "desc", f.metaQuery.Order)
}

func TestLatestMetadata_NotFound(t *testing.T) {
	_, err := newTestClient(&fakeAPI{}).LatestMetadata(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = newTestClient(&fakeAPI{metaErr: errors.New("404 Not Found")}).LatestMetadata(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = newTestClient(&fakeAPI{metaErr: errors.New("500 internal")}).LatestMetadata(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLatestMetadata_Malformed(t *testing.T) {
	var other any = map[string]any{"other": 1}
	for name, entry := range map[string]blockfrost.MetadataTxContentInJSON{
		"no msg list": {TxHash: "cafe", JSONMetadata: &other},
		"null":        {TxHash: "cafe"},
	} {
		t.Run(name, func(t *testing.T) {
			f := &fakeAPI{meta: []blockfrost.MetadataTxContentInJSON{entry}}
			_, err := newTestClient(f).LatestMetadata(context.Background(), 1)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}
}
