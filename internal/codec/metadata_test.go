package codec

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadataRoundTrip(t *testing.T) {
	creators := []Creator{
		{Address: solana.NewWallet().PublicKey(), Verified: true, Share: 60},
		{Address: solana.NewWallet().PublicKey(), Share: 40},
	}
	in := Metadata{
		Key:             MetadataKeyMetadata,
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            solana.NewWallet().PublicKey(),
		Data: MetadataData{
			Name:     "Solarium #1",
			Symbol:   "SOLR",
			URI:      "https://arweave.net/abc123",
			Creators: &creators,
		},
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}

func TestHasContentURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected bool
	}{
		{"https", "https://arweave.net/abc", true},
		{"http", "http://example.com/x", true},
		{"padded", "https://arweave.net/abc\x00\x00\x00\x00", true},
		{"empty", "", false},
		{"padding only", "\x00\x00\x00", false},
		{"relative path", "ipfs/Qm123", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := Metadata{Data: MetadataData{URI: tc.uri}}
			assert.Equal(t, tc.expected, m.HasContentURI())
		})
	}
}

func TestDecodeMasterEdition(t *testing.T) {
	in := MasterEdition{
		Key:        MetadataKeyMasterEdition,
		Supply:     12,
		MaxSupply:  u64(100),
		MasterMint: solana.NewWallet().PublicKey(),
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeMasterEdition(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	// Unlimited supply leaves the cap unset.
	in.MaxSupply = nil
	raw, err = encodeBorsh(in)
	require.NoError(t, err)
	out, err = DecodeMasterEdition(raw)
	require.NoError(t, err)
	assert.Nil(t, out.MaxSupply)
}

func TestDecodeEdition(t *testing.T) {
	in := Edition{
		Key:     MetadataKeyEdition,
		Parent:  solana.NewWallet().PublicKey(),
		Edition: 7,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeEdition(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	_, err = DecodeMasterEdition(raw)
	assert.ErrorIs(t, err, ErrMismatch)
}
