package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	auctionProgram     = solana.MustPublicKeyFromBase58("auctxRXPeJoc4817jDhf4HbjnhEcr1cCXenosMhK5R8")
	marketplaceProgram = solana.MustPublicKeyFromBase58("p1exdMJcjVao65QdewkaZRUnU6VPSXhus9n2GzWfh98")
	metadataProgram    = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

func TestDerivationsAreDeterministic(t *testing.T) {
	resource := solana.NewWallet().PublicKey()
	bidder := solana.NewWallet().PublicKey()

	auction, bump, err := DeriveAuctionPDA(auctionProgram, resource)
	require.NoError(t, err)
	again, bump2, err := DeriveAuctionPDA(auctionProgram, resource)
	require.NoError(t, err)
	assert.Equal(t, auction, again)
	assert.Equal(t, bump, bump2)

	pot, _, err := DeriveBidderPotPDA(auctionProgram, auction, bidder)
	require.NoError(t, err)
	meta, _, err := DeriveBidderMetadataPDA(auctionProgram, auction, bidder)
	require.NoError(t, err)
	assert.NotEqual(t, pot, meta)
}

func TestDerivationsDifferByInput(t *testing.T) {
	auction := solana.NewWallet().PublicKey()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	potA, _, err := DeriveBidderPotPDA(auctionProgram, auction, a)
	require.NoError(t, err)
	potB, _, err := DeriveBidderPotPDA(auctionProgram, auction, b)
	require.NoError(t, err)
	assert.NotEqual(t, potA, potB)
}

func TestMustDeriveBidderKeys(t *testing.T) {
	auction := solana.NewWallet().PublicKey()
	bidder := solana.NewWallet().PublicKey()

	gotMeta, gotRedemption := MustDeriveBidderKeys(auctionProgram, marketplaceProgram, auction, bidder)

	wantMeta, _, err := DeriveBidderMetadataPDA(auctionProgram, auction, bidder)
	require.NoError(t, err)
	assert.Equal(t, wantMeta, gotMeta)

	// The redemption ticket hangs off the bidder metadata address.
	wantRedemption, _, err := DeriveBidRedemptionPDA(marketplaceProgram, auction, wantMeta)
	require.NoError(t, err)
	assert.Equal(t, wantRedemption, gotRedemption)
}

func TestMetadataAndEditionPDAsDiffer(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	assert.NotEqual(t,
		MustDeriveMetadataPDA(metadataProgram, mint),
		MustDeriveEditionPDA(metadataProgram, mint),
	)
}
