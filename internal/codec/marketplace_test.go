package codec

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u8(v uint8) *uint8    { return &v }
func u64(v uint64) *uint64 { return &v }

func TestDecodeAuctionManagerRoundTrip(t *testing.T) {
	in := AuctionManager{
		Key:           ManagerKeyAuctionManager,
		Store:         solana.NewWallet().PublicKey(),
		Authority:     solana.NewWallet().PublicKey(),
		Auction:       solana.NewWallet().PublicKey(),
		Vault:         solana.NewWallet().PublicKey(),
		AcceptPayment: solana.NewWallet().PublicKey(),
		State: AuctionManagerState{
			Status:                  ManagerRunning,
			WinningConfigsValidated: 2,
			WinningConfigStates: []WinningConfigState{
				{Validated: true},
				{Validated: true, Claimed: true},
			},
		},
		Settings: AuctionManagerSettings{
			OpenEditionWinnerConstraint:     WinnerOpenEditionGiven,
			OpenEditionNonWinningConstraint: NonWinnerGivenForFixedPrice,
			WinningConfigs: []WinningConfig{
				{SafetyDepositBoxIndex: 0, Amount: 1, EditionType: EditionMasterEdition},
				{SafetyDepositBoxIndex: 1, Amount: 3, EditionType: EditionLimitedEdition},
			},
			OpenEditionConfig:     u8(2),
			OpenEditionFixedPrice: u64(50),
		},
	}

	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeAuctionManager(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}

func TestDecodeAuctionManagerRejectsWrongKind(t *testing.T) {
	in := BidRedemptionTicket{Key: ManagerKeyBidRedemptionTicket, BidRedeemed: true}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	_, err = DecodeAuctionManager(raw)
	assert.ErrorIs(t, err, ErrMismatch)

	out, err := DecodeBidRedemptionTicket(raw)
	require.NoError(t, err)
	assert.True(t, out.BidRedeemed)
	assert.False(t, out.OpenEditionRedeemed)
}

func TestDecodeMarketplaceStore(t *testing.T) {
	in := MarketplaceStore{
		Key:                  ManagerKeyStore,
		Public:               true,
		AuctionProgram:       solana.NewWallet().PublicKey(),
		TokenVaultProgram:    solana.NewWallet().PublicKey(),
		TokenMetadataProgram: solana.NewWallet().PublicKey(),
		TokenProgram:         solana.TokenProgramID,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeMarketplaceStore(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}

func TestDecodeWhitelistedCreator(t *testing.T) {
	in := WhitelistedCreator{
		Key:       ManagerKeyWhitelistedCreator,
		Address:   solana.NewWallet().PublicKey(),
		Activated: true,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeWhitelistedCreator(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	_, err = DecodeWhitelistedCreator([]byte{ManagerKeyStore})
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeVaultRequiresDiscriminant(t *testing.T) {
	in := Vault{
		Key:                  VaultKeyVault,
		TokenProgram:         solana.TokenProgramID,
		FractionMint:         solana.NewWallet().PublicKey(),
		Authority:            solana.NewWallet().PublicKey(),
		FractionTreasury:     solana.NewWallet().PublicKey(),
		RedeemTreasury:       solana.NewWallet().PublicKey(),
		PricingLookupAddress: solana.NewWallet().PublicKey(),
		TokenTypeCount:       2,
		State:                VaultCombined,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeVault(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	raw[0] = VaultKeySafetyDepositBox
	_, err = DecodeVault(raw)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeSafetyDepositBox(t *testing.T) {
	in := SafetyDepositBox{
		Key:       VaultKeySafetyDepositBox,
		Vault:     solana.NewWallet().PublicKey(),
		TokenMint: solana.NewWallet().PublicKey(),
		Store:     solana.NewWallet().PublicKey(),
		Order:     4,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeSafetyDepositBox(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}
