// Package pda derives the program-derived addresses of the auction,
// marketplace and token-metadata programs.
package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	auctionPrefix     = "auction"
	marketplacePrefix = "metaplex"
	metadataPrefix    = "metadata"
	metadataSuffix    = "metadata"
	editionSuffix     = "edition"
)

func DeriveAuctionPDA(auctionProgramID, resource solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(auctionPrefix), auctionProgramID.Bytes(), resource.Bytes()}, auctionProgramID)
}

func DeriveBidderPotPDA(auctionProgramID, auction, bidder solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(auctionPrefix), auctionProgramID.Bytes(), auction.Bytes(), bidder.Bytes()}, auctionProgramID)
}

func DeriveBidderMetadataPDA(auctionProgramID, auction, bidder solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(auctionPrefix), auctionProgramID.Bytes(), auction.Bytes(), bidder.Bytes(), []byte(metadataSuffix)}, auctionProgramID)
}

func DeriveAuctionManagerPDA(marketplaceProgramID, auction solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(marketplacePrefix), auction.Bytes()}, marketplaceProgramID)
}

func DeriveBidRedemptionPDA(marketplaceProgramID, auction, bidderMetadata solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(marketplacePrefix), auction.Bytes(), bidderMetadata.Bytes()}, marketplaceProgramID)
}

func DeriveWhitelistedCreatorPDA(marketplaceProgramID, store, creator solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(marketplacePrefix), marketplaceProgramID.Bytes(), store.Bytes(), creator.Bytes()}, marketplaceProgramID)
}

func DeriveMetadataPDA(metadataProgramID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(metadataPrefix), metadataProgramID.Bytes(), mint.Bytes()}, metadataProgramID)
}

func DeriveEditionPDA(metadataProgramID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(metadataPrefix), metadataProgramID.Bytes(), mint.Bytes(), []byte(editionSuffix)}, metadataProgramID)
}

// DeriveVaultAuthorityPDA derives the transfer authority the vault
// program signs with when moving tokens out of a store.
func DeriveVaultAuthorityPDA(vaultProgramID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("vault"), vaultProgramID.Bytes()}, vaultProgramID)
}

func MustDeriveMetadataPDA(metadataProgramID, mint solana.PublicKey) solana.PublicKey {
	pk, _, err := DeriveMetadataPDA(metadataProgramID, mint)
	if err != nil {
		panic(fmt.Errorf("derive metadata PDA: %w", err))
	}
	return pk
}

func MustDeriveEditionPDA(metadataProgramID, mint solana.PublicKey) solana.PublicKey {
	pk, _, err := DeriveEditionPDA(metadataProgramID, mint)
	if err != nil {
		panic(fmt.Errorf("derive edition PDA: %w", err))
	}
	return pk
}

func MustDeriveBidderKeys(auctionProgramID, marketplaceProgramID, auction, bidder solana.PublicKey) (bidderMetadata, bidRedemption solana.PublicKey) {
	meta, _, err := DeriveBidderMetadataPDA(auctionProgramID, auction, bidder)
	if err != nil {
		panic(fmt.Errorf("derive bidder metadata PDA: %w", err))
	}
	redemption, _, err := DeriveBidRedemptionPDA(marketplaceProgramID, auction, meta)
	if err != nil {
		panic(fmt.Errorf("derive bid redemption PDA: %w", err))
	}
	return meta, redemption
}
