// Package redeem plans the follow-up transactions a bidder or
// auctioneer owes after an auction: prize redemption, bid refunds,
// payment claims and escrow draining.
package redeem

import (
	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
)

// Programs pins the four on-chain programs one marketplace deployment
// talks to.
type Programs struct {
	Auction     solana.PublicKey
	Vault       solana.PublicKey
	Marketplace solana.PublicKey
	Metadata    solana.PublicKey
}

func meta(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, false)
}

func metaW(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, false)
}

func metaS(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, true)
}

func metaWS(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, true)
}

// redeemBidInstruction moves the deposited prize token from the box
// store to the destination and marks the bid redeemed.
func redeemBidInstruction(ids Programs, auctionManager, boxStore, destination, bidRedemption, box, vault, fractionMint, auction, bidderMetadata, bidder, payer, transferAuthority solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Marketplace, solana.AccountMetaSlice{
		metaW(auctionManager),
		metaW(boxStore),
		metaW(destination),
		metaW(bidRedemption),
		metaW(box),
		metaW(vault),
		metaW(fractionMint),
		meta(auction),
		meta(bidderMetadata),
		metaS(bidder),
		metaS(payer),
		meta(solana.TokenProgramID),
		meta(ids.Vault),
		meta(ids.Metadata),
		meta(solana.SystemProgramID),
		meta(solana.SysVarRentPubkey),
		meta(transferAuthority),
	}, codec.EncodeMarketplaceIx(codec.MarketIxRedeemBid))
}

// redeemMasterEditionBidInstruction additionally hands over the master
// metadata authority to the winner.
func redeemMasterEditionBidInstruction(ids Programs, auctionManager, boxStore, destination, bidRedemption, box, vault, fractionMint, auction, bidderMetadata, bidder, payer, masterMetadata, newMetadataAuthority, transferAuthority solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Marketplace, solana.AccountMetaSlice{
		metaW(auctionManager),
		metaW(boxStore),
		metaW(destination),
		metaW(bidRedemption),
		metaW(box),
		metaW(vault),
		metaW(fractionMint),
		meta(auction),
		meta(bidderMetadata),
		metaS(bidder),
		metaS(payer),
		meta(solana.TokenProgramID),
		meta(ids.Vault),
		meta(ids.Metadata),
		meta(solana.SystemProgramID),
		meta(solana.SysVarRentPubkey),
		metaW(masterMetadata),
		meta(newMetadataAuthority),
		meta(transferAuthority),
	}, codec.EncodeMarketplaceIx(codec.MarketIxRedeemMasterEditionBid))
}

// redeemOpenEditionBidInstruction pays the open edition price into the
// accept payment account and hands out one authorization token.
func redeemOpenEditionBidInstruction(ids Programs, auctionManager, boxStore, destination, bidRedemption, box, vault, fractionMint, auction, bidderMetadata, bidder, payer, masterMetadata, masterMint, masterEdition, transferAuthority, acceptPayment solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Marketplace, solana.AccountMetaSlice{
		metaW(auctionManager),
		metaW(boxStore),
		metaW(destination),
		metaW(bidRedemption),
		meta(box),
		meta(vault),
		meta(fractionMint),
		meta(auction),
		meta(bidderMetadata),
		metaS(bidder),
		metaWS(payer),
		meta(solana.TokenProgramID),
		meta(ids.Vault),
		meta(ids.Metadata),
		meta(solana.SystemProgramID),
		meta(solana.SysVarRentPubkey),
		meta(masterMetadata),
		metaW(masterMint),
		metaW(masterEdition),
		metaS(transferAuthority),
		metaW(acceptPayment),
	}, codec.EncodeMarketplaceIx(codec.MarketIxRedeemOpenEditionBid))
}

// ClaimBidInstruction drains one bidder pot into the accept payment
// account, proxying the auction manager's authority over the auction.
func ClaimBidInstruction(ids Programs, acceptPayment, bidderPotToken, bidderPot, auction, bidder, tokenMint, vault, auctionManager solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Marketplace, solana.AccountMetaSlice{
		metaW(acceptPayment),
		metaW(bidderPotToken),
		metaW(bidderPot),
		meta(auction),
		meta(bidder),
		meta(tokenMint),
		meta(vault),
		meta(auctionManager),
		meta(ids.Auction),
		meta(solana.SysVarClockPubkey),
		meta(solana.TokenProgramID),
	}, codec.EncodeMarketplaceIx(codec.MarketIxClaimBid))
}

// EmptyPaymentAccountInstruction withdraws whatever accumulated in the
// accept payment account to the auctioneer's destination account.
func EmptyPaymentAccountInstruction(ids Programs, acceptPayment, destination, authority, auctionManager solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Marketplace, solana.AccountMetaSlice{
		metaW(acceptPayment),
		metaW(destination),
		metaS(authority),
		meta(auctionManager),
		meta(solana.TokenProgramID),
		meta(solana.SysVarRentPubkey),
	}, codec.EncodeMarketplaceIx(codec.MarketIxEmptyPaymentAccount))
}

// placeBidInstruction escrows a bid into the bidder pot.
func placeBidInstruction(ids Programs, bidder, bidderToken, bidderPot, bidderPotToken, bidderMetadata, auction, tokenMint, transferAuthority, payer solana.PublicKey, amount uint64, resource solana.PublicKey) (solana.Instruction, error) {
	data, err := codec.EncodePlaceBidArgs(amount, resource)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(ids.Auction, solana.AccountMetaSlice{
		metaS(bidder),
		metaW(bidderToken),
		metaW(bidderPot),
		metaW(bidderPotToken),
		metaW(bidderMetadata),
		metaW(auction),
		metaW(tokenMint),
		metaS(transferAuthority),
		metaS(payer),
		meta(solana.SysVarClockPubkey),
		meta(solana.SysVarRentPubkey),
		meta(solana.SystemProgramID),
		meta(solana.TokenProgramID),
	}, data), nil
}

// cancelBidInstruction refunds the bidder pot back to the bidder's
// token account.
func cancelBidInstruction(ids Programs, bidder, bidderToken, bidderPot, bidderPotToken, bidderMetadata, auction, tokenMint solana.PublicKey, resource solana.PublicKey) (solana.Instruction, error) {
	data, err := codec.EncodeCancelBidArgs(resource)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(ids.Auction, solana.AccountMetaSlice{
		metaS(bidder),
		metaW(bidderToken),
		metaW(bidderPot),
		metaW(bidderPotToken),
		metaW(bidderMetadata),
		metaW(auction),
		metaW(tokenMint),
		meta(solana.SysVarClockPubkey),
		meta(solana.SysVarRentPubkey),
		meta(solana.SystemProgramID),
		meta(solana.TokenProgramID),
	}, data), nil
}

// printEditionInstruction mints one new edition from a master edition,
// burning one authorization token in the process.
func printEditionInstruction(ids Programs, newMetadata, newEdition, masterEdition, newMint, newMintAuthority, masterMint, authTokenAccount, burnAuthority, payer, masterUpdateAuthority, masterMetadata solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ids.Metadata, solana.AccountMetaSlice{
		metaW(newMetadata),
		metaW(newEdition),
		metaW(masterEdition),
		metaW(newMint),
		metaS(newMintAuthority),
		metaW(masterMint),
		metaW(authTokenAccount),
		metaS(burnAuthority),
		metaS(payer),
		meta(masterUpdateAuthority),
		meta(masterMetadata),
		meta(solana.TokenProgramID),
		meta(solana.SystemProgramID),
		meta(solana.SysVarRentPubkey),
	}, codec.EncodeMintNewEditionViaTokenArgs())
}
