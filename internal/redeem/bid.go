package redeem

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/pda"
	"github.com/artvault/marketplace/backend/internal/view"
)

// PlanPlaceBid builds the single transaction that escrows amount into
// the bidder's pot. On the first bid the pot's token account does not
// exist yet and is created in the same transaction, owned by the
// auction so only the auction program can move the escrowed funds.
func (pl *Planner) PlanPlaceBid(v *view.AuctionView, bidder solana.PublicKey, amount uint64, tokenAccounts map[solana.PublicKey]solana.PublicKey) (*TxPlan, error) {
	auction := v.Auction.Pubkey
	mint := v.Auction.Info.TokenMint

	potKey, _, err := pda.DeriveBidderPotPDA(pl.ids.Auction, auction, bidder)
	if err != nil {
		return nil, fmt.Errorf("derive bidder pot: %w", err)
	}
	bidderMetaKey, _ := pda.MustDeriveBidderKeys(pl.ids.Auction, pl.ids.Marketplace, auction, bidder)

	p := &TxPlan{Label: "place-bid"}
	var potToken solana.PublicKey
	if pot, ok := v.MyBidderPot.Get(); ok {
		potToken = pot.Info.BidderPot
	} else {
		potToken = newTokenAccount(p, bidder, auction, mint, pl.rent)
	}

	paying, cleanup, ok := paymentAccount(p, bidder, mint, amount, tokenAccounts[mint], pl.rent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenAccount, mint)
	}
	transferAuthority := approveDelegate(p, paying, bidder, amount)

	ix, err := placeBidInstruction(pl.ids, bidder, paying, potKey, potToken, bidderMetaKey, auction, mint, transferAuthority, bidder, amount, v.Auction.Info.Resource)
	if err != nil {
		return nil, err
	}
	p.add(ix)
	p.add(cleanup...)
	return p, nil
}

// PlanCancelBid builds the refund transaction for the bidder's current
// bid, or returns nil when there is no live bid to cancel.
func (pl *Planner) PlanCancelBid(v *view.AuctionView, bidder solana.PublicKey, tokenAccounts map[solana.PublicKey]solana.PublicKey) (*TxPlan, error) {
	bidderMetaKey, _ := pda.MustDeriveBidderKeys(pl.ids.Auction, pl.ids.Marketplace, v.Auction.Pubkey, bidder)
	return pl.cancelPlan(v, bidder, bidderMetaKey, tokenAccounts)
}
