package redeem

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/pda"
	"github.com/artvault/marketplace/backend/internal/view"
)

var (
	// ErrIncompleteView means the view lacks a record the plan cannot
	// be built without. Callers should wait for the aggregator to catch
	// up and plan again.
	ErrIncompleteView = errors.New("redeem: view is missing records required for planning")

	// ErrMissingTokenAccount means the bidder holds no token account
	// for a non-native payment mint and the planner cannot create one
	// on their behalf.
	ErrMissingTokenAccount = errors.New("redeem: bidder has no token account for mint")
)

// Planner turns a composed auction view into the transaction groups a
// bidder owes after the auction ends. Each group is independently
// submittable so partial failure only re-runs the remainder: the
// redemption ticket flags on chain record which groups already landed.
type Planner struct {
	ids  Programs
	rent Rent
}

func NewPlanner(ids Programs, rent Rent) *Planner {
	return &Planner{ids: ids, rent: rent}
}

// PlanRedemption decides, from the bidder's standing in the auction,
// which redemption actions apply and emits one TxPlan per action:
// prize redemption for winners (shaped by the winning slot's edition
// type), a refund for losing bids, and an open-edition participation
// claim when the manager's settings grant one. Winner prize groups are
// skipped once the redemption ticket marks the bid redeemed, and the
// open-edition groups once it marks the open edition redeemed.
//
// tokenAccounts maps mints to token accounts the bidder already holds;
// the planner creates ephemeral accounts for mints not listed, except
// for non-native payment mints, which must be present.
func (pl *Planner) PlanRedemption(v *view.AuctionView, bidder solana.PublicKey, tokenAccounts map[solana.PublicKey]solana.PublicKey) ([]TxPlan, error) {
	vault, ok := v.Vault.Get()
	if !ok {
		return nil, fmt.Errorf("%w: vault %s", ErrIncompleteView, v.Manager.Info.Vault)
	}
	auction := v.Auction.Pubkey
	bidderMetaKey, bidRedemptionKey := pda.MustDeriveBidderKeys(pl.ids.Auction, pl.ids.Marketplace, auction, bidder)
	vaultAuthority, _, err := pda.DeriveVaultAuthorityPDA(pl.ids.Vault)
	if err != nil {
		return nil, fmt.Errorf("derive vault authority: %w", err)
	}

	var plans []TxPlan

	winnerIndex := v.WinnerIndex()
	if winnerIndex >= 0 {
		if !bidRedeemed(v) {
			prize, err := pl.prizePlans(v, vault, winnerIndex, bidder, bidderMetaKey, bidRedemptionKey, vaultAuthority, tokenAccounts)
			if err != nil {
				return nil, err
			}
			plans = append(plans, prize...)
		}
	} else {
		// Losing bids are refunded before open-edition participation
		// is considered.
		cancel, err := pl.cancelPlan(v, bidder, bidderMetaKey, tokenAccounts)
		if err != nil {
			return nil, err
		}
		if cancel != nil {
			plans = append(plans, *cancel)
		}
	}

	if openEditionEligible(v, winnerIndex) {
		open, err := pl.openEditionPlans(v, vault, bidder, bidderMetaKey, bidRedemptionKey, tokenAccounts)
		if err != nil {
			return nil, err
		}
		plans = append(plans, open...)
	}

	return plans, nil
}

func (pl *Planner) prizePlans(v *view.AuctionView, vault ingest.Keyed[codec.Vault], winnerIndex int, bidder, bidderMetaKey, bidRedemptionKey, vaultAuthority solana.PublicKey, tokenAccounts map[solana.PublicKey]solana.PublicKey) ([]TxPlan, error) {
	settings := v.Manager.Info.Settings
	if winnerIndex >= len(settings.WinningConfigs) || winnerIndex >= len(v.Items) {
		return nil, fmt.Errorf("%w: no item for winning slot %d", ErrIncompleteView, winnerIndex)
	}
	wc := settings.WinningConfigs[winnerIndex]
	item := v.Items[winnerIndex]
	md, ok := item.Metadata.Get()
	if !ok {
		return nil, fmt.Errorf("%w: metadata for winning slot %d", ErrIncompleteView, winnerIndex)
	}
	box := item.SafetyDeposit
	auction := v.Auction.Pubkey
	manager := v.Manager

	switch wc.EditionType {
	case codec.EditionNA:
		p := TxPlan{Label: "redeem-bid"}
		dest := newTokenAccount(&p, bidder, bidder, box.Info.TokenMint, pl.rent)
		p.add(redeemBidInstruction(pl.ids, manager.Pubkey, box.Info.Store, dest, bidRedemptionKey, box.Pubkey, vault.Pubkey, vault.Info.FractionMint, auction, bidderMetaKey, bidder, bidder, vaultAuthority))
		return []TxPlan{p}, nil

	case codec.EditionMasterEdition:
		// The bidder becomes the metadata's new update authority.
		p := TxPlan{Label: "redeem-master-edition"}
		dest := newTokenAccount(&p, bidder, bidder, box.Info.TokenMint, pl.rent)
		p.add(redeemMasterEditionBidInstruction(pl.ids, manager.Pubkey, box.Info.Store, dest, bidRedemptionKey, box.Pubkey, vault.Pubkey, vault.Info.FractionMint, auction, bidderMetaKey, bidder, bidder, md.Pubkey, bidder, vaultAuthority))
		return []TxPlan{p}, nil

	case codec.EditionLimitedEdition:
		// The deposited tokens are printing authorizations: redeem
		// them once, then burn one per new edition printed. Each print
		// is its own transaction so a mid-sequence failure only
		// re-runs the prints that never landed.
		me, ok := item.MasterEdition.Get()
		if !ok {
			return nil, fmt.Errorf("%w: master edition for winning slot %d", ErrIncompleteView, winnerIndex)
		}
		p := TxPlan{Label: "redeem-limited-authorization"}
		authToken := tokenAccounts[me.Info.MasterMint]
		if authToken.IsZero() {
			authToken = newTokenAccount(&p, bidder, bidder, me.Info.MasterMint, pl.rent)
		}
		p.add(redeemBidInstruction(pl.ids, manager.Pubkey, box.Info.Store, authToken, bidRedemptionKey, box.Pubkey, vault.Pubkey, vault.Info.FractionMint, auction, bidderMetaKey, bidder, bidder, vaultAuthority))
		plans := []TxPlan{p}
		for i := uint8(0); i < wc.Amount; i++ {
			plans = append(plans, pl.printPlan(md, me, authToken, bidder))
		}
		return plans, nil

	case codec.EditionOpenEdition:
		// An open-edition slot carries no per-winner prize; participation
		// is planned separately, eligibility permitting.
		return nil, nil

	default:
		return nil, fmt.Errorf("winning slot %d has unknown edition type %d", winnerIndex, wc.EditionType)
	}
}

// cancelPlan refunds the escrowed bid. Native-mint refunds land in a
// throwaway wrapped account that is closed in the same transaction,
// unwrapping the funds back to the wallet.
func (pl *Planner) cancelPlan(v *view.AuctionView, bidder, bidderMetaKey solana.PublicKey, tokenAccounts map[solana.PublicKey]solana.PublicKey) (*TxPlan, error) {
	bm, ok := v.MyBidderMetadata.Get()
	if !ok || bm.Info.Cancelled {
		return nil, nil
	}
	pot, ok := v.MyBidderPot.Get()
	if !ok {
		return nil, fmt.Errorf("%w: bidder pot for refund", ErrIncompleteView)
	}
	mint := v.Auction.Info.TokenMint
	p := &TxPlan{Label: "cancel-bid"}
	receiving, cleanup, ok := paymentAccount(p, bidder, mint, 0, tokenAccounts[mint], pl.rent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenAccount, mint)
	}
	ix, err := cancelBidInstruction(pl.ids, bidder, receiving, pot.Pubkey, pot.Info.BidderPot, bidderMetaKey, v.Auction.Pubkey, mint, v.Auction.Info.Resource)
	if err != nil {
		return nil, err
	}
	p.add(ix)
	p.add(cleanup...)
	return p, nil
}

// openEditionPlans pays the participation price out of an approved
// escrow account, redeems one printing authorization, and prints
// exactly one new edition from it.
func (pl *Planner) openEditionPlans(v *view.AuctionView, vault ingest.Keyed[codec.Vault], bidder, bidderMetaKey, bidRedemptionKey solana.PublicKey, tokenAccounts map[solana.PublicKey]solana.PublicKey) ([]TxPlan, error) {
	item := v.OpenEditionItem
	md, mdOK := item.Metadata.Get()
	me, meOK := item.MasterEdition.Get()
	if !mdOK || !meOK {
		return nil, fmt.Errorf("%w: open edition item", ErrIncompleteView)
	}

	var price uint64
	if fixed := v.Manager.Info.Settings.OpenEditionFixedPrice; fixed != nil {
		price = *fixed
	} else {
		bm, ok := v.MyBidderMetadata.Get()
		if !ok {
			return nil, fmt.Errorf("%w: bidder metadata for open edition price", ErrIncompleteView)
		}
		price = bm.Info.LastBid
	}

	mint := v.Auction.Info.TokenMint
	p := TxPlan{Label: "redeem-open-edition"}
	authToken := tokenAccounts[me.Info.MasterMint]
	if authToken.IsZero() {
		authToken = newTokenAccount(&p, bidder, bidder, me.Info.MasterMint, pl.rent)
	}
	paying, cleanup, ok := paymentAccount(&p, bidder, mint, price, tokenAccounts[mint], pl.rent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTokenAccount, mint)
	}
	transferAuthority := approveDelegate(&p, paying, bidder, price)
	p.add(redeemOpenEditionBidInstruction(pl.ids, v.Manager.Pubkey, item.SafetyDeposit.Info.Store, authToken, bidRedemptionKey, item.SafetyDeposit.Pubkey, vault.Pubkey, vault.Info.FractionMint, v.Auction.Pubkey, bidderMetaKey, bidder, bidder, md.Pubkey, me.Info.MasterMint, me.Pubkey, transferAuthority, v.Manager.Info.AcceptPayment))
	p.add(cleanup...)

	return []TxPlan{p, pl.printPlan(md, me, authToken, bidder)}, nil
}

// printPlan mints a fresh single-supply edition: new zero-decimal mint,
// token account holding the one unit, and a print instruction that
// burns one authorization token via an ephemeral delegate.
func (pl *Planner) printPlan(md ingest.Keyed[ingest.MetadataRecord], me ingest.Keyed[codec.MasterEdition], authToken, bidder solana.PublicKey) TxPlan {
	p := TxPlan{Label: "print-edition"}
	newMintKey := newMint(&p, bidder, bidder, pl.rent)
	dest := newTokenAccount(&p, bidder, bidder, newMintKey, pl.rent)
	p.add(token.NewMintToInstruction(1, newMintKey, dest, bidder, nil).Build())
	burnAuthority := approveDelegate(&p, authToken, bidder, 1)
	newMetadata := pda.MustDeriveMetadataPDA(pl.ids.Metadata, newMintKey)
	newEdition := pda.MustDeriveEditionPDA(pl.ids.Metadata, newMintKey)
	p.add(printEditionInstruction(pl.ids, newMetadata, newEdition, me.Pubkey, newMintKey, bidder, me.Info.MasterMint, authToken, burnAuthority, bidder, md.Info.UpdateAuthority, md.Pubkey))
	return p
}

func bidRedeemed(v *view.AuctionView) bool {
	t, ok := v.MyBidRedemption.Get()
	return ok && t.Info.BidRedeemed
}

// openEditionEligible applies the manager's participation constraints:
// winners qualify unless the winner constraint withholds the open
// edition, non-winners unless the non-winner constraint does. A ticket
// already marked redeemed disqualifies either way.
func openEditionEligible(v *view.AuctionView, winnerIndex int) bool {
	s := v.Manager.Info.Settings
	if s.OpenEditionConfig == nil || v.OpenEditionItem == nil {
		return false
	}
	if t, ok := v.MyBidRedemption.Get(); ok && t.Info.OpenEditionRedeemed {
		return false
	}
	if winnerIndex >= 0 {
		return s.OpenEditionWinnerConstraint != codec.WinnerNoOpenEdition
	}
	return s.OpenEditionNonWinningConstraint != codec.NonWinnerNoOpenEdition
}
