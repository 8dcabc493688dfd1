package ingest

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvault/marketplace/backend/internal/codec"
)

func TestUpsertAuctionIdempotent(t *testing.T) {
	tables := NewTables()
	key := solana.NewWallet().PublicKey()
	auction := testAuction(solana.NewWallet().PublicKey())

	var updates []Update
	tables.OnChange(func(u Update) { updates = append(updates, u) })

	assert.True(t, tables.UpsertAuction(key, &auction))
	same := auction
	assert.False(t, tables.UpsertAuction(key, &same))
	require.Len(t, updates, 1)
	assert.Equal(t, "auctions", updates[0].Table)
	assert.Equal(t, key, updates[0].Auction)

	changed := auction
	changed.State = codec.AuctionEnded
	assert.True(t, tables.UpsertAuction(key, &changed))
	assert.Len(t, updates, 2)
}

func TestUpsertBidderPotEmptiedNeverReverses(t *testing.T) {
	tables := NewTables()
	auction := solana.NewWallet().PublicKey()
	bidder := solana.NewWallet().PublicKey()
	potKey := solana.NewWallet().PublicKey()

	emptied := codec.BidderPot{
		BidderPot:  solana.NewWallet().PublicKey(),
		BidderAct:  bidder,
		AuctionAct: auction,
		Emptied:    true,
	}
	require.True(t, tables.UpsertBidderPot(potKey, &emptied))

	// A stale replay without the flag must not resurrect the pot.
	stale := emptied
	stale.Emptied = false
	tables.UpsertBidderPot(potKey, &stale)

	got, ok := tables.BidderPot(auction, bidder)
	require.True(t, ok)
	assert.True(t, got.Info.Emptied)
}

func TestUpsertAuctionManagerStatusOnlyAdvances(t *testing.T) {
	tables := NewTables()
	auction := solana.NewWallet().PublicKey()
	managerKey := solana.NewWallet().PublicKey()

	running := codec.AuctionManager{
		Key:     codec.ManagerKeyAuctionManager,
		Auction: auction,
		State:   codec.AuctionManagerState{Status: codec.ManagerRunning},
	}
	require.True(t, tables.UpsertAuctionManager(managerKey, &running))

	regressed := running
	regressed.State = codec.AuctionManagerState{Status: codec.ManagerValidated}
	tables.UpsertAuctionManager(managerKey, &regressed)

	got, ok := tables.ManagerByAuction(auction)
	require.True(t, ok)
	assert.Equal(t, codec.ManagerRunning, got.Info.State.Status)

	advanced := running
	advanced.State = codec.AuctionManagerState{Status: codec.ManagerDisbursing}
	require.True(t, tables.UpsertAuctionManager(managerKey, &advanced))
	got, _ = tables.ManagerByAuction(auction)
	assert.Equal(t, codec.ManagerDisbursing, got.Info.State.Status)
}

func TestUpsertBidRedemptionFlagsAreOneWay(t *testing.T) {
	tables := NewTables()
	key := solana.NewWallet().PublicKey()

	first := codec.BidRedemptionTicket{Key: codec.ManagerKeyBidRedemptionTicket, BidRedeemed: true}
	require.True(t, tables.UpsertBidRedemption(key, &first))

	second := codec.BidRedemptionTicket{Key: codec.ManagerKeyBidRedemptionTicket, OpenEditionRedeemed: true}
	tables.UpsertBidRedemption(key, &second)

	got, ok := tables.BidRedemption(key)
	require.True(t, ok)
	assert.True(t, got.Info.BidRedeemed)
	assert.True(t, got.Info.OpenEditionRedeemed)
}

func TestPotsForAuction(t *testing.T) {
	tables := NewTables()
	auction := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	for i := 0; i < 3; i++ {
		pot := codec.BidderPot{
			BidderPot:  solana.NewWallet().PublicKey(),
			BidderAct:  solana.NewWallet().PublicKey(),
			AuctionAct: auction,
		}
		tables.UpsertBidderPot(solana.NewWallet().PublicKey(), &pot)
	}
	foreign := codec.BidderPot{
		BidderPot:  solana.NewWallet().PublicKey(),
		BidderAct:  solana.NewWallet().PublicKey(),
		AuctionAct: other,
	}
	tables.UpsertBidderPot(solana.NewWallet().PublicKey(), &foreign)

	assert.Len(t, tables.PotsForAuction(auction), 3)
	assert.Len(t, tables.PotsForAuction(other), 1)
	assert.Empty(t, tables.PotsForAuction(solana.NewWallet().PublicKey()))
}
