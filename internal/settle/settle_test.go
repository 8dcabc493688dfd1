package settle

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/redeem"
	"github.com/artvault/marketplace/backend/internal/view"
)

var testIDs = redeem.Programs{
	Auction:     solana.MustPublicKeyFromBase58("auctxRXPeJoc4817jDhf4HbjnhEcr1cCXenosMhK5R8"),
	Vault:       solana.MustPublicKeyFromBase58("vau1zxA2LbssAUEF7Gpw91zMM1LvXrvpzJtmZ58rPsn"),
	Marketplace: solana.MustPublicKeyFromBase58("p1exdMJcjVao65QdewkaZRUnU6VPSXhus9n2GzWfh98"),
	Metadata:    solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"),
}

// settleFixture builds an ended auction with the given number of
// winning pots, plus extra losing and already-emptied pots that a
// settlement pass must skip.
type settleFixture struct {
	tables *ingest.Tables
	v      *view.AuctionView
}

func newSettleFixture(t *testing.T, winners int) *settleFixture {
	t.Helper()
	tables := ingest.NewTables()
	auctionKey := solana.NewWallet().PublicKey()
	vaultKey := solana.NewWallet().PublicKey()

	auction := &codec.AuctionData{
		Resource:  vaultKey,
		TokenMint: solana.WrappedSol,
		State:     codec.AuctionEnded,
		BidState:  codec.BidState{Type: codec.BidStateEnglish, Max: uint64(winners)},
	}

	for i := 0; i < winners; i++ {
		potKey := solana.NewWallet().PublicKey()
		auction.BidState.Bids = append(auction.BidState.Bids, codec.Bid{
			Key:    potKey,
			Amount: uint64(10 * (i + 1)),
		})
		pot := codec.BidderPot{
			BidderPot:  solana.NewWallet().PublicKey(),
			BidderAct:  solana.NewWallet().PublicKey(),
			AuctionAct: auctionKey,
		}
		tables.UpsertBidderPot(potKey, &pot)
	}

	// A losing pot: present in the tables but not in the bid list.
	loser := codec.BidderPot{
		BidderPot:  solana.NewWallet().PublicKey(),
		BidderAct:  solana.NewWallet().PublicKey(),
		AuctionAct: auctionKey,
	}
	tables.UpsertBidderPot(solana.NewWallet().PublicKey(), &loser)

	// A winning pot that was already emptied by an earlier pass.
	emptiedKey := solana.NewWallet().PublicKey()
	auction.BidState.Bids = append(auction.BidState.Bids, codec.Bid{Key: emptiedKey, Amount: 9999})
	emptied := codec.BidderPot{
		BidderPot:  solana.NewWallet().PublicKey(),
		BidderAct:  solana.NewWallet().PublicKey(),
		AuctionAct: auctionKey,
		Emptied:    true,
	}
	tables.UpsertBidderPot(emptiedKey, &emptied)

	v := &view.AuctionView{
		Auction: ingest.Keyed[codec.AuctionData]{Pubkey: auctionKey, Info: auction},
		Manager: ingest.Keyed[codec.AuctionManager]{
			Pubkey: solana.NewWallet().PublicKey(),
			Info: &codec.AuctionManager{
				Key:           codec.ManagerKeyAuctionManager,
				Auction:       auctionKey,
				Vault:         vaultKey,
				AcceptPayment: solana.NewWallet().PublicKey(),
				State:         codec.AuctionManagerState{Status: codec.ManagerDisbursing},
			},
		},
		Vault: view.Found(ingest.Keyed[codec.Vault]{
			Pubkey: vaultKey,
			Info:   &codec.Vault{Key: codec.VaultKeyVault, State: codec.VaultCombined},
		}),
		State:           view.StateEnded,
		TotallyComplete: true,
	}
	return &settleFixture{tables: tables, v: v}
}

func TestUnsettledPotsFiltersAndSorts(t *testing.T) {
	f := newSettleFixture(t, 5)
	pots := UnsettledPots(f.tables, f.v)

	// Losing and emptied pots are excluded.
	require.Len(t, pots, 5)
	for i := 1; i < len(pots); i++ {
		assert.Less(t, pots[i-1].Pubkey.String(), pots[i].Pubkey.String())
	}
	for _, pot := range pots {
		assert.False(t, pot.Info.Emptied)
		assert.GreaterOrEqual(t, f.v.Auction.Info.IsWinner(pot.Pubkey), 0)
	}
}

func TestBuildClaimBatchesPacking(t *testing.T) {
	tests := []struct {
		name       string
		pots       int
		batchSizes [][]int // instructions per plan, per batch
	}{
		{"empty", 0, nil},
		{"single partial transaction", 3, [][]int{{3}}},
		{"exact transaction", 7, [][]int{{7}}},
		{"transaction plus remainder", 10, [][]int{{7, 3}}},
		{"exact batch", 70, [][]int{{7, 7, 7, 7, 7, 7, 7, 7, 7, 7}}},
		{"batch plus remainder", 73, [][]int{{7, 7, 7, 7, 7, 7, 7, 7, 7, 7}, {3}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newSettleFixture(t, tc.pots)
			pots := UnsettledPots(f.tables, f.v)
			require.Len(t, pots, tc.pots)

			batches, err := BuildClaimBatches(testIDs, f.v, pots)
			require.NoError(t, err)
			require.Len(t, batches, len(tc.batchSizes))
			for i, wantPlans := range tc.batchSizes {
				require.Len(t, batches[i], len(wantPlans))
				for j, wantIxs := range wantPlans {
					assert.Equal(t, "claim-bids", batches[i][j].Label)
					assert.Len(t, batches[i][j].Instructions, wantIxs)
				}
			}
		})
	}
}

func TestBuildClaimBatchesCoverEveryPotOnce(t *testing.T) {
	f := newSettleFixture(t, 23)
	pots := UnsettledPots(f.tables, f.v)
	batches, err := BuildClaimBatches(testIDs, f.v, pots)
	require.NoError(t, err)

	seen := map[string]int{}
	total := 0
	for _, batch := range batches {
		for _, plan := range batch {
			for _, ix := range plan.Instructions {
				total++
				accounts := ix.Accounts()
				// The bidder pot record is the third account of a claim.
				seen[accounts[2].PublicKey.String()]++
			}
		}
	}
	assert.Equal(t, len(pots), total)
	for _, pot := range pots {
		assert.Equal(t, 1, seen[pot.Pubkey.String()])
	}
}

func TestBuildClaimBatchesRequiresVault(t *testing.T) {
	f := newSettleFixture(t, 1)
	f.v.Vault = view.Pending[ingest.Keyed[codec.Vault]]()

	_, err := BuildClaimBatches(testIDs, f.v, UnsettledPots(f.tables, f.v))
	assert.ErrorIs(t, err, redeem.ErrIncompleteView)
}

func TestDrainPlanWrapsNativeMint(t *testing.T) {
	f := newSettleFixture(t, 1)
	authority := solana.NewWallet().PublicKey()

	plan, err := DrainPlan(testIDs, f.v, authority, solana.PublicKey{}, redeem.Rent{TokenAccount: 2_039_280})
	require.NoError(t, err)
	assert.Equal(t, "empty-payment-account", plan.Label)
	// Create wrapped account, initialize it, empty the escrow into it,
	// close it back to the authority.
	assert.Len(t, plan.Instructions, 4)
	assert.Len(t, plan.Signers, 1)
}

func TestDrainPlanSPLMintNeedsDestination(t *testing.T) {
	f := newSettleFixture(t, 1)
	f.v.Auction.Info.TokenMint = solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	_, err := DrainPlan(testIDs, f.v, authority, solana.PublicKey{}, redeem.Rent{})
	assert.ErrorIs(t, err, redeem.ErrMissingTokenAccount)

	dest := solana.NewWallet().PublicKey()
	plan, err := DrainPlan(testIDs, f.v, authority, dest, redeem.Rent{})
	require.NoError(t, err)
	assert.Len(t, plan.Instructions, 1)
	assert.Empty(t, plan.Signers)
}
