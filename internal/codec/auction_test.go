package codec

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestDecodeAuctionRoundTrip(t *testing.T) {
	potA := solana.NewWallet().PublicKey()
	potB := solana.NewWallet().PublicKey()

	in := AuctionData{
		Authority:    solana.NewWallet().PublicKey(),
		Resource:     solana.NewWallet().PublicKey(),
		TokenMint:    solana.NewWallet().PublicKey(),
		LastBid:      i64(1_700_000_500),
		EndedAt:      i64(1_700_001_000),
		EndAuctionAt: i64(3_600),
		AuctionGap:   i64(120),
		PriceFloor:   PriceFloor{Type: PriceFloorMinimum, Hash: [32]byte{10, 0, 0, 0, 0, 0, 0, 0}},
		State:        AuctionStarted,
		BidState: BidState{
			Type: BidStateEnglish,
			Bids: []Bid{{Key: potA, Amount: 40}, {Key: potB, Amount: 80}},
			Max:  2,
		},
	}

	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	out, err := DecodeAuction(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)
}

func TestDecodeAuctionRejectsBadState(t *testing.T) {
	in := AuctionData{State: AuctionState(7), BidState: BidState{Type: BidStateEnglish}}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	_, err = DecodeAuction(raw)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeBidderMetadata(t *testing.T) {
	in := BidderMetadata{
		BidderPubkey:  solana.NewWallet().PublicKey(),
		AuctionPubkey: solana.NewWallet().PublicKey(),
		LastBid:       125,
		LastBidTime:   1_700_000_123,
		Cancelled:     true,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)
	require.Len(t, raw, BidderMetadataLen)

	out, err := DecodeBidderMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	_, err = DecodeBidderMetadata(raw[:len(raw)-1])
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeBidderPot(t *testing.T) {
	in := BidderPot{
		BidderPot:  solana.NewWallet().PublicKey(),
		BidderAct:  solana.NewWallet().PublicKey(),
		AuctionAct: solana.NewWallet().PublicKey(),
		Emptied:    false,
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)
	require.Len(t, raw, BidderPotLen)

	out, err := DecodeBidderPot(raw)
	require.NoError(t, err)
	assert.Equal(t, &in, out)

	_, err = DecodeBidderPot(append(raw, 0))
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeBidStateRejectsOversizedList(t *testing.T) {
	// Length prefix claims more entries than the payload can hold.
	raw := []byte{0, 0xff, 0xff, 0xff, 0xff}
	var b BidState
	err := decodeBorsh("bid state", raw, &b)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestDecodeBidStateRejectsListOverCap(t *testing.T) {
	in := AuctionData{
		State: AuctionCreated,
		BidState: BidState{
			Type: BidStateEnglish,
			Bids: []Bid{
				{Key: solana.NewWallet().PublicKey(), Amount: 40},
				{Key: solana.NewWallet().PublicKey(), Amount: 80},
			},
			Max: 1,
		},
	}
	raw, err := encodeBorsh(in)
	require.NoError(t, err)

	_, err = DecodeAuction(raw)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestPriceFloorMinimumPrice(t *testing.T) {
	tests := []struct {
		name     string
		floor    PriceFloor
		expected uint64
	}{
		{
			name:     "None",
			floor:    PriceFloor{Type: PriceFloorNone},
			expected: 0,
		},
		{
			name:     "Minimum",
			floor:    PriceFloor{Type: PriceFloorMinimum, Hash: [32]byte{0x39, 0x30}},
			expected: 12345,
		},
		{
			name:     "Blinded ignores payload",
			floor:    PriceFloor{Type: PriceFloorBlinded, Hash: [32]byte{0x39, 0x30}},
			expected: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.floor.MinimumPrice())
		})
	}
}

func TestAuctionEnded(t *testing.T) {
	tests := []struct {
		name     string
		auction  AuctionData
		now      int64
		expected bool
	}{
		{
			name:     "no end time set",
			auction:  AuctionData{},
			now:      1_000_000,
			expected: false,
		},
		{
			name:     "past end without gap",
			auction:  AuctionData{EndedAt: i64(500)},
			now:      501,
			expected: true,
		},
		{
			name:     "before end",
			auction:  AuctionData{EndedAt: i64(500)},
			now:      500,
			expected: false,
		},
		{
			name:     "gap extends past late bid",
			auction:  AuctionData{EndedAt: i64(500), AuctionGap: i64(60), LastBid: i64(490)},
			now:      600,
			expected: false,
		},
		{
			name:     "gap exhausted",
			auction:  AuctionData{EndedAt: i64(500), AuctionGap: i64(60), LastBid: i64(490)},
			now:      1_091,
			expected: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.auction.Ended(tc.now))
		})
	}
}

func TestWinnerIndex(t *testing.T) {
	potLow := solana.NewWallet().PublicKey()
	potHigh := solana.NewWallet().PublicKey()
	stranger := solana.NewWallet().PublicKey()

	state := BidState{
		Type: BidStateEnglish,
		Bids: []Bid{{Key: potLow, Amount: 10}, {Key: potHigh, Amount: 90}},
		Max:  2,
	}

	assert.Equal(t, 0, state.WinnerIndex(potLow, 0))
	assert.Equal(t, 1, state.WinnerIndex(potHigh, 0))
	assert.Equal(t, -1, state.WinnerIndex(stranger, 0))

	// A bid at or below the floor minimum does not win.
	assert.Equal(t, -1, state.WinnerIndex(potLow, 10))
	assert.Equal(t, 1, state.WinnerIndex(potHigh, 10))

	openEdition := BidState{Type: BidStateOpenEdition, Bids: state.Bids, Max: 2}
	assert.Equal(t, -1, openEdition.WinnerIndex(potHigh, 0))
}

func TestEncodePlaceBidArgs(t *testing.T) {
	resource := solana.NewWallet().PublicKey()
	raw, err := EncodePlaceBidArgs(500, resource)
	require.NoError(t, err)
	require.Len(t, raw, 1+8+32)
	assert.Equal(t, uint8(6), raw[0])
	assert.Equal(t, []byte{0xf4, 0x01, 0, 0, 0, 0, 0, 0}, raw[1:9])
	assert.Equal(t, resource[:], raw[9:])
}
