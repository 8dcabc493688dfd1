package codec

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Auction program account kinds.
type AuctionState uint8

const (
	AuctionCreated AuctionState = 0
	AuctionStarted AuctionState = 1
	AuctionEnded   AuctionState = 2
)

type PriceFloorType uint8

const (
	PriceFloorNone    PriceFloorType = 0
	PriceFloorMinimum PriceFloorType = 1
	PriceFloorBlinded PriceFloorType = 2
)

// PriceFloor is a tagged 33-byte union. Every variant carries a 32-byte
// payload; for the Minimum variant the first 8 payload bytes hold the
// little-endian minimum price and the rest are zero.
type PriceFloor struct {
	Type PriceFloorType
	Hash [32]byte
}

// MinimumPrice returns the enforced floor, or 0 when no minimum is set.
func (p PriceFloor) MinimumPrice() uint64 {
	if p.Type != PriceFloorMinimum {
		return 0
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(p.Hash[i]) << (8 * i)
	}
	return v
}

func (p *PriceFloor) UnmarshalWithDecoder(dec *bin.Decoder) error {
	t, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	if t > uint8(PriceFloorBlinded) {
		return fmt.Errorf("price floor type %d out of range", t)
	}
	p.Type = PriceFloorType(t)
	body, err := dec.ReadNBytes(32)
	if err != nil {
		return err
	}
	copy(p.Hash[:], body)
	return nil
}

func (p PriceFloor) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(p.Type)); err != nil {
		return err
	}
	return enc.WriteBytes(p.Hash[:], false)
}

type BidStateType uint8

const (
	BidStateEnglish     BidStateType = 0
	BidStateOpenEdition BidStateType = 1
)

// Bid is one entry in an auction's ordered bid list. Key is the bidder
// pot account holding the escrowed funds, not the bidder wallet.
type Bid struct {
	Key    solana.PublicKey
	Amount uint64
}

// BidState carries the ordered bid list. Bids are kept ascending by
// amount, so for an English auction the winners are the trailing Max
// entries.
type BidState struct {
	Type BidStateType
	Bids []Bid
	Max  uint64
}

func (b *BidState) UnmarshalWithDecoder(dec *bin.Decoder) error {
	t, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	if t > uint8(BidStateOpenEdition) {
		return fmt.Errorf("bid state type %d out of range", t)
	}
	b.Type = BidStateType(t)
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if int(n) > dec.Remaining()/40 {
		return fmt.Errorf("bid list length %d exceeds payload", n)
	}
	b.Bids = make([]Bid, 0, n)
	for i := uint32(0); i < n; i++ {
		raw, err := dec.ReadNBytes(32)
		if err != nil {
			return err
		}
		amount, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		b.Bids = append(b.Bids, Bid{Key: solana.PublicKeyFromBytes(raw), Amount: amount})
	}
	b.Max, err = dec.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	// The program never stores more bids than the winner cap.
	if uint64(len(b.Bids)) > b.Max {
		return fmt.Errorf("bid list length %d exceeds cap %d", len(b.Bids), b.Max)
	}
	return nil
}

func (b BidState) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(b.Type)); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(b.Bids)), bin.LE); err != nil {
		return err
	}
	for _, bid := range b.Bids {
		if err := enc.WriteBytes(bid.Key[:], false); err != nil {
			return err
		}
		if err := enc.WriteUint64(bid.Amount, bin.LE); err != nil {
			return err
		}
	}
	return enc.WriteUint64(b.Max, bin.LE)
}

// WinnerIndex returns the position of the given bidder pot key in the
// winning bid list, or -1 when the key holds no winning bid. Only
// English auctions have winners; a bid at or below the price floor
// minimum does not count.
func (b BidState) WinnerIndex(bidderPot solana.PublicKey, floorMinimum uint64) int {
	if b.Type != BidStateEnglish {
		return -1
	}
	for i, bid := range b.Bids {
		if bid.Key.Equals(bidderPot) && bid.Amount > floorMinimum {
			return i
		}
	}
	return -1
}

// AuctionData is the auction program's primary account record.
type AuctionData struct {
	Authority    solana.PublicKey
	Resource     solana.PublicKey
	TokenMint    solana.PublicKey
	LastBid      *int64 `bin:"optional"`
	EndedAt      *int64 `bin:"optional"`
	EndAuctionAt *int64 `bin:"optional"`
	AuctionGap   *int64 `bin:"optional"`
	PriceFloor   PriceFloor
	State        AuctionState
	BidState     BidState
}

// gapExtension is the on-chain grace period granted past the last bid
// when an auction carries a gap setting. The program hardcodes it
// rather than reading the stored gap value.
const gapExtension int64 = 600

// Ended reports whether the auction has passed its end condition at the
// given unix time, mirroring the on-chain check.
func (a *AuctionData) Ended(now int64) bool {
	if a.EndedAt == nil {
		return false
	}
	end := *a.EndedAt
	if a.AuctionGap != nil && a.LastBid != nil {
		return now > end && now > *a.LastBid+gapExtension
	}
	return now > end
}

// IsWinner reports the winner position of the given bidder pot key,
// applying this auction's price floor.
func (a *AuctionData) IsWinner(bidderPot solana.PublicKey) int {
	return a.BidState.WinnerIndex(bidderPot, a.PriceFloor.MinimumPrice())
}

func DecodeAuction(data []byte) (*AuctionData, error) {
	var a AuctionData
	if err := decodeBorsh("auction", data, &a); err != nil {
		return nil, err
	}
	if a.State > AuctionEnded {
		return nil, mismatch("auction", fmt.Errorf("state %d out of range", a.State))
	}
	return &a, nil
}

const (
	// BidderMetadataLen is the exact serialized size of BidderMetadata.
	BidderMetadataLen = 32 + 32 + 8 + 8 + 1
	// BidderPotLen is the exact serialized size of BidderPot.
	BidderPotLen = 32 + 32 + 32 + 1
)

// BidderMetadata tracks one wallet's bidding history on one auction.
type BidderMetadata struct {
	BidderPubkey  solana.PublicKey
	AuctionPubkey solana.PublicKey
	LastBid       uint64
	LastBidTime   int64
	Cancelled     bool
}

func DecodeBidderMetadata(data []byte) (*BidderMetadata, error) {
	if len(data) != BidderMetadataLen {
		return nil, mismatch("bidder metadata", fmt.Errorf("size %d, want %d", len(data), BidderMetadataLen))
	}
	var m BidderMetadata
	if err := decodeBorsh("bidder metadata", data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// BidderPot links a bidder wallet to the token account escrowing its bid.
type BidderPot struct {
	BidderPot  solana.PublicKey
	BidderAct  solana.PublicKey
	AuctionAct solana.PublicKey
	Emptied    bool
}

func DecodeBidderPot(data []byte) (*BidderPot, error) {
	if len(data) != BidderPotLen {
		return nil, mismatch("bidder pot", fmt.Errorf("size %d, want %d", len(data), BidderPotLen))
	}
	var p BidderPot
	if err := decodeBorsh("bidder pot", data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Auction program instruction discriminants.
const (
	auctionIxCancelBid uint8 = 0
	auctionIxPlaceBid  uint8 = 6
)

// EncodePlaceBidArgs builds the payload for the auction program's
// PlaceBid instruction.
func EncodePlaceBidArgs(amount uint64, resource solana.PublicKey) ([]byte, error) {
	return encodeBorsh(struct {
		Instruction uint8
		Amount      uint64
		Resource    solana.PublicKey
	}{auctionIxPlaceBid, amount, resource})
}

// EncodeCancelBidArgs builds the payload for the auction program's
// CancelBid instruction, which refunds the caller's escrowed bid.
func EncodeCancelBidArgs(resource solana.PublicKey) ([]byte, error) {
	return encodeBorsh(struct {
		Instruction uint8
		Resource    solana.PublicKey
	}{auctionIxCancelBid, resource})
}
