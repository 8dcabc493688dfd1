package codec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Marketplace program discriminants.
const (
	ManagerKeyAuctionManager          uint8 = 0
	ManagerKeyOriginalAuthorityLookup uint8 = 1
	ManagerKeyBidRedemptionTicket     uint8 = 2
	ManagerKeyStore                   uint8 = 3
	ManagerKeyWhitelistedCreator      uint8 = 4
)

type AuctionManagerStatus uint8

const (
	ManagerInitialized AuctionManagerStatus = 0
	ManagerValidated   AuctionManagerStatus = 1
	ManagerRunning     AuctionManagerStatus = 2
	ManagerDisbursing  AuctionManagerStatus = 3
	ManagerFinished    AuctionManagerStatus = 4
)

// WinningConstraint controls whether auction winners also receive a
// print of the open edition.
type WinningConstraint uint8

const (
	WinnerNoOpenEdition    WinningConstraint = 0
	WinnerOpenEditionGiven WinningConstraint = 1
)

// NonWinningConstraint controls open-edition access for losing bidders.
type NonWinningConstraint uint8

const (
	NonWinnerNoOpenEdition      NonWinningConstraint = 0
	NonWinnerGivenForFixedPrice NonWinningConstraint = 1
	NonWinnerGivenForBidPrice   NonWinningConstraint = 2
)

// EditionType says how the prize in a winning config is delivered.
type EditionType uint8

const (
	EditionNA             EditionType = 0
	EditionMasterEdition  EditionType = 1
	EditionLimitedEdition EditionType = 2
	EditionOpenEdition    EditionType = 3
)

// WinningConfig maps one winner slot to a safety deposit box and the
// delivery mode of its contents.
type WinningConfig struct {
	SafetyDepositBoxIndex uint8
	Amount                uint8
	EditionType           EditionType
}

// WinningConfigState tracks redemption progress for one winner slot.
type WinningConfigState struct {
	AmountMinted uint8
	Validated    bool
	Claimed      bool
}

type AuctionManagerSettings struct {
	OpenEditionWinnerConstraint     WinningConstraint
	OpenEditionNonWinningConstraint NonWinningConstraint
	WinningConfigs                  []WinningConfig
	OpenEditionConfig               *uint8  `bin:"optional"`
	OpenEditionFixedPrice           *uint64 `bin:"optional"`
}

type AuctionManagerState struct {
	Status                                         AuctionManagerStatus
	WinningConfigsValidated                        uint8
	MasterEditionsWithAuthoritiesRemainingToReturn uint8
	WinningConfigStates                            []WinningConfigState
}

// AuctionManager orchestrates one auction: it binds the auction record,
// the vault of prizes and the escrow account payments land in.
type AuctionManager struct {
	Key           uint8
	Store         solana.PublicKey
	Authority     solana.PublicKey
	Auction       solana.PublicKey
	Vault         solana.PublicKey
	AcceptPayment solana.PublicKey
	State         AuctionManagerState
	Settings      AuctionManagerSettings
}

// BidRedemptionTicket records which prize categories a bidder has
// already redeemed on an auction. Flags never reset.
type BidRedemptionTicket struct {
	Key                 uint8
	OpenEditionRedeemed bool
	BidRedeemed         bool
}

// MarketplaceStore scopes a marketplace deployment: it pins the program
// set and whether listing is open to any creator.
type MarketplaceStore struct {
	Key                  uint8
	Public               bool
	AuctionProgram       solana.PublicKey
	TokenVaultProgram    solana.PublicKey
	TokenMetadataProgram solana.PublicKey
	TokenProgram         solana.PublicKey
}

type WhitelistedCreator struct {
	Key       uint8
	Address   solana.PublicKey
	Activated bool
}

func DecodeAuctionManager(data []byte) (*AuctionManager, error) {
	if len(data) == 0 || data[0] != ManagerKeyAuctionManager {
		return nil, mismatch("auction manager", fmt.Errorf("bad discriminant"))
	}
	var m AuctionManager
	if err := decodeBorsh("auction manager", data, &m); err != nil {
		return nil, err
	}
	if m.State.Status > ManagerFinished {
		return nil, mismatch("auction manager", fmt.Errorf("status %d out of range", m.State.Status))
	}
	return &m, nil
}

func DecodeBidRedemptionTicket(data []byte) (*BidRedemptionTicket, error) {
	if len(data) == 0 || data[0] != ManagerKeyBidRedemptionTicket {
		return nil, mismatch("bid redemption ticket", fmt.Errorf("bad discriminant"))
	}
	var t BidRedemptionTicket
	if err := decodeBorsh("bid redemption ticket", data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func DecodeMarketplaceStore(data []byte) (*MarketplaceStore, error) {
	if len(data) == 0 || data[0] != ManagerKeyStore {
		return nil, mismatch("store", fmt.Errorf("bad discriminant"))
	}
	var s MarketplaceStore
	if err := decodeBorsh("store", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DecodeWhitelistedCreator(data []byte) (*WhitelistedCreator, error) {
	if len(data) == 0 || data[0] != ManagerKeyWhitelistedCreator {
		return nil, mismatch("whitelisted creator", fmt.Errorf("bad discriminant"))
	}
	var c WhitelistedCreator
	if err := decodeBorsh("whitelisted creator", data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marketplace program instruction discriminants.
const (
	MarketIxInitAuctionManager       uint8 = 0
	MarketIxValidateSafetyDepositBox uint8 = 1
	MarketIxRedeemBid                uint8 = 2
	MarketIxRedeemMasterEditionBid   uint8 = 3
	MarketIxRedeemOpenEditionBid     uint8 = 4
	MarketIxStartAuction             uint8 = 5
	MarketIxClaimBid                 uint8 = 6
	MarketIxEmptyPaymentAccount      uint8 = 7
	MarketIxSetStore                 uint8 = 8
	MarketIxSetWhitelistedCreator    uint8 = 9
	MarketIxValidateOpenEdition      uint8 = 10
)

// EncodeMarketplaceIx builds a bare one-byte instruction payload. Most
// marketplace instructions carry no arguments beyond the discriminant.
func EncodeMarketplaceIx(discriminant uint8) []byte {
	return []byte{discriminant}
}

// EncodeSetStoreArgs builds the SetStore payload.
func EncodeSetStoreArgs(public bool) ([]byte, error) {
	return encodeBorsh(struct {
		Instruction uint8
		Public      bool
	}{MarketIxSetStore, public})
}

// EncodeSetWhitelistedCreatorArgs builds the SetWhitelistedCreator
// payload.
func EncodeSetWhitelistedCreatorArgs(activated bool) ([]byte, error) {
	return encodeBorsh(struct {
		Instruction uint8
		Activated   bool
	}{MarketIxSetWhitelistedCreator, activated})
}
