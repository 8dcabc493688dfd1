package ingest

import (
	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/pda"
)

// Kind tags the classification outcome of one account payload.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindAuction
	KindBidderMetadata
	KindBidderPot
	KindVault
	KindSafetyDepositBox
	KindAuctionManager
	KindBidRedemption
	KindStore
	KindWhitelistedCreator
	KindMetadata
	KindEdition
	KindMasterEdition
)

func (k Kind) String() string {
	switch k {
	case KindAuction:
		return "auction"
	case KindBidderMetadata:
		return "bidder_metadata"
	case KindBidderPot:
		return "bidder_pot"
	case KindVault:
		return "vault"
	case KindSafetyDepositBox:
		return "safety_deposit_box"
	case KindAuctionManager:
		return "auction_manager"
	case KindBidRedemption:
		return "bid_redemption"
	case KindStore:
		return "store"
	case KindWhitelistedCreator:
		return "whitelisted_creator"
	case KindMetadata:
		return "metadata"
	case KindEdition:
		return "edition"
	case KindMasterEdition:
		return "master_edition"
	default:
		return "unrecognized"
	}
}

// Classifier decodes raw feed payloads into table upserts. Unrecognized
// payloads are dropped without error: program feeds carry account kinds
// this engine does not model.
type Classifier struct {
	StoreID           solana.PublicKey
	MetadataProgramID solana.PublicKey
}

// ApplyAuctionFeed classifies one auction-program account. The auction
// record is tried first; the two remaining kinds have fixed sizes and
// are told apart by exact length.
func (c *Classifier) ApplyAuctionFeed(t *Tables, pubkey solana.PublicKey, data []byte) Kind {
	if a, err := codec.DecodeAuction(data); err == nil {
		t.UpsertAuction(pubkey, a)
		return KindAuction
	}
	switch len(data) {
	case codec.BidderMetadataLen:
		m, err := codec.DecodeBidderMetadata(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertBidderMetadata(pubkey, m)
		return KindBidderMetadata
	case codec.BidderPotLen:
		p, err := codec.DecodeBidderPot(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertBidderPot(pubkey, p)
		return KindBidderPot
	}
	return KindUnrecognized
}

// ApplyVaultFeed classifies one vault-program account by its
// discriminant byte.
func (c *Classifier) ApplyVaultFeed(t *Tables, pubkey solana.PublicKey, data []byte) Kind {
	if len(data) == 0 {
		return KindUnrecognized
	}
	switch data[0] {
	case codec.VaultKeyVault:
		v, err := codec.DecodeVault(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertVault(pubkey, v)
		return KindVault
	case codec.VaultKeySafetyDepositBox:
		b, err := codec.DecodeSafetyDepositBox(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertSafetyDepositBox(pubkey, b)
		return KindSafetyDepositBox
	}
	return KindUnrecognized
}

// ApplyMarketplaceFeed classifies one marketplace-program account.
// Manager and store records from other deployments sharing the program
// are filtered out against the configured store id.
func (c *Classifier) ApplyMarketplaceFeed(t *Tables, pubkey solana.PublicKey, data []byte) Kind {
	if len(data) == 0 {
		return KindUnrecognized
	}
	switch data[0] {
	case codec.ManagerKeyAuctionManager:
		m, err := codec.DecodeAuctionManager(data)
		if err != nil {
			return KindUnrecognized
		}
		if !m.Store.Equals(c.StoreID) {
			return KindUnrecognized
		}
		t.UpsertAuctionManager(pubkey, m)
		return KindAuctionManager
	case codec.ManagerKeyBidRedemptionTicket:
		ticket, err := codec.DecodeBidRedemptionTicket(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertBidRedemption(pubkey, ticket)
		return KindBidRedemption
	case codec.ManagerKeyStore:
		s, err := codec.DecodeMarketplaceStore(data)
		if err != nil {
			return KindUnrecognized
		}
		if !pubkey.Equals(c.StoreID) {
			return KindUnrecognized
		}
		t.UpsertStore(pubkey, s)
		return KindStore
	case codec.ManagerKeyWhitelistedCreator:
		creator, err := codec.DecodeWhitelistedCreator(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertWhitelistedCreator(pubkey, creator)
		return KindWhitelistedCreator
	}
	return KindUnrecognized
}

// ApplyMetadataFeed classifies one token-metadata-program account.
// Items without a retrievable content URI are dropped rather than
// indexed by mint.
func (c *Classifier) ApplyMetadataFeed(t *Tables, pubkey solana.PublicKey, data []byte) Kind {
	if len(data) == 0 {
		return KindUnrecognized
	}
	switch data[0] {
	case codec.MetadataKeyMetadata:
		m, err := codec.DecodeMetadata(data)
		if err != nil || !m.HasContentURI() {
			return KindUnrecognized
		}
		rec := &MetadataRecord{
			Metadata:   *m,
			EditionKey: pda.MustDeriveEditionPDA(c.MetadataProgramID, m.Mint),
		}
		t.UpsertMetadata(pubkey, rec)
		return KindMetadata
	case codec.MetadataKeyEdition:
		e, err := codec.DecodeEdition(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertEdition(pubkey, e)
		return KindEdition
	case codec.MetadataKeyMasterEdition:
		e, err := codec.DecodeMasterEdition(data)
		if err != nil {
			return KindUnrecognized
		}
		t.UpsertMasterEdition(pubkey, e)
		return KindMasterEdition
	}
	return KindUnrecognized
}
