// Package ingest turns the four program account feeds into normalized
// keyed tables of decoded records.
package ingest

import (
	"reflect"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
)

// Keyed pairs a decoded record with the account it was read from.
type Keyed[T any] struct {
	Pubkey solana.PublicKey
	Info   *T
}

// MetadataRecord carries an item metadata record together with the
// derived edition address of its mint, which is where a master edition
// for this item would live.
type MetadataRecord struct {
	codec.Metadata
	EditionKey solana.PublicKey
}

// AuctionBidder keys the per-bidder records of one auction.
type AuctionBidder struct {
	Auction solana.PublicKey
	Bidder  solana.PublicKey
}

// VaultOrder keys a safety deposit box by its vault and dense index.
type VaultOrder struct {
	Vault solana.PublicKey
	Order uint8
}

// Update describes one table change. Auction is the affected auction
// when the record implies one, zero otherwise; subscribers use it to
// scope recomputation.
type Update struct {
	Table   string
	Pubkey  solana.PublicKey
	Auction solana.PublicKey
}

// Tables is the single owner of all decoded record state. Each feed
// goroutine writes only its own tables; readers take the shared lock.
// Upserts never delete and never let monotonic flags regress.
type Tables struct {
	mu        sync.RWMutex
	callbacks []func(Update)

	auctions          map[solana.PublicKey]Keyed[codec.AuctionData]
	bidderMetadata    map[AuctionBidder]Keyed[codec.BidderMetadata]
	bidderPots        map[AuctionBidder]Keyed[codec.BidderPot]
	vaults            map[solana.PublicKey]Keyed[codec.Vault]
	boxes             map[VaultOrder]Keyed[codec.SafetyDepositBox]
	managersByAuction map[solana.PublicKey]Keyed[codec.AuctionManager]
	bidRedemptions    map[solana.PublicKey]Keyed[codec.BidRedemptionTicket]
	stores            map[solana.PublicKey]Keyed[codec.MarketplaceStore]
	creators          map[solana.PublicKey]Keyed[codec.WhitelistedCreator]

	metadataByMint          map[solana.PublicKey]Keyed[MetadataRecord]
	metadataByEditionKey    map[solana.PublicKey]Keyed[MetadataRecord]
	masterEditions          map[solana.PublicKey]Keyed[codec.MasterEdition]
	masterEditionsByMint    map[solana.PublicKey]Keyed[codec.MasterEdition]
	editions                map[solana.PublicKey]Keyed[codec.Edition]
}

func NewTables() *Tables {
	return &Tables{
		auctions:             map[solana.PublicKey]Keyed[codec.AuctionData]{},
		bidderMetadata:       map[AuctionBidder]Keyed[codec.BidderMetadata]{},
		bidderPots:           map[AuctionBidder]Keyed[codec.BidderPot]{},
		vaults:               map[solana.PublicKey]Keyed[codec.Vault]{},
		boxes:                map[VaultOrder]Keyed[codec.SafetyDepositBox]{},
		managersByAuction:    map[solana.PublicKey]Keyed[codec.AuctionManager]{},
		bidRedemptions:       map[solana.PublicKey]Keyed[codec.BidRedemptionTicket]{},
		stores:               map[solana.PublicKey]Keyed[codec.MarketplaceStore]{},
		creators:             map[solana.PublicKey]Keyed[codec.WhitelistedCreator]{},
		metadataByMint:       map[solana.PublicKey]Keyed[MetadataRecord]{},
		metadataByEditionKey: map[solana.PublicKey]Keyed[MetadataRecord]{},
		masterEditions:       map[solana.PublicKey]Keyed[codec.MasterEdition]{},
		masterEditionsByMint: map[solana.PublicKey]Keyed[codec.MasterEdition]{},
		editions:             map[solana.PublicKey]Keyed[codec.Edition]{},
	}
}

// OnChange registers a callback invoked after every table change.
// Callbacks run outside the table lock.
func (t *Tables) OnChange(fn func(Update)) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

func (t *Tables) notify(u Update) {
	t.mu.RLock()
	cbs := t.callbacks
	t.mu.RUnlock()
	for _, fn := range cbs {
		fn(u)
	}
}

func upsert[K comparable, T any](t *Tables, m map[K]Keyed[T], key K, rec Keyed[T]) bool {
	t.mu.Lock()
	prev, ok := m[key]
	if ok && reflect.DeepEqual(prev, rec) {
		t.mu.Unlock()
		return false
	}
	m[key] = rec
	t.mu.Unlock()
	return true
}

func (t *Tables) UpsertAuction(pubkey solana.PublicKey, a *codec.AuctionData) bool {
	changed := upsert(t, t.auctions, pubkey, Keyed[codec.AuctionData]{pubkey, a})
	if changed {
		t.notify(Update{Table: "auctions", Pubkey: pubkey, Auction: pubkey})
	}
	return changed
}

func (t *Tables) UpsertBidderMetadata(pubkey solana.PublicKey, m *codec.BidderMetadata) bool {
	key := AuctionBidder{m.AuctionPubkey, m.BidderPubkey}
	changed := upsert(t, t.bidderMetadata, key, Keyed[codec.BidderMetadata]{pubkey, m})
	if changed {
		t.notify(Update{Table: "bidder_metadata", Pubkey: pubkey, Auction: m.AuctionPubkey})
	}
	return changed
}

func (t *Tables) UpsertBidderPot(pubkey solana.PublicKey, p *codec.BidderPot) bool {
	key := AuctionBidder{p.AuctionAct, p.BidderAct}
	t.mu.Lock()
	if prev, ok := t.bidderPots[key]; ok {
		// Emptied never reverses; a stale feed replay must not resurrect
		// an already-settled pot.
		if prev.Info.Emptied && !p.Emptied {
			p.Emptied = true
		}
		if reflect.DeepEqual(prev, (Keyed[codec.BidderPot]{pubkey, p})) {
			t.mu.Unlock()
			return false
		}
	}
	t.bidderPots[key] = Keyed[codec.BidderPot]{pubkey, p}
	t.mu.Unlock()
	t.notify(Update{Table: "bidder_pots", Pubkey: pubkey, Auction: p.AuctionAct})
	return true
}

func (t *Tables) UpsertVault(pubkey solana.PublicKey, v *codec.Vault) bool {
	changed := upsert(t, t.vaults, pubkey, Keyed[codec.Vault]{pubkey, v})
	if changed {
		t.notify(Update{Table: "vaults", Pubkey: pubkey})
	}
	return changed
}

func (t *Tables) UpsertSafetyDepositBox(pubkey solana.PublicKey, b *codec.SafetyDepositBox) bool {
	key := VaultOrder{b.Vault, b.Order}
	changed := upsert(t, t.boxes, key, Keyed[codec.SafetyDepositBox]{pubkey, b})
	if changed {
		t.notify(Update{Table: "safety_deposit_boxes", Pubkey: pubkey})
	}
	return changed
}

func (t *Tables) UpsertAuctionManager(pubkey solana.PublicKey, m *codec.AuctionManager) bool {
	t.mu.Lock()
	if prev, ok := t.managersByAuction[m.Auction]; ok {
		// Status only advances; ignore regressions from delayed
		// notifications.
		if m.State.Status < prev.Info.State.Status {
			m.State.Status = prev.Info.State.Status
		}
		if reflect.DeepEqual(prev, (Keyed[codec.AuctionManager]{pubkey, m})) {
			t.mu.Unlock()
			return false
		}
	}
	t.managersByAuction[m.Auction] = Keyed[codec.AuctionManager]{pubkey, m}
	t.mu.Unlock()
	t.notify(Update{Table: "auction_managers", Pubkey: pubkey, Auction: m.Auction})
	return true
}

func (t *Tables) UpsertBidRedemption(pubkey solana.PublicKey, ticket *codec.BidRedemptionTicket) bool {
	t.mu.Lock()
	if prev, ok := t.bidRedemptions[pubkey]; ok {
		// Redemption flags are one-way.
		ticket.BidRedeemed = ticket.BidRedeemed || prev.Info.BidRedeemed
		ticket.OpenEditionRedeemed = ticket.OpenEditionRedeemed || prev.Info.OpenEditionRedeemed
		if reflect.DeepEqual(prev, (Keyed[codec.BidRedemptionTicket]{pubkey, ticket})) {
			t.mu.Unlock()
			return false
		}
	}
	t.bidRedemptions[pubkey] = Keyed[codec.BidRedemptionTicket]{pubkey, ticket}
	t.mu.Unlock()
	t.notify(Update{Table: "bid_redemptions", Pubkey: pubkey})
	return true
}

func (t *Tables) UpsertStore(pubkey solana.PublicKey, s *codec.MarketplaceStore) bool {
	changed := upsert(t, t.stores, pubkey, Keyed[codec.MarketplaceStore]{pubkey, s})
	if changed {
		t.notify(Update{Table: "stores", Pubkey: pubkey})
	}
	return changed
}

func (t *Tables) UpsertWhitelistedCreator(pubkey solana.PublicKey, c *codec.WhitelistedCreator) bool {
	changed := upsert(t, t.creators, c.Address, Keyed[codec.WhitelistedCreator]{pubkey, c})
	if changed {
		t.notify(Update{Table: "whitelisted_creators", Pubkey: pubkey})
	}
	return changed
}

func (t *Tables) UpsertMetadata(pubkey solana.PublicKey, m *MetadataRecord) bool {
	rec := Keyed[MetadataRecord]{pubkey, m}
	t.mu.Lock()
	prev, ok := t.metadataByMint[m.Mint]
	if ok && reflect.DeepEqual(prev, rec) {
		t.mu.Unlock()
		return false
	}
	t.metadataByMint[m.Mint] = rec
	t.metadataByEditionKey[m.EditionKey] = rec
	t.mu.Unlock()
	t.notify(Update{Table: "metadata", Pubkey: pubkey})
	return true
}

func (t *Tables) UpsertMasterEdition(pubkey solana.PublicKey, e *codec.MasterEdition) bool {
	rec := Keyed[codec.MasterEdition]{pubkey, e}
	t.mu.Lock()
	prev, ok := t.masterEditions[pubkey]
	if ok && reflect.DeepEqual(prev, rec) {
		t.mu.Unlock()
		return false
	}
	t.masterEditions[pubkey] = rec
	t.masterEditionsByMint[e.MasterMint] = rec
	t.mu.Unlock()
	t.notify(Update{Table: "master_editions", Pubkey: pubkey})
	return true
}

func (t *Tables) UpsertEdition(pubkey solana.PublicKey, e *codec.Edition) bool {
	changed := upsert(t, t.editions, pubkey, Keyed[codec.Edition]{pubkey, e})
	if changed {
		t.notify(Update{Table: "editions", Pubkey: pubkey})
	}
	return changed
}

func get[K comparable, T any](t *Tables, m map[K]Keyed[T], key K) (Keyed[T], bool) {
	t.mu.RLock()
	rec, ok := m[key]
	t.mu.RUnlock()
	return rec, ok
}

func (t *Tables) Auction(pubkey solana.PublicKey) (Keyed[codec.AuctionData], bool) {
	return get(t, t.auctions, pubkey)
}

func (t *Tables) AuctionKeys() []solana.PublicKey {
	t.mu.RLock()
	keys := make([]solana.PublicKey, 0, len(t.auctions))
	for k := range t.auctions {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	return keys
}

func (t *Tables) ManagerByAuction(auction solana.PublicKey) (Keyed[codec.AuctionManager], bool) {
	return get(t, t.managersByAuction, auction)
}

func (t *Tables) Vault(pubkey solana.PublicKey) (Keyed[codec.Vault], bool) {
	return get(t, t.vaults, pubkey)
}

func (t *Tables) Box(vault solana.PublicKey, order uint8) (Keyed[codec.SafetyDepositBox], bool) {
	return get(t, t.boxes, VaultOrder{vault, order})
}

func (t *Tables) BidderMetadata(auction, bidder solana.PublicKey) (Keyed[codec.BidderMetadata], bool) {
	return get(t, t.bidderMetadata, AuctionBidder{auction, bidder})
}

func (t *Tables) BidderPot(auction, bidder solana.PublicKey) (Keyed[codec.BidderPot], bool) {
	return get(t, t.bidderPots, AuctionBidder{auction, bidder})
}

// PotsForAuction returns every known bidder pot of one auction, for
// auctioneer-side settlement.
func (t *Tables) PotsForAuction(auction solana.PublicKey) []Keyed[codec.BidderPot] {
	t.mu.RLock()
	var pots []Keyed[codec.BidderPot]
	for key, pot := range t.bidderPots {
		if key.Auction.Equals(auction) {
			pots = append(pots, pot)
		}
	}
	t.mu.RUnlock()
	return pots
}

func (t *Tables) BidRedemption(pubkey solana.PublicKey) (Keyed[codec.BidRedemptionTicket], bool) {
	return get(t, t.bidRedemptions, pubkey)
}

func (t *Tables) Store(pubkey solana.PublicKey) (Keyed[codec.MarketplaceStore], bool) {
	return get(t, t.stores, pubkey)
}

func (t *Tables) WhitelistedCreator(address solana.PublicKey) (Keyed[codec.WhitelistedCreator], bool) {
	return get(t, t.creators, address)
}

func (t *Tables) MetadataByMint(mint solana.PublicKey) (Keyed[MetadataRecord], bool) {
	return get(t, t.metadataByMint, mint)
}

func (t *Tables) MetadataByEditionKey(editionKey solana.PublicKey) (Keyed[MetadataRecord], bool) {
	return get(t, t.metadataByEditionKey, editionKey)
}

func (t *Tables) MasterEdition(pubkey solana.PublicKey) (Keyed[codec.MasterEdition], bool) {
	return get(t, t.masterEditions, pubkey)
}

func (t *Tables) MasterEditionByMasterMint(mint solana.PublicKey) (Keyed[codec.MasterEdition], bool) {
	return get(t, t.masterEditionsByMint, mint)
}

func (t *Tables) Edition(pubkey solana.PublicKey) (Keyed[codec.Edition], bool) {
	return get(t, t.editions, pubkey)
}
