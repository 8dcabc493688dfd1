package view

import (
	"reflect"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/pda"
)

// LifecycleState is the display state of one auction.
type LifecycleState uint8

const (
	StateLive LifecycleState = iota
	StateUpcoming
	StateEnded
	// StateBuyNow is reserved for a fixed-price sale mode.
	StateBuyNow
)

func (s LifecycleState) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateUpcoming:
		return "upcoming"
	case StateEnded:
		return "ended"
	default:
		return "buy_now"
	}
}

func lifecycleOf(a *codec.AuctionData) LifecycleState {
	switch a.State {
	case codec.AuctionEnded:
		return StateEnded
	case codec.AuctionStarted:
		return StateLive
	case codec.AuctionCreated:
		return StateUpcoming
	default:
		return StateBuyNow
	}
}

// Item is one prize slot of an auction view: the box holding the token
// plus its resolved descriptive records.
type Item struct {
	SafetyDeposit ingest.Keyed[codec.SafetyDepositBox]
	Metadata      Resolved[ingest.Keyed[ingest.MetadataRecord]]
	MasterEdition Resolved[ingest.Keyed[codec.MasterEdition]]
}

// AuctionView is the denormalized join of everything known about one
// auction, from the perspective of one bidder identity.
type AuctionView struct {
	Auction ingest.Keyed[codec.AuctionData]
	Manager ingest.Keyed[codec.AuctionManager]
	Vault   Resolved[ingest.Keyed[codec.Vault]]
	State   LifecycleState

	Items           []Item
	OpenEditionItem *Item
	Thumbnail       *Item

	MyBidderMetadata Resolved[ingest.Keyed[codec.BidderMetadata]]
	MyBidderPot      Resolved[ingest.Keyed[codec.BidderPot]]
	MyBidRedemption  Resolved[ingest.Keyed[codec.BidRedemptionTicket]]

	// TotallyComplete means the structural join can no longer change:
	// every prize slot resolved against the validated count and the
	// vault is known. Complete views take the cheap refresh path.
	TotallyComplete bool
}

// WinnerIndex returns this bidder's winner position, or -1.
func (v *AuctionView) WinnerIndex() int {
	pot, ok := v.MyBidderPot.Get()
	if !ok {
		return -1
	}
	// The bid list stores the pot account address, not the pot's token
	// account.
	return v.Auction.Info.IsWinner(pot.Pubkey)
}

// Composer maintains an indexed table of views keyed by auction id,
// recomputing them as the underlying record tables change.
type Composer struct {
	tables               *ingest.Tables
	auctionProgramID     solana.PublicKey
	marketplaceProgramID solana.PublicKey
	bidder               solana.PublicKey

	mu    sync.RWMutex
	views map[solana.PublicKey]*AuctionView
}

func NewComposer(tables *ingest.Tables, auctionProgramID, marketplaceProgramID, bidder solana.PublicKey) *Composer {
	return &Composer{
		tables:               tables,
		auctionProgramID:     auctionProgramID,
		marketplaceProgramID: marketplaceProgramID,
		bidder:               bidder,
		views:                map[solana.PublicKey]*AuctionView{},
	}
}

// Bind wires the composer to table changes. Updates that carry an
// auction scope recompute one view; unscoped updates (vault, metadata
// feeds) recompute every known auction.
func (c *Composer) Bind() {
	c.tables.OnChange(func(u ingest.Update) {
		if !u.Auction.IsZero() {
			c.Recompute(u.Auction)
			return
		}
		for _, auction := range c.tables.AuctionKeys() {
			c.Recompute(auction)
		}
	})
}

// View returns the current view of one auction, if one is ready.
func (c *Composer) View(auction solana.PublicKey) (*AuctionView, bool) {
	c.mu.RLock()
	v, ok := c.views[auction]
	c.mu.RUnlock()
	return v, ok
}

// Views returns every currently-composable view.
func (c *Composer) Views() []*AuctionView {
	c.mu.RLock()
	out := make([]*AuctionView, 0, len(c.views))
	for _, v := range c.views {
		out = append(out, v)
	}
	c.mu.RUnlock()
	return out
}

// Recompute rebuilds the view of one auction and returns it, or nil
// when the join is still incomplete. A view handed out by View or
// Views is never written again: a complete view is refreshed
// copy-on-write and the replacement swapped into the table, with the
// existing view returned untouched when nothing changed.
func (c *Composer) Recompute(auction solana.PublicKey) *AuctionView {
	c.mu.RLock()
	existing := c.views[auction]
	c.mu.RUnlock()

	var v *AuctionView
	if existing != nil && existing.TotallyComplete {
		v = c.refreshComplete(existing)
		if reflect.DeepEqual(v, existing) {
			return existing
		}
	} else {
		v = c.compose(auction)
		if v == nil {
			return nil
		}
	}
	c.mu.Lock()
	c.views[auction] = v
	c.mu.Unlock()
	return v
}

func (c *Composer) compose(auction solana.PublicKey) *AuctionView {
	auctionRec, ok := c.tables.Auction(auction)
	if !ok {
		return nil
	}
	manager, ok := c.tables.ManagerByAuction(auction)
	if !ok {
		return nil
	}

	boxes := c.denseBoxes(manager.Info.Vault)
	if len(boxes) == 0 {
		return nil
	}

	v := &AuctionView{
		Auction: auctionRec,
		Manager: manager,
		State:   lifecycleOf(auctionRec.Info),
	}

	if vault, ok := c.tables.Vault(manager.Info.Vault); ok {
		v.Vault = Found(vault)
	} else {
		v.Vault = Pending[ingest.Keyed[codec.Vault]]()
	}

	for _, w := range manager.Info.Settings.WinningConfigs {
		v.Items = append(v.Items, c.resolveItem(boxes, w.SafetyDepositBoxIndex))
	}
	if cfg := manager.Info.Settings.OpenEditionConfig; cfg != nil {
		item := c.resolveItem(boxes, *cfg)
		v.OpenEditionItem = &item
	}

	if len(v.Items) > 0 {
		v.Thumbnail = &v.Items[0]
	} else {
		v.Thumbnail = v.OpenEditionItem
	}

	c.resolveBidderFields(v)
	v.TotallyComplete = c.isComplete(v)

	if v.Thumbnail == nil || !v.Thumbnail.Metadata.IsFound() {
		return nil
	}
	return v
}

// denseBoxes walks the vault's safety deposit boxes by ascending order
// index, stopping at the first gap. Box order is dense by construction,
// so a gap means the tail has not arrived yet.
func (c *Composer) denseBoxes(vault solana.PublicKey) []ingest.Keyed[codec.SafetyDepositBox] {
	var boxes []ingest.Keyed[codec.SafetyDepositBox]
	for i := 0; i <= 255; i++ {
		box, ok := c.tables.Box(vault, uint8(i))
		if !ok {
			break
		}
		boxes = append(boxes, box)
	}
	return boxes
}

// resolveItem resolves one box index to its item records. A mint that
// does not resolve directly may be a master mint for a limited edition;
// in that case the metadata hangs off the master edition record.
func (c *Composer) resolveItem(boxes []ingest.Keyed[codec.SafetyDepositBox], index uint8) Item {
	if int(index) >= len(boxes) {
		return Item{
			Metadata:      Pending[ingest.Keyed[ingest.MetadataRecord]](),
			MasterEdition: Pending[ingest.Keyed[codec.MasterEdition]](),
		}
	}
	box := boxes[index]
	item := Item{
		SafetyDeposit: box,
		Metadata:      Pending[ingest.Keyed[ingest.MetadataRecord]](),
		MasterEdition: Absent[ingest.Keyed[codec.MasterEdition]](),
	}

	metadata, ok := c.tables.MetadataByMint(box.Info.TokenMint)
	if !ok {
		if master, ok := c.tables.MasterEditionByMasterMint(box.Info.TokenMint); ok {
			metadata, ok = c.tables.MetadataByEditionKey(master.Pubkey)
			if !ok {
				return item
			}
		} else {
			return item
		}
	}
	item.Metadata = Found(metadata)

	if master, ok := c.tables.MasterEdition(metadata.Info.EditionKey); ok {
		item.MasterEdition = Found(master)
	}
	return item
}

func (c *Composer) resolveBidderFields(v *AuctionView) {
	if c.bidder.IsZero() {
		v.MyBidderMetadata = Absent[ingest.Keyed[codec.BidderMetadata]]()
		v.MyBidderPot = Absent[ingest.Keyed[codec.BidderPot]]()
		v.MyBidRedemption = Absent[ingest.Keyed[codec.BidRedemptionTicket]]()
		return
	}

	auction := v.Auction.Pubkey
	if meta, ok := c.tables.BidderMetadata(auction, c.bidder); ok {
		v.MyBidderMetadata = Found(meta)
	} else {
		v.MyBidderMetadata = Pending[ingest.Keyed[codec.BidderMetadata]]()
	}
	if pot, ok := c.tables.BidderPot(auction, c.bidder); ok {
		v.MyBidderPot = Found(pot)
	} else {
		v.MyBidderPot = Pending[ingest.Keyed[codec.BidderPot]]()
	}

	_, redemptionKey := pda.MustDeriveBidderKeys(c.auctionProgramID, c.marketplaceProgramID, auction, c.bidder)
	if ticket, ok := c.tables.BidRedemption(redemptionKey); ok {
		v.MyBidRedemption = Found(ticket)
	} else {
		v.MyBidRedemption = Pending[ingest.Keyed[codec.BidRedemptionTicket]]()
	}
}

// isComplete checks that the structural join is closed: thumbnail
// present, every validated slot resolved, the open edition resolved
// when configured, and the vault record known.
func (c *Composer) isComplete(v *AuctionView) bool {
	if v.Thumbnail == nil || !v.Thumbnail.Metadata.IsFound() {
		return false
	}

	resolved := 0
	for i := range v.Items {
		if v.Items[i].Metadata.IsFound() {
			resolved++
		}
	}
	openConfigured := v.Manager.Info.Settings.OpenEditionConfig != nil
	if openConfigured {
		if v.OpenEditionItem == nil || !v.OpenEditionItem.Metadata.IsFound() {
			return false
		}
		resolved++
	}

	return resolved == int(v.Manager.Info.State.WinningConfigsValidated) && v.Vault.IsFound()
}

// refreshComplete is the cheap path for complete views: the structural
// join carries over and only the bidder-scoped fields, items whose
// records were still unresolved, and late-arriving master editions are
// looked up again. The result is a fresh view, so readers holding the
// old one never observe a write.
func (c *Composer) refreshComplete(old *AuctionView) *AuctionView {
	v := &AuctionView{
		Auction:         old.Auction,
		Manager:         old.Manager,
		Vault:           old.Vault,
		State:           old.State,
		Items:           append([]Item(nil), old.Items...),
		TotallyComplete: true,
	}
	if old.OpenEditionItem != nil {
		item := *old.OpenEditionItem
		v.OpenEditionItem = &item
	}

	boxes := c.denseBoxes(v.Manager.Info.Vault)
	for i := range v.Items {
		if !v.Items[i].Metadata.IsFound() {
			v.Items[i] = c.resolveItem(boxes, v.Manager.Info.Settings.WinningConfigs[i].SafetyDepositBoxIndex)
			continue
		}
		c.attachMasterEdition(&v.Items[i])
	}
	if v.OpenEditionItem != nil {
		if !v.OpenEditionItem.Metadata.IsFound() {
			item := c.resolveItem(boxes, *v.Manager.Info.Settings.OpenEditionConfig)
			v.OpenEditionItem = &item
		} else {
			c.attachMasterEdition(v.OpenEditionItem)
		}
	}

	if len(v.Items) > 0 {
		v.Thumbnail = &v.Items[0]
	} else {
		v.Thumbnail = v.OpenEditionItem
	}

	c.resolveBidderFields(v)
	return v
}

// attachMasterEdition looks up a master edition that had not arrived
// when the item's metadata resolved. Completeness does not gate on the
// master edition, so it can trail an otherwise closed join.
func (c *Composer) attachMasterEdition(item *Item) {
	if item.MasterEdition.IsFound() {
		return
	}
	meta, ok := item.Metadata.Get()
	if !ok {
		return
	}
	if master, ok := c.tables.MasterEdition(meta.Info.EditionKey); ok {
		item.MasterEdition = Found(master)
	}
}
