// Package settle drains a finished auction's escrow: it claims every
// winning bid into the manager's payment account, then empties that
// account to the auctioneer.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/logging"
	"github.com/artvault/marketplace/backend/internal/redeem"
	"github.com/artvault/marketplace/backend/internal/txsub"
	"github.com/artvault/marketplace/backend/internal/view"
)

// Claim transactions are packed tightly but capped well under the wire
// limit, and submitted in bounded parallel waves so a burst of claims
// cannot exhaust RPC connections.
const (
	transactionSize = 7
	batchSize       = 10
)

// UnsettledPots returns the winning pots that still hold escrowed
// funds. Claim progress is never tracked locally: each settlement pass
// re-reads the pots from the tables, whose Emptied flags the ledger
// feed keeps current, so a crashed pass resumes with exactly the
// remainder.
func UnsettledPots(tables *ingest.Tables, v *view.AuctionView) []ingest.Keyed[codec.BidderPot] {
	pots := tables.PotsForAuction(v.Auction.Pubkey)
	unsettled := pots[:0]
	for _, pot := range pots {
		if pot.Info.Emptied {
			continue
		}
		if v.Auction.Info.IsWinner(pot.Pubkey) < 0 {
			continue
		}
		unsettled = append(unsettled, pot)
	}
	sort.Slice(unsettled, func(i, j int) bool {
		return unsettled[i].Pubkey.String() < unsettled[j].Pubkey.String()
	})
	return unsettled
}

// BuildClaimBatches packs one claim instruction per pot into
// transactions of up to transactionSize claims, and groups the
// transactions into batches of up to batchSize for parallel
// submission.
func BuildClaimBatches(ids redeem.Programs, v *view.AuctionView, pots []ingest.Keyed[codec.BidderPot]) ([][]redeem.TxPlan, error) {
	vault, ok := v.Vault.Get()
	if !ok {
		return nil, fmt.Errorf("%w: vault %s", redeem.ErrIncompleteView, v.Manager.Info.Vault)
	}

	var batches [][]redeem.TxPlan
	var batch []redeem.TxPlan
	plan := redeem.TxPlan{Label: "claim-bids"}
	for _, pot := range pots {
		plan.Instructions = append(plan.Instructions, redeem.ClaimBidInstruction(
			ids,
			v.Manager.Info.AcceptPayment,
			pot.Info.BidderPot,
			pot.Pubkey,
			v.Auction.Pubkey,
			pot.Info.BidderAct,
			v.Auction.Info.TokenMint,
			vault.Pubkey,
			v.Manager.Pubkey,
		))
		if len(plan.Instructions) == transactionSize {
			batch = append(batch, plan)
			plan = redeem.TxPlan{Label: "claim-bids"}
		}
		if len(batch) == batchSize {
			batches = append(batches, batch)
			batch = nil
		}
	}
	if len(plan.Instructions) > 0 {
		batch = append(batch, plan)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches, nil
}

// DrainPlan builds the final transaction moving the claimed funds out
// of the payment escrow into the authority's account. For the native
// mint the funds pass through a throwaway wrapped account that is
// closed in the same transaction.
func DrainPlan(ids redeem.Programs, v *view.AuctionView, authority solana.PublicKey, destination solana.PublicKey, rent redeem.Rent) (redeem.TxPlan, error) {
	mint := v.Auction.Info.TokenMint
	p := redeem.TxPlan{Label: "empty-payment-account"}
	receiving, cleanup, ok := redeem.PaymentDestination(&p, authority, mint, destination, rent)
	if !ok {
		return redeem.TxPlan{}, fmt.Errorf("%w: %s", redeem.ErrMissingTokenAccount, mint)
	}
	p.Instructions = append(p.Instructions, redeem.EmptyPaymentAccountInstruction(
		ids,
		v.Manager.Info.AcceptPayment,
		receiving,
		authority,
		v.Manager.Pubkey,
	))
	p.Instructions = append(p.Instructions, cleanup...)
	return p, nil
}

// Settler runs full settlement passes for the auction authority.
type Settler struct {
	ids    redeem.Programs
	sender *txsub.Sender
	logger *slog.Logger
}

func NewSettler(ids redeem.Programs, sender *txsub.Sender, logger *slog.Logger) *Settler {
	return &Settler{ids: ids, sender: sender, logger: logger}
}

// Settle claims every unsettled pot and then drains the payment
// escrow. Multi-transaction batches go out in parallel; a batch that
// degenerates to a single transaction is retried serially instead.
// Failed claims are logged and left for the next pass rather than
// aborting the drain: the escrow re-read makes reruns cheap and exact.
func (s *Settler) Settle(ctx context.Context, tables *ingest.Tables, v *view.AuctionView, authority, destination solana.PublicKey, rent redeem.Rent) error {
	logger := logging.ForAuction(s.logger, v.Auction.Pubkey)
	pots := UnsettledPots(tables, v)
	batches, err := BuildClaimBatches(s.ids, v, pots)
	if err != nil {
		return err
	}

	claimed, failed := 0, 0
	for _, batch := range batches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(batch) >= 2 {
			for _, result := range s.sender.SendBatch(ctx, batch, txsub.Parallel) {
				if result.Err != nil {
					failed++
					logger.Warn("claim transaction failed", "err", result.Err)
					continue
				}
				claimed++
			}
			continue
		}
		if _, err := s.sender.SendWithRetry(ctx, batch[0]); err != nil {
			failed++
			logger.Warn("claim transaction failed", "err", err)
			continue
		}
		claimed++
	}

	logger.Info("claim pass complete",
		"pots", len(pots),
		"claimed_txs", claimed,
		"failed_txs", failed,
	)
	if failed > 0 {
		return fmt.Errorf("settle %s: %d claim transactions failed", v.Auction.Pubkey, failed)
	}

	drain, err := DrainPlan(s.ids, v, authority, destination, rent)
	if err != nil {
		return err
	}
	sig, err := s.sender.SendWithRetry(ctx, drain)
	if err != nil {
		return fmt.Errorf("empty payment account: %w", err)
	}
	logger.Info("payment escrow drained", "signature", sig)
	return nil
}
