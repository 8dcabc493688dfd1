// Package settler polls the composed auction views and runs settlement
// for every finished auction the configured wallet is the authority of.
package settler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/config"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/logging"
	"github.com/artvault/marketplace/backend/internal/redeem"
	"github.com/artvault/marketplace/backend/internal/settle"
	"github.com/artvault/marketplace/backend/internal/txsub"
	"github.com/artvault/marketplace/backend/internal/view"
)

type Service struct {
	cfg      config.SettlerConfig
	logger   *slog.Logger
	rpc      *rpc.Client
	wallet   txsub.Keypair
	ingest   *ingest.Service
	composer *view.Composer
	settler  *settle.Settler

	// settled remembers auctions whose last pass fully drained, so an
	// unchanged view is not re-settled every poll. A new unsettled pot
	// clears the guard.
	settled map[solana.PublicKey]bool
}

func New(cfg config.SettlerConfig, logger *slog.Logger) (*Service, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", cfg.KeypairPath, err)
	}
	wallet := txsub.Keypair{Key: key}

	client := rpc.New(cfg.RPCURL)
	ingestSvc := ingest.New(cfg.Indexer(), logger)
	composer := view.NewComposer(
		ingestSvc.Tables(),
		cfg.AuctionProgramID,
		cfg.MarketplaceProgramID,
		wallet.PublicKey(),
	)
	composer.Bind()

	sender := txsub.New(client, wallet, txsub.Config{
		Commitment:    cfg.Commitment,
		SkipPreflight: cfg.SkipPreflight,
		MaxRetries:    cfg.MaxRetries,
		TxTimeout:     cfg.TxTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, logger)

	ids := redeem.Programs{
		Auction:     cfg.AuctionProgramID,
		Vault:       cfg.VaultProgramID,
		Marketplace: cfg.MarketplaceProgramID,
		Metadata:    cfg.MetadataProgramID,
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		rpc:      client,
		wallet:   wallet,
		ingest:   ingestSvc,
		composer: composer,
		settler:  settle.NewSettler(ids, sender, logger),
		settled:  map[solana.PublicKey]bool{},
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if source, srcErr := config.CurrentConfigSource(); srcErr == nil {
		s.logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}
	s.logger.Info("settler started",
		"store", s.cfg.StoreID,
		"authority", s.wallet.PublicKey(),
		"poll_interval", s.cfg.PollInterval,
	)

	rent, err := s.fetchRent(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ingest.Run(ctx)
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return <-errCh
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.settlePass(ctx, rent)
		}
	}
}

func (s *Service) fetchRent(ctx context.Context) (redeem.Rent, error) {
	tokenRent, err := s.rpc.GetMinimumBalanceForRentExemption(ctx, redeem.TokenAccountSize, s.cfg.Commitment)
	if err != nil {
		return redeem.Rent{}, fmt.Errorf("fetch token account rent: %w", err)
	}
	mintRent, err := s.rpc.GetMinimumBalanceForRentExemption(ctx, redeem.MintAccountSize, s.cfg.Commitment)
	if err != nil {
		return redeem.Rent{}, fmt.Errorf("fetch mint rent: %w", err)
	}
	return redeem.Rent{TokenAccount: tokenRent, Mint: mintRent}, nil
}

func (s *Service) settlePass(ctx context.Context, rent redeem.Rent) {
	now := time.Now().Unix()
	authority := s.wallet.PublicKey()

	for _, v := range s.composer.Views() {
		if ctx.Err() != nil {
			return
		}
		if !v.Manager.Info.Authority.Equals(authority) {
			continue
		}
		if !v.TotallyComplete {
			continue
		}
		if v.Auction.Info.State != codec.AuctionEnded && !v.Auction.Info.Ended(now) {
			continue
		}

		auction := v.Auction.Pubkey
		pots := settle.UnsettledPots(s.ingest.Tables(), v)
		if len(pots) > 0 {
			s.settled[auction] = false
		}
		if s.settled[auction] {
			continue
		}

		if err := s.settler.Settle(ctx, s.ingest.Tables(), v, authority, s.cfg.PayoutAccount, rent); err != nil {
			logging.ForAuction(s.logger, auction).Error("settlement pass failed", "err", err)
			continue
		}
		s.settled[auction] = true
	}
}
