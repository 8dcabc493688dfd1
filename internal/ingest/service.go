package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/artvault/marketplace/backend/internal/config"
)

// Service bootstraps the tables with one bulk scan per program feed and
// keeps them current over account-change subscriptions. Each feed runs
// on its own goroutine and writes only its own tables.
type Service struct {
	cfg        config.IndexerConfig
	rpc        *rpc.Client
	tables     *Tables
	classifier *Classifier
	logger     *slog.Logger
}

type feed struct {
	name      string
	programID solana.PublicKey
	apply     func(*Tables, solana.PublicKey, []byte) Kind
}

func New(cfg config.IndexerConfig, logger *slog.Logger) *Service {
	classifier := &Classifier{
		StoreID:           cfg.StoreID,
		MetadataProgramID: cfg.MetadataProgramID,
	}
	return &Service{
		cfg:        cfg,
		rpc:        rpc.New(cfg.RPCURL),
		tables:     NewTables(),
		classifier: classifier,
		logger:     logger,
	}
}

// Tables exposes the record tables for composers and planners. Callers
// must treat the records as read-only.
func (s *Service) Tables() *Tables {
	return s.tables
}

func (s *Service) feeds() []feed {
	return []feed{
		{"auction", s.cfg.AuctionProgramID, s.classifier.ApplyAuctionFeed},
		{"vault", s.cfg.VaultProgramID, s.classifier.ApplyVaultFeed},
		{"marketplace", s.cfg.MarketplaceProgramID, s.classifier.ApplyMarketplaceFeed},
		{"metadata", s.cfg.MetadataProgramID, s.classifier.ApplyMetadataFeed},
	}
}

func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("aggregator started",
		"rpc", s.cfg.RPCURL,
		"ws", s.cfg.WSURL,
		"store", s.cfg.StoreID,
		"commitment", s.cfg.Commitment,
	)

	if err := s.scanAll(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}

	for _, f := range s.feeds() {
		go s.subscribeLoop(ctx, f)
	}

	ticker := time.NewTicker(s.cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("aggregator stopped")
			return nil
		case <-ticker.C:
			// Periodic rescan self-heals subscription gaps; upserts are
			// idempotent so a full pass is safe at any time.
			if err := s.scanAll(ctx); err != nil {
				s.logger.Error("rescan failed", "err", err)
			}
		}
	}
}

func (s *Service) scanAll(ctx context.Context) error {
	for _, f := range s.feeds() {
		if err := s.scanFeed(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) scanFeed(ctx context.Context, f feed) error {
	accounts, err := s.rpc.GetProgramAccountsWithOpts(ctx, f.programID, &rpc.GetProgramAccountsOpts{
		Commitment: s.cfg.Commitment,
	})
	if err != nil {
		return fmt.Errorf("scan %s accounts for program %s: %w", f.name, f.programID, err)
	}

	stats := map[Kind]int{}
	for _, item := range accounts {
		if item == nil || item.Account == nil {
			continue
		}
		kind := f.apply(s.tables, item.Pubkey, item.Account.Data.GetBinary())
		stats[kind]++
	}

	s.logger.Info("feed scan complete",
		"feed", f.name,
		"accounts", len(accounts),
		"dropped", stats[KindUnrecognized],
	)
	return nil
}

func (s *Service) subscribeLoop(ctx context.Context, f feed) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.subscribeOnce(ctx, f); err != nil && ctx.Err() == nil {
			s.logger.Warn("feed subscription lost", "feed", f.name, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ResubscribeDelay):
		}
	}
}

func (s *Service) subscribeOnce(ctx context.Context, f feed) error {
	client, err := ws.Connect(ctx, s.cfg.WSURL)
	if err != nil {
		return fmt.Errorf("connect ws: %w", err)
	}
	defer client.Close()

	sub, err := client.ProgramSubscribeWithOpts(f.programID, s.cfg.Commitment, solana.EncodingBase64, nil)
	if err != nil {
		return fmt.Errorf("subscribe program %s: %w", f.programID, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("feed subscribed", "feed", f.name, "program", f.programID)

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if got == nil || got.Value.Account == nil {
			continue
		}
		kind := f.apply(s.tables, got.Value.Pubkey, got.Value.Account.Data.GetBinary())
		if kind != KindUnrecognized {
			s.logger.Debug("account update applied",
				"feed", f.name,
				"kind", kind.String(),
				"pubkey", got.Value.Pubkey,
			)
		}
	}
}
