// Package indexer wires the account feed aggregator, the view composer
// and the Postgres snapshot store into one long-running service.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/config"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/store"
	"github.com/artvault/marketplace/backend/internal/view"
)

type Service struct {
	cfg      config.IndexerConfig
	logger   *slog.Logger
	ingest   *ingest.Service
	composer *view.Composer
	store    *store.Store
}

func New(cfg config.IndexerConfig, logger *slog.Logger) (*Service, error) {
	ingestSvc := ingest.New(cfg, logger)
	composer := view.NewComposer(
		ingestSvc.Tables(),
		cfg.AuctionProgramID,
		cfg.MarketplaceProgramID,
		solana.PublicKey{},
	)
	composer.Bind()

	st, err := store.NewStore(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		ingest:   ingestSvc,
		composer: composer,
		store:    st,
	}, nil
}

// Tables exposes the live record tables, for embedding callers.
func (s *Service) Tables() *ingest.Tables {
	return s.ingest.Tables()
}

// Composer exposes the live view table, for embedding callers.
func (s *Service) Composer() *view.Composer {
	return s.composer
}

func (s *Service) Run(ctx context.Context) error {
	if source, srcErr := config.CurrentConfigSource(); srcErr == nil {
		s.logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}
	s.logger.Info("indexer started",
		"store", s.cfg.StoreID,
		"snapshot_interval", s.cfg.SnapshotInterval,
	)

	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ingest.Run(ctx)
	}()

	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.snapshot(context.Background())
			return <-errCh
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.snapshot(ctx)
		}
	}
}

func (s *Service) snapshot(ctx context.Context) {
	views := s.composer.Views()
	if len(views) == 0 {
		return
	}
	start := time.Now()
	if err := s.store.SnapshotViews(ctx, s.ingest.Tables(), views); err != nil {
		s.logger.Error("view snapshot failed", "err", err, "views", len(views))
		return
	}
	s.logger.Info("view snapshot persisted",
		"views", len(views),
		"elapsed", time.Since(start),
	)
}
