// Package store persists the aggregated auction records and composed
// views to Postgres so the API tier can serve them without replaying
// the account feeds.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/artvault/marketplace/backend/internal/codec"
	"github.com/artvault/marketplace/backend/internal/ingest"
	"github.com/artvault/marketplace/backend/internal/view"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db *DB
}

type DB struct {
	raw *sql.DB
}

type Tx struct {
	raw *sql.Tx
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{raw: tx}, nil
}

func (db *DB) Close() error {
	return db.raw.Close()
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) Commit() error {
	return tx.raw.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.raw.Rollback()
}

func rebindPostgresPlaceholders(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)

	arg := 1
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			out.WriteByte(ch)
			if inSingleQuote {
				// SQL escape: two single quotes inside a string literal.
				if i+1 < len(query) && query[i+1] == '\'' {
					out.WriteByte(query[i+1])
					i++
					continue
				}
				inSingleQuote = false
			} else {
				inSingleQuote = true
			}
			continue
		}

		if ch == '?' && !inSingleQuote {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))
			arg++
			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func NewStore(dbDSN string) (*Store, error) {
	db, err := sql.Open("pgx", dbDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: &DB{raw: db}}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS auctions (
			pubkey TEXT PRIMARY KEY,
			authority TEXT NOT NULL,
			resource TEXT NOT NULL,
			token_mint TEXT NOT NULL,
			state TEXT NOT NULL,
			bid_count INTEGER NOT NULL,
			ended_at BIGINT,
			end_auction_at BIGINT,
			last_bid_at BIGINT,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auctions_state ON auctions(state);`,
		`CREATE TABLE IF NOT EXISTS auction_managers (
			pubkey TEXT PRIMARY KEY,
			auction TEXT NOT NULL UNIQUE,
			store_id TEXT NOT NULL,
			authority TEXT NOT NULL,
			vault TEXT NOT NULL,
			accept_payment TEXT NOT NULL,
			status TEXT NOT NULL,
			configs_validated INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auction_managers_authority ON auction_managers(authority, status);`,
		`CREATE TABLE IF NOT EXISTS bidder_metadata (
			pubkey TEXT PRIMARY KEY,
			auction TEXT NOT NULL,
			bidder TEXT NOT NULL,
			last_bid TEXT NOT NULL,
			last_bid_at BIGINT NOT NULL,
			cancelled INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bidder_metadata_auction ON bidder_metadata(auction, bidder);`,
		`CREATE TABLE IF NOT EXISTS bidder_pots (
			pubkey TEXT PRIMARY KEY,
			auction TEXT NOT NULL,
			bidder TEXT NOT NULL,
			pot_token TEXT NOT NULL,
			emptied INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bidder_pots_auction_emptied ON bidder_pots(auction, emptied);`,
		`CREATE TABLE IF NOT EXISTS item_metadata (
			pubkey TEXT PRIMARY KEY,
			mint TEXT NOT NULL,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			uri TEXT NOT NULL,
			update_authority TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_item_metadata_mint ON item_metadata(mint);`,
		`CREATE TABLE IF NOT EXISTS auction_views (
			auction TEXT PRIMARY KEY,
			lifecycle TEXT NOT NULL,
			item_count INTEGER NOT NULL,
			has_open_edition INTEGER NOT NULL,
			thumbnail_uri TEXT NOT NULL,
			totally_complete INTEGER NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_auction_views_lifecycle ON auction_views(lifecycle);`,
	}

	for _, query := range ddl {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertAuctionTx(ctx context.Context, tx *Tx, record ingest.Keyed[codec.AuctionData]) error {
	raw, err := json.Marshal(record.Info)
	if err != nil {
		return err
	}
	a := record.Info
	_, err = tx.ExecContext(ctx, `
		INSERT INTO auctions (
			pubkey, authority, resource, token_mint, state, bid_count,
			ended_at, end_auction_at, last_bid_at, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			authority = excluded.authority,
			resource = excluded.resource,
			token_mint = excluded.token_mint,
			state = excluded.state,
			bid_count = excluded.bid_count,
			ended_at = excluded.ended_at,
			end_auction_at = excluded.end_auction_at,
			last_bid_at = excluded.last_bid_at,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at
	`,
		record.Pubkey.String(),
		a.Authority.String(),
		a.Resource.String(),
		a.TokenMint.String(),
		auctionStateText(a.State),
		len(a.BidState.Bids),
		nullableInt64(a.EndedAt),
		nullableInt64(a.EndAuctionAt),
		nullableInt64(a.LastBid),
		string(raw),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) UpsertManagerTx(ctx context.Context, tx *Tx, record ingest.Keyed[codec.AuctionManager]) error {
	raw, err := json.Marshal(record.Info)
	if err != nil {
		return err
	}
	m := record.Info
	_, err = tx.ExecContext(ctx, `
		INSERT INTO auction_managers (
			pubkey, auction, store_id, authority, vault, accept_payment,
			status, configs_validated, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			auction = excluded.auction,
			store_id = excluded.store_id,
			authority = excluded.authority,
			vault = excluded.vault,
			accept_payment = excluded.accept_payment,
			status = excluded.status,
			configs_validated = excluded.configs_validated,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at
	`,
		record.Pubkey.String(),
		m.Auction.String(),
		m.Store.String(),
		m.Authority.String(),
		m.Vault.String(),
		m.AcceptPayment.String(),
		managerStatusText(m.State.Status),
		int(m.State.WinningConfigsValidated),
		string(raw),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) UpsertBidderMetadataTx(ctx context.Context, tx *Tx, record ingest.Keyed[codec.BidderMetadata]) error {
	raw, err := json.Marshal(record.Info)
	if err != nil {
		return err
	}
	b := record.Info
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bidder_metadata (
			pubkey, auction, bidder, last_bid, last_bid_at, cancelled, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			auction = excluded.auction,
			bidder = excluded.bidder,
			last_bid = excluded.last_bid,
			last_bid_at = excluded.last_bid_at,
			cancelled = excluded.cancelled,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at
	`,
		record.Pubkey.String(),
		b.AuctionPubkey.String(),
		b.BidderPubkey.String(),
		strconv.FormatUint(b.LastBid, 10),
		b.LastBidTime,
		boolToInt(b.Cancelled),
		string(raw),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) UpsertBidderPotTx(ctx context.Context, tx *Tx, record ingest.Keyed[codec.BidderPot]) error {
	raw, err := json.Marshal(record.Info)
	if err != nil {
		return err
	}
	p := record.Info
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bidder_pots (
			pubkey, auction, bidder, pot_token, emptied, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			auction = excluded.auction,
			bidder = excluded.bidder,
			pot_token = excluded.pot_token,
			emptied = excluded.emptied,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at
	`,
		record.Pubkey.String(),
		p.AuctionAct.String(),
		p.BidderAct.String(),
		p.BidderPot.String(),
		boolToInt(p.Emptied),
		string(raw),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) UpsertItemMetadataTx(ctx context.Context, tx *Tx, record ingest.Keyed[ingest.MetadataRecord]) error {
	raw, err := json.Marshal(record.Info)
	if err != nil {
		return err
	}
	m := record.Info
	_, err = tx.ExecContext(ctx, `
		INSERT INTO item_metadata (
			pubkey, mint, name, symbol, uri, update_authority, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			mint = excluded.mint,
			name = excluded.name,
			symbol = excluded.symbol,
			uri = excluded.uri,
			update_authority = excluded.update_authority,
			raw_json = excluded.raw_json,
			updated_at = excluded.updated_at
	`,
		record.Pubkey.String(),
		m.Mint.String(),
		trimPadding(m.Data.Name),
		trimPadding(m.Data.Symbol),
		trimPadding(m.Data.URI),
		m.UpdateAuthority.String(),
		string(raw),
		time.Now().Unix(),
	)
	return err
}

func (s *Store) UpsertAuctionViewTx(ctx context.Context, tx *Tx, v *view.AuctionView) error {
	thumbnailURI := ""
	if v.Thumbnail != nil {
		if md, ok := v.Thumbnail.Metadata.Get(); ok {
			thumbnailURI = trimPadding(md.Info.Data.URI)
		}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO auction_views (
			auction, lifecycle, item_count, has_open_edition, thumbnail_uri,
			totally_complete, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(auction) DO UPDATE SET
			lifecycle = excluded.lifecycle,
			item_count = excluded.item_count,
			has_open_edition = excluded.has_open_edition,
			thumbnail_uri = excluded.thumbnail_uri,
			totally_complete = excluded.totally_complete,
			updated_at = excluded.updated_at
	`,
		v.Auction.Pubkey.String(),
		v.State.String(),
		len(v.Items),
		boolToInt(v.OpenEditionItem != nil),
		thumbnailURI,
		boolToInt(v.TotallyComplete),
		time.Now().Unix(),
	)
	return err
}

// SnapshotViews writes the current composed views and their backing
// auction records in one transaction.
func (s *Store) SnapshotViews(ctx context.Context, tables *ingest.Tables, views []*view.AuctionView) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, v := range views {
			if err := s.UpsertAuctionTx(ctx, tx, v.Auction); err != nil {
				return fmt.Errorf("upsert auction %s: %w", v.Auction.Pubkey, err)
			}
			if err := s.UpsertManagerTx(ctx, tx, v.Manager); err != nil {
				return fmt.Errorf("upsert manager %s: %w", v.Manager.Pubkey, err)
			}
			for _, item := range v.Items {
				md, ok := item.Metadata.Get()
				if !ok {
					continue
				}
				if err := s.UpsertItemMetadataTx(ctx, tx, md); err != nil {
					return fmt.Errorf("upsert metadata %s: %w", md.Pubkey, err)
				}
			}
			for _, pot := range tables.PotsForAuction(v.Auction.Pubkey) {
				if err := s.UpsertBidderPotTx(ctx, tx, pot); err != nil {
					return fmt.Errorf("upsert bidder pot %s: %w", pot.Pubkey, err)
				}
			}
			if err := s.UpsertAuctionViewTx(ctx, tx, v); err != nil {
				return fmt.Errorf("upsert view %s: %w", v.Auction.Pubkey, err)
			}
		}
		return nil
	})
}

// UnsettledPotCount reports how many pots of the auction still hold
// escrowed funds, per the last persisted snapshot.
func (s *Store) UnsettledPotCount(ctx context.Context, auction solana.PublicKey) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bidder_pots WHERE auction = ? AND emptied = 0`,
		auction.String(),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func auctionStateText(state codec.AuctionState) string {
	switch state {
	case codec.AuctionCreated:
		return "Created"
	case codec.AuctionStarted:
		return "Started"
	case codec.AuctionEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", state)
	}
}

func managerStatusText(status codec.AuctionManagerStatus) string {
	switch status {
	case codec.ManagerInitialized:
		return "Initialized"
	case codec.ManagerValidated:
		return "Validated"
	case codec.ManagerRunning:
		return "Running"
	case codec.ManagerDisbursing:
		return "Disbursing"
	case codec.ManagerFinished:
		return "Finished"
	default:
		return fmt.Sprintf("Unknown(%d)", status)
	}
}

func trimPadding(raw string) string {
	return strings.TrimRight(raw, "\x00")
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
