// Package history stores imported daily prices in SQLite and keeps them in sync with the
// quote files.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/modules/quotes"
	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/rs/zerolog"
)

// AssetInfo describes the stored history of one asset.
type AssetInfo struct {
	Asset      string    `json:"asset"`
	Source     string    `json:"source"`
	PriceCount int       `json:"price_count"`
	FirstDate  string    `json:"first_date,omitempty"`
	LastDate   string    `json:"last_date,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// GetDailyPrices returns every stored close of asset, oldest first. Unknown assets have no
// prices.
func (h *HistoryDB) GetDailyPrices(asset string) ([]returns.PricePoint, error) {
	rows, err := h.db.Query(`
		SELECT date, close
		FROM daily_prices
		WHERE asset = ?
		ORDER BY date ASC
	`, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []returns.PricePoint
	for rows.Next() {
		var p returns.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// Snapshot copies every stored price into memory. A single query reads one consistent
// state of the database, so a concurrent import is either fully in or fully out.
func (h *HistoryDB) Snapshot() (*quotes.Snapshot, error) {
	rows, err := h.db.Query(`
		SELECT asset, date, close
		FROM daily_prices
		ORDER BY asset, date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[string][]returns.PricePoint)
	for rows.Next() {
		var asset string
		var p returns.PricePoint
		if err := rows.Scan(&asset, &p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		prices[asset] = append(prices[asset], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return quotes.NewSnapshot(prices), nil
}

// Assets returns the names of all stored assets in sorted order.
func (h *HistoryDB) Assets() ([]string, error) {
	rows, err := h.db.Query(`SELECT asset FROM assets ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// ListAssets returns the stored history summary of every asset.
func (h *HistoryDB) ListAssets() ([]AssetInfo, error) {
	rows, err := h.db.Query(`
		SELECT asset, source, price_count, COALESCE(first_date, ''), COALESCE(last_date, ''), synced_at
		FROM assets
		ORDER BY asset
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var out []AssetInfo
	for rows.Next() {
		var info AssetInfo
		var syncedAt int64
		if err := rows.Scan(&info.Asset, &info.Source, &info.PriceCount, &info.FirstDate, &info.LastDate, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		info.SyncedAt = time.Unix(syncedAt, 0).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// SyncPrices replaces the stored prices of asset in a single transaction.
func (h *HistoryDB) SyncPrices(asset, source string, prices []returns.PricePoint) error {
	first, last := "", ""
	for _, p := range prices {
		if first == "" || p.Date < first {
			first = p.Date
		}
		if p.Date > last {
			last = p.Date
		}
	}

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO assets (asset, source, price_count, first_date, last_date, synced_at)
			VALUES (?, ?, 0, NULLIF(?, ''), NULLIF(?, ''), ?)
			ON CONFLICT(asset) DO UPDATE SET
				source = excluded.source,
				first_date = excluded.first_date,
				last_date = excluded.last_date,
				synced_at = excluded.synced_at
		`, asset, source, first, last, time.Now().Unix()); err != nil {
			return fmt.Errorf("failed to upsert asset: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM daily_prices WHERE asset = ?`, asset); err != nil {
			return fmt.Errorf("failed to clear daily prices: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO daily_prices (asset, date, close) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range prices {
			if _, err := stmt.Exec(asset, p.Date, p.Close); err != nil {
				return fmt.Errorf("failed to insert daily price for %s: %w", p.Date, err)
			}
		}

		_, err = tx.Exec(`
			UPDATE assets SET price_count = (SELECT COUNT(*) FROM daily_prices WHERE asset = ?)
			WHERE asset = ?
		`, asset, asset)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to sync prices for %s: %w", asset, err)
	}

	h.log.Debug().
		Str("asset", asset).
		Int("count", len(prices)).
		Msg("Synced historical prices")
	return nil
}

// DeleteAsset removes asset and its prices.
func (h *HistoryDB) DeleteAsset(asset string) error {
	if _, err := h.db.Exec(`DELETE FROM assets WHERE asset = ?`, asset); err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", asset, err)
	}
	return nil
}
