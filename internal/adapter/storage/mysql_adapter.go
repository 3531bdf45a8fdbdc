package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nmakarov/repricer/internal/core/domain"
	"github.com/nmakarov/repricer/internal/shard"
)

// MySQLAdapter persists items and shops. Reference schema:
//
//	CREATE TABLE items (
//	    id              VARCHAR(64) PRIMARY KEY,
//	    shop_id         VARCHAR(64) NOT NULL,
//	    external_id     VARCHAR(64) NOT NULL,
//	    price           INT NOT NULL,
//	    min_profit      INT NULL,
//	    bot_active      TINYINT(1) NOT NULL DEFAULT 0,
//	    last_check_time TIMESTAMP NULL,
//	    KEY idx_due (bot_active, last_check_time)
//	);
//
//	CREATE TABLE shops (
//	    id                VARCHAR(64) PRIMARY KEY,
//	    last_catalog_sync TIMESTAMP NULL
//	);
// queryTimeout bounds every statement so a stuck connection delays one
// item, not the whole cycle.
const queryTimeout = 10 * time.Second

type MySQLAdapter struct {
	db    *sql.DB
	shard shard.Spec
}

func NewMySQLAdapter(db *sql.DB, spec shard.Spec) *MySQLAdapter {
	return &MySQLAdapter{db: db, shard: spec}
}

func (m *MySQLAdapter) FetchDue(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Item, error) {
	if m.shard.UUID {
		return m.fetchDueUUID(ctx, staleAfter, limit)
	}
	return m.fetchDueInt(ctx, staleAfter, limit)
}

// fetchDueInt pushes the shard predicate into SQL: integer ids partition
// with plain modulo.
func (m *MySQLAdapter) fetchDueInt(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cutoff := time.Now().Add(-staleAfter)

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, shop_id, external_id, price, COALESCE(min_profit, 0), bot_active, last_check_time
		FROM items
		WHERE bot_active = 1
		  AND (last_check_time IS NULL OR last_check_time < ?)
		  AND MOD(id, ?) = ?
		ORDER BY last_check_time IS NOT NULL, last_check_time ASC
		LIMIT ?`,
		cutoff, m.shard.Count, m.shard.Index, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// fetchDueUUID cannot express the hash predicate in SQL, so it widens the
// window by the shard count and filters in process with the same hash the
// shard package uses. Any opaque string id participates; the hash is total.
func (m *MySQLAdapter) fetchDueUUID(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cutoff := time.Now().Add(-staleAfter)

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, shop_id, external_id, price, COALESCE(min_profit, 0), bot_active, last_check_time
		FROM items
		WHERE bot_active = 1
		  AND (last_check_time IS NULL OR last_check_time < ?)
		ORDER BY last_check_time IS NOT NULL, last_check_time ASC
		LIMIT ?`,
		cutoff, limit*m.shard.Count,
	)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	defer rows.Close()

	all, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, limit)
	for _, it := range all {
		if !m.shard.Owns(it.ID) {
			continue
		}
		items = append(items, it)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func scanItems(rows *sql.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		var lastCheck sql.NullTime
		if err := rows.Scan(&it.ID, &it.ShopID, &it.ExternalID, &it.Price, &it.MinProfit, &it.BotActive, &lastCheck); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if lastCheck.Valid {
			t := lastCheck.Time
			it.LastCheckTime = &t
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (m *MySQLAdapter) UpdatePriceChecked(ctx context.Context, id string, price int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET price = ?, last_check_time = NOW()
		WHERE id = ?`,
		price, id,
	)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) TouchChecked(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET last_check_time = NOW()
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("touch item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) MarkCatalogSynced(ctx context.Context, shopID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		UPDATE shops
		SET last_catalog_sync = NOW()
		WHERE id = ?`,
		shopID,
	)
	if err != nil {
		return fmt.Errorf("mark catalog synced: %w", err)
	}
	return nil
}
