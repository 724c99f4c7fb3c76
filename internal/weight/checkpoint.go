package weight

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// OpenCheckpointDB opens (creating if absent) a SQLite database at path for
// Weight Manager EMA checkpoints, per spec.md §6 "Persisted state": the
// Weight Manager may checkpoint EMAs to disk and restore on startup.
func OpenCheckpointDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open weight checkpoint db: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS weight_checkpoints (
	provider          TEXT PRIMARY KEY,
	base_weight       REAL NOT NULL,
	current_weight    REAL NOT NULL,
	ema_response_time REAL NOT NULL,
	ema_success_rate  REAL NOT NULL,
	ema_cost          REAL NOT NULL,
	ema_availability  REAL NOT NULL,
	updated_at        TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create weight checkpoint schema: %w", err)
	}
	return db, nil
}

// SaveCheckpoint writes every registered provider's EMA state to db, one row
// per provider, replacing any prior checkpoint for that provider.
func (m *Manager) SaveCheckpoint(db *sql.DB) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.providers))
	states := make([]*providerState, 0, len(m.providers))
	for name, p := range m.providers {
		names = append(names, name)
		states = append(states, p)
	}
	m.mu.RUnlock()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin weight checkpoint tx: %w", err)
	}

	const upsert = `
INSERT INTO weight_checkpoints
	(provider, base_weight, current_weight, ema_response_time, ema_success_rate, ema_cost, ema_availability, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider) DO UPDATE SET
	base_weight=excluded.base_weight,
	current_weight=excluded.current_weight,
	ema_response_time=excluded.ema_response_time,
	ema_success_rate=excluded.ema_success_rate,
	ema_cost=excluded.ema_cost,
	ema_availability=excluded.ema_availability,
	updated_at=excluded.updated_at;`

	for i, name := range names {
		p := states[i]
		p.mu.RLock()
		_, err := tx.Exec(upsert, name, p.baseWeight, p.currentWeight,
			p.emaResponseTime, p.emaSuccessRate, p.emaCost, p.emaAvailability,
			time.Now().UTC().Format(time.RFC3339))
		p.mu.RUnlock()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("write weight checkpoint for %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit weight checkpoint tx: %w", err)
	}
	return nil
}

// RestoreCheckpoint loads EMA state from db for providers already registered
// via Register. Rows for providers not currently registered are ignored;
// registered providers absent from the checkpoint keep their cold-start
// defaults. An empty/uninitialized database (no rows) is not an error — the
// gateway must start cleanly on first run.
func (m *Manager) RestoreCheckpoint(db *sql.DB) error {
	rows, err := db.Query(`SELECT provider, current_weight, ema_response_time, ema_success_rate, ema_cost, ema_availability FROM weight_checkpoints`)
	if err != nil {
		return fmt.Errorf("read weight checkpoint: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			provider                                                          string
			currentWeight, emaResponseTime, emaSuccessRate, emaCost, emaAvail float64
		)
		if err := rows.Scan(&provider, &currentWeight, &emaResponseTime, &emaSuccessRate, &emaCost, &emaAvail); err != nil {
			return fmt.Errorf("scan weight checkpoint row: %w", err)
		}

		p, ok := m.get(provider)
		if !ok {
			continue
		}
		p.mu.Lock()
		p.currentWeight = clamp(currentWeight, m.cfg.MinWeight, m.cfg.MaxWeight)
		p.emaResponseTime = emaResponseTime
		p.emaResponseTimeInit = true
		p.emaSuccessRate = emaSuccessRate
		p.emaSuccessRateInit = true
		p.emaCost = emaCost
		p.emaCostInit = true
		p.emaAvailability = emaAvail
		p.emaAvailabilityInit = true
		p.lastUpdated = time.Now()
		p.mu.Unlock()
	}
	return rows.Err()
}
