package storage

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/san-kum/dplsim/internal/dynamo"

	_ "modernc.org/sqlite"
)

// Entry is the catalog row of one saved run, keyed by its directory.
type Entry struct {
	Dir             string
	Name            string
	BatchID         string
	Linear          float64
	Seed            int
	NEpochs         int
	EngineVersion   string
	DateTime        string
	ComputationTime string
}

func EntryFor(dir string, info dynamo.Info) Entry {
	return Entry{
		Dir:             dir,
		Name:            info.Misc.Name,
		BatchID:         info.Misc.BatchID,
		Linear:          info.Parameters.Linear,
		Seed:            info.Parameters.RandomSeed,
		NEpochs:         info.Misc.NEpochs,
		EngineVersion:   info.Misc.EngineVersion,
		DateTime:        info.Misc.DateTime,
		ComputationTime: info.Misc.ComputationTime,
	}
}

// Catalog indexes saved runs. Upsert on an existing directory replaces the
// row, so re-saving a run never duplicates it.
type Catalog interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

type MemoryCatalog struct {
	mu   sync.RWMutex
	runs map[string]Entry
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{runs: make(map[string]Entry)}
}

func (c *MemoryCatalog) Init(context.Context) error { return nil }

func (c *MemoryCatalog) Upsert(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[e.Dir] = e
	return nil
}

func (c *MemoryCatalog) List(context.Context) ([]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.runs))
	for _, e := range c.runs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

func (c *MemoryCatalog) Close() error { return nil }

type SQLiteCatalog struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteCatalog(path string) *SQLiteCatalog {
	return &SQLiteCatalog{path: path}
}

func (c *SQLiteCatalog) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return errors.New("sqlite path is required")
	}
	if c.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return err
	}
	// Ensemble workers save concurrently; one connection serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			dir TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			batch_id TEXT NOT NULL,
			linear REAL NOT NULL,
			seed INTEGER NOT NULL,
			n_epochs INTEGER NOT NULL,
			engine_version TEXT NOT NULL,
			date_time TEXT NOT NULL,
			computation_time TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return err
	}

	c.db = db
	return nil
}

func (c *SQLiteCatalog) getDB() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, errors.New("sqlite catalog is not initialized")
	}
	return c.db, nil
}

func (c *SQLiteCatalog) Upsert(ctx context.Context, e Entry) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (dir, name, batch_id, linear, seed, n_epochs, engine_version, date_time, computation_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dir) DO UPDATE SET
			name = excluded.name,
			batch_id = excluded.batch_id,
			linear = excluded.linear,
			seed = excluded.seed,
			n_epochs = excluded.n_epochs,
			engine_version = excluded.engine_version,
			date_time = excluded.date_time,
			computation_time = excluded.computation_time
	`, e.Dir, e.Name, e.BatchID, e.Linear, e.Seed, e.NEpochs, e.EngineVersion, e.DateTime, e.ComputationTime)
	return err
}

func (c *SQLiteCatalog) List(ctx context.Context) ([]Entry, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT dir, name, batch_id, linear, seed, n_epochs, engine_version, date_time, computation_time
		FROM runs ORDER BY dir
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Dir, &e.Name, &e.BatchID, &e.Linear, &e.Seed, &e.NEpochs,
			&e.EngineVersion, &e.DateTime, &e.ComputationTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
