package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/peregrinehq/peregrine/internal/index"
)

// SQLiteStore persists snapshots in a SQLite database. WAL mode lets a
// status or search invocation read while an index run writes.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// validateIntegrity checks an existing database before opening it for
// real. Returns nil when the file is absent (it will be created).
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='records'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		// A database with no records table was never ours.
		return fmt.Errorf("records table missing")
	}

	return nil
}

// NewSQLiteStore opens (or creates) the snapshot database at path. An
// empty path creates an in-memory store for testing. A corrupted
// database is cleared with a warning, since the snapshot is derived
// state that reindexing rebuilds.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("snapshot database corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("snapshot database corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("snapshot database cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer keeps lock contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates one table per persisted mapping plus allocator
// state. dev/ino are NULL when the platform offered no identity.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		mod_time_nanos INTEGER NOT NULL,
		dev INTEGER,
		ino INTEGER
	);

	CREATE TABLE IF NOT EXISTS record_keywords (
		record_id INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		PRIMARY KEY (record_id, keyword)
	);

	CREATE TABLE IF NOT EXISTS user_keywords (
		record_id INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		PRIMARY KEY (record_id, keyword)
	);

	CREATE TABLE IF NOT EXISTS path_index (
		path TEXT PRIMARY KEY,
		record_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS name_index (
		name TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		PRIMARY KEY (name, record_id)
	);

	CREATE TABLE IF NOT EXISTS keyword_index (
		keyword TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		PRIMARY KEY (keyword, record_id)
	);

	CREATE TABLE IF NOT EXISTS identity_index (
		dev INTEGER NOT NULL,
		ino INTEGER NOT NULL,
		record_id INTEGER NOT NULL,
		PRIMARY KEY (dev, ino)
	);

	CREATE TABLE IF NOT EXISTS allocator_free (
		id INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS allocator_state (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// wipeOrder lists every snapshot table; Save clears them all inside the
// replace transaction.
var wipeOrder = []string{
	"records", "record_keywords", "user_keywords", "path_index",
	"name_index", "keyword_index", "identity_index",
	"allocator_free", "allocator_state",
}

// Save replaces the persisted snapshot in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *index.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range wipeOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := insertRecords(ctx, tx, snap.Records); err != nil {
		return err
	}
	if err := insertPairs(ctx, tx,
		`INSERT INTO path_index(path, record_id) VALUES (?, ?)`,
		func(emit func(key string, id uint64)) {
			for path, id := range snap.Paths {
				emit(path, id)
			}
		}); err != nil {
		return fmt.Errorf("failed to save path index: %w", err)
	}
	if err := insertPostings(ctx, tx,
		`INSERT INTO name_index(name, record_id) VALUES (?, ?)`, snap.Names); err != nil {
		return fmt.Errorf("failed to save name index: %w", err)
	}
	if err := insertPostings(ctx, tx,
		`INSERT INTO keyword_index(keyword, record_id) VALUES (?, ?)`, snap.Keywords); err != nil {
		return fmt.Errorf("failed to save keyword index: %w", err)
	}

	identStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO identity_index(dev, ino, record_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare identity statement: %w", err)
	}
	defer identStmt.Close()
	for _, entry := range snap.Identities {
		if _, err := identStmt.ExecContext(ctx,
			int64(entry.Identity.Dev), int64(entry.Identity.Ino), int64(entry.ID)); err != nil {
			return fmt.Errorf("failed to save identity: %w", err)
		}
	}

	freeStmt, err := tx.PrepareContext(ctx, `INSERT INTO allocator_free(id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare free-id statement: %w", err)
	}
	defer freeStmt.Close()
	for _, id := range snap.FreeIDs {
		if _, err := freeStmt.ExecContext(ctx, int64(id)); err != nil {
			return fmt.Errorf("failed to save free id: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO allocator_state(key, value) VALUES ('last', ?)`, snap.LastID); err != nil {
		return fmt.Errorf("failed to save allocator state: %w", err)
	}

	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []index.RecordSnapshot) error {
	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records(id, path, mod_time_nanos, dev, ino) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}
	defer recStmt.Close()

	kwStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO record_keywords(record_id, keyword) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare keyword statement: %w", err)
	}
	defer kwStmt.Close()

	userStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO user_keywords(record_id, keyword) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare user-keyword statement: %w", err)
	}
	defer userStmt.Close()

	for _, rs := range records {
		var dev, ino any
		if rs.Identity != nil {
			dev = int64(rs.Identity.Dev)
			ino = int64(rs.Identity.Ino)
		}
		if _, err := recStmt.ExecContext(ctx, int64(rs.ID), rs.Path, rs.ModTimeNanos, dev, ino); err != nil {
			return fmt.Errorf("failed to save record %d: %w", rs.ID, err)
		}
		for _, kw := range rs.Keywords {
			if _, err := kwStmt.ExecContext(ctx, int64(rs.ID), kw); err != nil {
				return fmt.Errorf("failed to save keyword for record %d: %w", rs.ID, err)
			}
		}
		for _, kw := range rs.UserKeywords {
			if _, err := userStmt.ExecContext(ctx, int64(rs.ID), kw); err != nil {
				return fmt.Errorf("failed to save user keyword for record %d: %w", rs.ID, err)
			}
		}
	}
	return nil
}

func insertPairs(ctx context.Context, tx *sql.Tx, query string, each func(emit func(key string, id uint64))) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var execErr error
	each(func(key string, id uint64) {
		if execErr != nil {
			return
		}
		_, execErr = stmt.ExecContext(ctx, key, int64(id))
	})
	return execErr
}

func insertPostings(ctx context.Context, tx *sql.Tx, query string, postings map[string][]uint64) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, ids := range postings {
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, key, int64(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reassembles the persisted snapshot. The bool is false when no
// snapshot was ever saved.
func (s *SQLiteStore) Load(ctx context.Context) (*index.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	var last int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM allocator_state WHERE key = 'last'`).Scan(&last)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load allocator state: %w", err)
	}

	snap := &index.Snapshot{
		Records:    make([]index.RecordSnapshot, 0),
		Paths:      make(map[string]uint64),
		Names:      make(map[string][]uint64),
		Keywords:   make(map[string][]uint64),
		Identities: make([]index.IdentityEntry, 0),
		FreeIDs:    make([]uint64, 0),
		LastID:     last,
	}

	byID := make(map[uint64]int)
	err = scanRows(ctx, s.db,
		`SELECT id, path, mod_time_nanos, dev, ino FROM records ORDER BY id`,
		func(rows *sql.Rows) error {
			var id, nanos int64
			var path string
			var dev, ino sql.NullInt64
			if err := rows.Scan(&id, &path, &nanos, &dev, &ino); err != nil {
				return err
			}
			rs := index.RecordSnapshot{
				ID:           uint64(id),
				Path:         path,
				Keywords:     []string{},
				ModTimeNanos: nanos,
			}
			if dev.Valid && ino.Valid {
				rs.Identity = &index.Identity{Dev: uint64(dev.Int64), Ino: uint64(ino.Int64)}
			}
			byID[rs.ID] = len(snap.Records)
			snap.Records = append(snap.Records, rs)
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load records: %w", err)
	}

	err = scanRows(ctx, s.db,
		`SELECT record_id, keyword FROM record_keywords ORDER BY record_id, keyword`,
		func(rows *sql.Rows) error {
			var id int64
			var kw string
			if err := rows.Scan(&id, &kw); err != nil {
				return err
			}
			i, ok := byID[uint64(id)]
			if !ok {
				return fmt.Errorf("keyword row for unknown record %d", id)
			}
			snap.Records[i].Keywords = append(snap.Records[i].Keywords, kw)
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load record keywords: %w", err)
	}

	err = scanRows(ctx, s.db,
		`SELECT record_id, keyword FROM user_keywords ORDER BY record_id, keyword`,
		func(rows *sql.Rows) error {
			var id int64
			var kw string
			if err := rows.Scan(&id, &kw); err != nil {
				return err
			}
			i, ok := byID[uint64(id)]
			if !ok {
				return fmt.Errorf("user keyword row for unknown record %d", id)
			}
			snap.Records[i].UserKeywords = append(snap.Records[i].UserKeywords, kw)
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user keywords: %w", err)
	}

	err = scanRows(ctx, s.db, `SELECT path, record_id FROM path_index`,
		func(rows *sql.Rows) error {
			var path string
			var id int64
			if err := rows.Scan(&path, &id); err != nil {
				return err
			}
			snap.Paths[path] = uint64(id)
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load path index: %w", err)
	}

	err = scanRows(ctx, s.db, `SELECT name, record_id FROM name_index ORDER BY name, record_id`,
		func(rows *sql.Rows) error {
			var name string
			var id int64
			if err := rows.Scan(&name, &id); err != nil {
				return err
			}
			snap.Names[name] = append(snap.Names[name], uint64(id))
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load name index: %w", err)
	}

	err = scanRows(ctx, s.db, `SELECT keyword, record_id FROM keyword_index ORDER BY keyword, record_id`,
		func(rows *sql.Rows) error {
			var kw string
			var id int64
			if err := rows.Scan(&kw, &id); err != nil {
				return err
			}
			snap.Keywords[kw] = append(snap.Keywords[kw], uint64(id))
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load keyword index: %w", err)
	}

	err = scanRows(ctx, s.db, `SELECT dev, ino, record_id FROM identity_index`,
		func(rows *sql.Rows) error {
			var dev, ino, id int64
			if err := rows.Scan(&dev, &ino, &id); err != nil {
				return err
			}
			snap.Identities = append(snap.Identities, index.IdentityEntry{
				Identity: index.Identity{Dev: uint64(dev), Ino: uint64(ino)},
				ID:       uint64(id),
			})
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load identity index: %w", err)
	}
	// SQL integer order differs from unsigned order for high dev values,
	// so normalize here.
	sort.Slice(snap.Identities, func(i, j int) bool {
		a, b := snap.Identities[i].Identity, snap.Identities[j].Identity
		if a.Dev != b.Dev {
			return a.Dev < b.Dev
		}
		return a.Ino < b.Ino
	})

	err = scanRows(ctx, s.db, `SELECT id FROM allocator_free ORDER BY id`,
		func(rows *sql.Rows) error {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			snap.FreeIDs = append(snap.FreeIDs, uint64(id))
			return nil
		})
	if err != nil {
		return nil, false, fmt.Errorf("failed to load free ids: %w", err)
	}

	return snap, true, nil
}

func scanRows(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Path returns the database file path ("" for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
