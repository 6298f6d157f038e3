// Package store persists pattern statistics in SQLite.
//
// A store file holds either a global prior or a personal exposure
// profile (or both, for single-user setups). Every file is stamped with
// the anchor set fingerprint and extractor configuration it was built
// under; loading or writing with a different anchor set is refused,
// because pattern keys from different anchor sets are not comparable.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Meta keys.
const (
	metaStoreID           = "store_id"
	metaAnchorFingerprint = "anchor_fingerprint"
	metaExtractorConfig   = "extractor_config"
	metaCreatedAt         = "created_at"
	metaTotalSentences    = "total_sentences"
	metaIngestOrder       = "ingest_order"
)

// Store is a SQLite-backed statistics store.
// Uses WAL mode for concurrent read access; writes are single-writer.
type Store struct {
	db *sql.DB
}

// Open creates or opens a store at the given path and applies pragmas
// and schema migrations. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect store: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	// No incremental migrations yet; new files start at the current
	// version, old files would be migrated here.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// initMeta stamps a fresh store with identity and provenance inside an
// existing transaction. On an already-stamped store it verifies the
// anchor fingerprint instead, returning MismatchError on disagreement.
func initMeta(ctx context.Context, tx *sql.Tx, fingerprint string, cfg extract.Config) error {
	existing, ok, err := metaGetTx(ctx, tx, metaAnchorFingerprint)
	if err != nil {
		return err
	}
	if ok {
		if existing != fingerprint {
			return anchor.NewMismatchError("store", existing, fingerprint)
		}
		return nil
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal extractor config: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate store id: %w", err)
	}

	pairs := map[string]string{
		metaStoreID:           id.String(),
		metaAnchorFingerprint: fingerprint,
		metaExtractorConfig:   string(cfgJSON),
		metaCreatedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range pairs {
		if err := metaSetTx(ctx, tx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint returns the anchor set fingerprint the store was stamped
// with, or "" for a fresh store.
func (s *Store) Fingerprint(ctx context.Context) (string, error) {
	value, _, err := s.metaGet(ctx, metaAnchorFingerprint)
	return value, err
}

// StoreID returns the store's unique identifier, or "" for a fresh store.
func (s *Store) StoreID(ctx context.Context) (string, error) {
	value, _, err := s.metaGet(ctx, metaStoreID)
	return value, err
}

// ExtractorConfig returns the extractor configuration the store's stats
// were produced under.
func (s *Store) ExtractorConfig(ctx context.Context) (extract.Config, error) {
	value, ok, err := s.metaGet(ctx, metaExtractorConfig)
	if err != nil {
		return extract.Config{}, err
	}
	if !ok {
		return extract.Config{}, anchor.NewConfigError("store", "store has no extractor config; nothing was saved yet")
	}
	var cfg extract.Config
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return extract.Config{}, fmt.Errorf("parse extractor config: %w", err)
	}
	return cfg, nil
}

func (s *Store) metaGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

func metaGetTx(ctx context.Context, tx *sql.Tx, key string) (string, bool, error) {
	var value string
	err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

func metaSetTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}
