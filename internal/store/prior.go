package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/pattern"
	"github.com/zhlearn/anchorgram/internal/stats"
)

// SaveGlobal persists a finalized global prior in one transaction,
// replacing any previously stored prior. The store must be fresh or
// stamped with the same anchor fingerprint.
func (s *Store) SaveGlobal(ctx context.Context, global *stats.Global, cfg extract.Config) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save prior: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := initMeta(ctx, tx, global.Fingerprint(), cfg); err != nil {
		return err
	}
	if err := metaSetTx(ctx, tx, metaTotalSentences,
		strconv.FormatInt(global.TotalSentences(), 10)); err != nil {
		return err
	}

	// Full replace: a prior is rebuilt, never incrementally patched.
	if _, err := tx.ExecContext(ctx, `DELETE FROM global_realizations`); err != nil {
		return fmt.Errorf("save prior: clear realizations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM global_stats`); err != nil {
		return fmt.Errorf("save prior: clear stats: %w", err)
	}

	insertStat, err := tx.PrepareContext(ctx, `
		INSERT INTO global_stats
		(key, family, count_sentences, count_occurrences, p_global, log_freq)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save prior: prepare: %w", err)
	}
	defer insertStat.Close()

	insertRealization, err := tx.PrepareContext(ctx, `
		INSERT INTO global_realizations (key, position, realization)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save prior: prepare realizations: %w", err)
	}
	defer insertRealization.Close()

	for _, key := range global.Keys() {
		rec, _ := global.Record(key)
		if _, err := insertStat.ExecContext(ctx, key, string(rec.Family),
			rec.CountSentences, rec.CountOccurrences, rec.PGlobal, rec.LogFreq); err != nil {
			return fmt.Errorf("save prior: insert %s: %w", key, err)
		}
		for i, realization := range rec.Realizations {
			if _, err := insertRealization.ExecContext(ctx, key, i, realization); err != nil {
				return fmt.Errorf("save prior: insert realization %s: %w", key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save prior: commit: %w", err)
	}
	return nil
}

// LoadGlobal reads the stored prior back. The caller's expected
// fingerprint is checked against the store stamp before any row is
// read; pass the extractor's fingerprint.
func (s *Store) LoadGlobal(ctx context.Context, fingerprint string) (*stats.Global, error) {
	stamped, ok, err := s.metaGet(ctx, metaAnchorFingerprint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, anchor.NewConfigError("store", "store holds no prior; run a corpus scan first")
	}
	if stamped != fingerprint {
		return nil, anchor.NewMismatchError("load prior", fingerprint, stamped)
	}

	totalRaw, ok, err := s.metaGet(ctx, metaTotalSentences)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, anchor.NewConfigError("store", "store holds no prior; run a corpus scan first")
	}
	total, err := strconv.ParseInt(totalRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse total_sentences: %w", err)
	}

	records := make(map[string]*stats.GlobalRecord)
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, family, count_sentences, count_occurrences, p_global, log_freq
		FROM global_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("load prior: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, family string
		rec := &stats.GlobalRecord{}
		if err := rows.Scan(&key, &family, &rec.CountSentences,
			&rec.CountOccurrences, &rec.PGlobal, &rec.LogFreq); err != nil {
			return nil, fmt.Errorf("load prior: scan: %w", err)
		}
		rec.Family = pattern.Family(family)
		records[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load prior: %w", err)
	}

	if err := s.loadRealizations(ctx, records); err != nil {
		return nil, err
	}
	return stats.NewGlobal(stamped, total, records), nil
}

func (s *Store) loadRealizations(ctx context.Context, records map[string]*stats.GlobalRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, realization FROM global_realizations
		ORDER BY key, position
	`)
	if err != nil {
		return fmt.Errorf("load realizations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, realization string
		if err := rows.Scan(&key, &realization); err != nil {
			return fmt.Errorf("load realizations: scan: %w", err)
		}
		if rec, ok := records[key]; ok {
			rec.Realizations = append(rec.Realizations, realization)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load realizations: %w", err)
	}
	return nil
}

// TopKeys returns the stored keys of one family ordered by document
// frequency, for inspection tooling. family "" means all families.
func (s *Store) TopKeys(ctx context.Context, family string, limit int) ([]string, error) {
	if limit < 1 {
		return nil, anchor.NewConfigError("limit", "must be >= 1, got %d", limit)
	}
	var (
		rows *sql.Rows
		err  error
	)
	if family == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key FROM global_stats
			ORDER BY count_sentences DESC, key ASC LIMIT ?
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key FROM global_stats WHERE family = ?
			ORDER BY count_sentences DESC, key ASC LIMIT ?
		`, family, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("top keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("top keys: scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top keys: %w", err)
	}
	return keys, nil
}
