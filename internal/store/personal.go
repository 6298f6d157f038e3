package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/pattern"
	"github.com/zhlearn/anchorgram/internal/stats"
)

// SavePersonal persists a learner's exposure state, replacing any
// previously stored profile. The store must be fresh or stamped with
// the same anchor fingerprint.
func (s *Store) SavePersonal(ctx context.Context, personal *stats.Personal, cfg extract.Config) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save personal: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := initMeta(ctx, tx, personal.Fingerprint(), cfg); err != nil {
		return err
	}
	if err := metaSetTx(ctx, tx, metaIngestOrder,
		strconv.FormatInt(personal.Order(), 10)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM personal_stats`); err != nil {
		return fmt.Errorf("save personal: clear: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO personal_stats
		(key, family, count_seen, distinct_sentence_count, emerged, last_seen_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save personal: prepare: %w", err)
	}
	defer insert.Close()

	for _, key := range personal.Keys() {
		rec, _ := personal.Record(key)
		emerged := 0
		if rec.Emerged {
			emerged = 1
		}
		if _, err := insert.ExecContext(ctx, key, string(rec.Family),
			rec.CountSeen, rec.DistinctSentenceCount, emerged, rec.LastSeenOrder); err != nil {
			return fmt.Errorf("save personal: insert %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save personal: commit: %w", err)
	}
	return nil
}

// LoadPersonal restores a learner's exposure state. A store never
// touched by SavePersonal yields a fresh empty state bound to the given
// fingerprint, so first runs need no special casing.
func (s *Store) LoadPersonal(ctx context.Context, fingerprint string, thresholds stats.EmergenceThresholds) (*stats.Personal, error) {
	stamped, ok, err := s.metaGet(ctx, metaAnchorFingerprint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return stats.NewPersonal(fingerprint, thresholds)
	}
	if stamped != fingerprint {
		return nil, anchor.NewMismatchError("load personal", fingerprint, stamped)
	}

	var order int64
	if raw, ok, err := s.metaGet(ctx, metaIngestOrder); err != nil {
		return nil, err
	} else if ok {
		order, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse ingest_order: %w", err)
		}
	}

	records := make(map[string]*stats.PersonalRecord)
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, family, count_seen, distinct_sentence_count, emerged, last_seen_order
		FROM personal_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("load personal: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key, family string
			emerged     int
		)
		rec := &stats.PersonalRecord{}
		if err := rows.Scan(&key, &family, &rec.CountSeen,
			&rec.DistinctSentenceCount, &emerged, &rec.LastSeenOrder); err != nil {
			return nil, fmt.Errorf("load personal: scan: %w", err)
		}
		rec.Family = pattern.Family(family)
		rec.Emerged = emerged != 0
		records[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load personal: %w", err)
	}

	return stats.RestorePersonal(stamped, thresholds, records, order)
}
