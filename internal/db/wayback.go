package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thesavant42/warc-dedup/internal/models"
)

// GetCapture returns the cached capture for key, or nil when none is cached
func (db *DB) GetCapture(ctx context.Context, key models.DedupKey) (*models.Capture, error) {
	var timestamp, uri string
	var recordID sql.NullString

	err := db.conn.QueryRowContext(ctx, selectCapture, key.Digest.String(), key.URI).
		Scan(&timestamp, &uri, &recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query capture: %w", err)
	}

	date, err := models.ParseCDXTimestamp(timestamp)
	if err != nil {
		return nil, fmt.Errorf("cached capture for %s: %w", key, err)
	}

	c := &models.Capture{Date: date, URI: uri}
	if recordID.Valid {
		c.RecordID = recordID.String
	}
	return c, nil
}

// PutCapture stores a matched capture. An existing entry for the key is kept.
func (db *DB) PutCapture(ctx context.Context, key models.DedupKey, capture models.Capture) error {
	var recordID any
	if capture.RecordID != "" {
		recordID = capture.RecordID
	}

	_, err := db.conn.ExecContext(ctx, insertCapture,
		key.Digest.String(),
		key.URI,
		models.FormatCDXTimestamp(capture.Date),
		capture.URI,
		recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// CaptureCount returns the number of cached captures
func (db *DB) CaptureCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, selectCaptureCount).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// PruneCaptures deletes captures cached before cutoff and returns how many
// were removed
func (db *DB) PruneCaptures(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, deleteCapturesBefore, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to prune captures: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ListCaptures returns every cached capture ordered by URI
func (db *DB) ListCaptures(ctx context.Context) ([]models.CachedCapture, error) {
	rows, err := db.conn.QueryContext(ctx, selectCaptures)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var captures []models.CachedCapture
	for rows.Next() {
		var digest, uri, timestamp, captureURI, fetchedAt string
		var recordID sql.NullString
		if err := rows.Scan(&digest, &uri, &timestamp, &captureURI, &recordID, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}

		date, err := models.ParseCDXTimestamp(timestamp)
		if err != nil {
			return nil, fmt.Errorf("cached capture for %s: %w", uri, err)
		}

		c := models.CachedCapture{
			Key:     models.NewDedupKey(digest, uri),
			Capture: models.Capture{Date: date, URI: captureURI},
		}
		if recordID.Valid {
			c.Capture.RecordID = recordID.String
		}
		c.FetchedAt, _ = parseTimestamp(fetchedAt)
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate captures: %w", err)
	}
	return captures, nil
}
