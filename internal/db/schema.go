package db

// Schema for matched captures, keyed by payload digest and target URI
const createCapturesTable = `
CREATE TABLE IF NOT EXISTS captures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    digest TEXT NOT NULL,
    uri TEXT NOT NULL,
    capture_timestamp TEXT NOT NULL,
    capture_uri TEXT NOT NULL,
    capture_record_id TEXT,
    fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(digest, uri)
);

CREATE INDEX IF NOT EXISTS idx_captures_uri ON captures(uri);
`

const insertCapture = `
INSERT OR IGNORE INTO captures (digest, uri, capture_timestamp, capture_uri, capture_record_id)
VALUES (?, ?, ?, ?, ?)
`

const selectCapture = `
SELECT capture_timestamp, capture_uri, capture_record_id
FROM captures
WHERE digest = ? AND uri = ?
`

const selectCaptureCount = `
SELECT COUNT(*) FROM captures
`

const deleteCapturesBefore = `
DELETE FROM captures WHERE fetched_at < ?
`

const selectCaptures = `
SELECT digest, uri, capture_timestamp, capture_uri, capture_record_id, fetched_at
FROM captures
ORDER BY uri, digest
`
