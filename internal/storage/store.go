package storage

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// UsageRecord is one outbound LLM call in the usage ledger.
// It never holds prompts or generated text.
type UsageRecord struct {
	ID           int64     `json:"id"`
	Feature      string    `json:"feature"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	CostUSD      float64   `json:"costUSD"`
	ImageDigest  string    `json:"imageDigest,omitempty"` // Empty for text-only calls
	CreatedAt    time.Time `json:"createdAt"`
}

// FeatureUsage aggregates the ledger for a single feature.
type FeatureUsage struct {
	Feature      string  `json:"feature"`
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUSD"`
}

// UsageStore defines the interface for the usage ledger.
type UsageStore interface {
	RecordUsage(rec *UsageRecord) error
	UsageByFeature() ([]FeatureUsage, error)
	RecentUsage(limit int) ([]UsageRecord, error)
	PruneUsage(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteStore implements UsageStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ UsageStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based usage store.
// The dbPath is the path to the SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions once the file exists
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS llm_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd REAL NOT NULL,
		image_digest TEXT,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create llm_usage table: %w", err)
	}

	indexQuery := `CREATE INDEX IF NOT EXISTS idx_llm_usage_feature ON llm_usage (feature)`
	if _, err := s.db.Exec(indexQuery); err != nil {
		return fmt.Errorf("failed to create llm_usage index: %w", err)
	}

	return nil
}

// RecordUsage appends a record to the ledger. CreatedAt defaults to now.
func (s *SQLiteStore) RecordUsage(rec *UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
		INSERT INTO llm_usage (feature, model, input_tokens, output_tokens, cost_usd, image_digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Feature, rec.Model, rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.ImageDigest, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get usage record id: %w", err)
	}
	rec.ID = id

	return nil
}

// UsageByFeature returns call counts, tokens and cost per feature,
// ordered by feature name.
func (s *SQLiteStore) UsageByFeature() ([]FeatureUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT feature, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		FROM llm_usage
		GROUP BY feature
		ORDER BY feature
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var usage []FeatureUsage
	for rows.Next() {
		var u FeatureUsage
		if err := rows.Scan(&u.Feature, &u.Calls, &u.InputTokens, &u.OutputTokens, &u.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		usage = append(usage, u)
	}

	return usage, rows.Err()
}

// RecentUsage returns the newest records first.
func (s *SQLiteStore) RecentUsage(limit int) ([]UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, feature, model, input_tokens, output_tokens, cost_usd, image_digest, created_at
		FROM llm_usage
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent usage: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		var digest sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Feature, &rec.Model, &rec.InputTokens, &rec.OutputTokens, &rec.CostUSD, &digest, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.ImageDigest = digest.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// PruneUsage deletes records older than olderThan and returns how many
// were removed.
func (s *SQLiteStore) PruneUsage(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Exec(`DELETE FROM llm_usage WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage: %w", err)
	}

	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ImageDigest returns the hex BLAKE2b-256 digest of image data.
// It lets repeated uploads of the same screenshot be correlated in the
// ledger without storing the image.
func ImageDigest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
