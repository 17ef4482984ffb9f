package article

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// BatchChunkSize is the maximum number of ids fetched in one GetByIDs query.
// Larger id sets are chunked and the chunks issued concurrently.
const BatchChunkSize = 10

// PostgresStore implements Store over the articles table.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a Postgres-backed article store.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

const selectColumns = `id, url, title, source_id, published_at, created_at, summary, image_url, topics, signals, embedding`

// QueryByTimeWindow returns candidates published in [start, end), newest first.
func (s *PostgresStore) QueryByTimeWindow(ctx context.Context, start, end time.Time) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM articles
		WHERE published_at >= $1 AND published_at < $2
		ORDER BY published_at DESC, created_at DESC
	`, selectColumns)

	rows, err := s.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles by window: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close article rows", "error", err)
		}
	}()

	return scanCandidates(rows)
}

// GetByID returns a candidate by id, or nil if absent.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = $1`, selectColumns)

	row := s.db.QueryRowContext(ctx, query, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %s: %w", id, err)
	}
	return c, nil
}

// GetByIDs returns the candidates whose ids exist in the store. The id set
// is chunked to BatchChunkSize per query and the chunks are fetched
// concurrently, then unioned. Order of the result is unspecified.
func (s *PostgresStore) GetByIDs(ctx context.Context, ids []string) ([]Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := chunkIDs(ids, BatchChunkSize)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		results  []Candidate
	)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			got, err := s.getChunk(ctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results = append(results, got...)
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// getChunk fetches one chunk of ids with ANY($1).
func (s *PostgresStore) getChunk(ctx context.Context, ids []string) ([]Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE id = ANY($1)`, selectColumns)

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to batch-get articles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close article rows", "error", err)
		}
	}()

	return scanCandidates(rows)
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = BatchChunkSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCandidate scans a single candidate row. Topics, signals and embedding
// are stored as JSONB.
func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c            Candidate
		imageURL     sql.NullString
		topicsJSON   []byte
		signalsJSON  []byte
		embeddingRaw []byte
	)

	err := row.Scan(&c.ID, &c.URL, &c.Title, &c.SourceID, &c.PublishedAt,
		&c.CreatedAt, &c.Summary, &imageURL, &topicsJSON, &signalsJSON, &embeddingRaw)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		c.ImageURL = imageURL.String
	}
	if len(topicsJSON) > 0 {
		if err := json.Unmarshal(topicsJSON, &c.Topics); err != nil {
			return nil, fmt.Errorf("failed to decode topics for article %s: %w", c.ID, err)
		}
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &c.Signals); err != nil {
			return nil, fmt.Errorf("failed to decode signals for article %s: %w", c.ID, err)
		}
	}
	if len(embeddingRaw) > 0 {
		if err := json.Unmarshal(embeddingRaw, &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for article %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// scanCandidates drains rows into a candidate slice.
func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("article row iteration failed: %w", err)
	}
	return out, nil
}
