// Package history records served classifications in SQLite and aggregates
// them into classification metrics.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/anatolykoptev/go-artstyle"
)

// DefaultRecent is the number of recent classifications in a Summary.
const DefaultRecent = 10

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	id                TEXT PRIMARY KEY,
	created_at        INTEGER NOT NULL,
	filename          TEXT NOT NULL DEFAULT '',
	strategy          TEXT NOT NULL DEFAULT '',
	label             TEXT NOT NULL,
	confidence        REAL NOT NULL,
	method            TEXT NOT NULL,
	extraction_method TEXT NOT NULL,
	degraded          INTEGER NOT NULL DEFAULT 0,
	cached            INTEGER NOT NULL DEFAULT 0,
	latency_ms        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications (created_at);
`

// Record is one stored classification.
type Record struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Filename         string    `json:"filename,omitempty"`
	Strategy         string    `json:"strategy,omitempty"`
	Label            string    `json:"predicted_label"`
	Confidence       float64   `json:"confidence"`
	Method           string    `json:"method"`
	ExtractionMethod string    `json:"extraction_method"`
	Degraded         bool      `json:"degraded"`
	Cached           bool      `json:"cached"`
	LatencyMs        int64     `json:"latency_ms"`
}

// FromEvent converts a service classification event into a Record.
func FromEvent(e artstyle.ClassificationEvent) Record {
	return Record{
		ID:               e.ID,
		CreatedAt:        e.At,
		Filename:         e.Filename,
		Strategy:         string(e.Strategy),
		Label:            e.Result.PredictedLabel,
		Confidence:       e.Result.Confidence,
		Method:           e.Result.Method,
		ExtractionMethod: string(e.Result.ExtractionMethod),
		Degraded:         e.Result.Degraded(),
		Cached:           e.Cached,
		LatencyMs:        e.Duration.Milliseconds(),
	}
}

// Summary aggregates the stored classifications.
type Summary struct {
	Total             int64            `json:"total_classifications"`
	AverageConfidence float64          `json:"average_confidence"`
	Distribution      map[string]int64 `json:"style_distribution"`
	ByMethod          map[string]int64 `json:"by_method"`
	Degraded          int64            `json:"degraded"`
	Recent            []Record         `json:"recent_classifications"`
}

// Store is a SQLite-backed classification log. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate history schema")
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores r.
func (s *Store) Add(ctx context.Context, r Record) error {
	if r.ID == "" {
		return errors.New("history: record without id")
	}
	if r.Label == "" {
		return errors.New("history: record without label")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.Errorf("history: confidence %v out of range", r.Confidence)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classifications (
			id, created_at, filename, strategy, label, confidence,
			method, extraction_method, degraded, cached, latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.Filename, r.Strategy, r.Label, r.Confidence,
		r.Method, r.ExtractionMethod, r.Degraded, r.Cached, r.LatencyMs,
	)
	if err != nil {
		return errors.Wrapf(err, "insert classification %s", r.ID)
	}
	s.logger.Debug("artstyle: classification recorded", "id", r.ID, "label", r.Label, "method", r.Method)
	return nil
}

// Hook returns an OnClassification callback that stores every event. Storage
// errors are logged, never propagated to the classification.
func (s *Store) Hook() func(artstyle.ClassificationEvent) {
	return func(e artstyle.ClassificationEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Add(ctx, FromEvent(e)); err != nil {
			s.logger.Warn("artstyle: record classification failed", "id", e.ID, "error", err.Error())
		}
	}
}

// Summary aggregates every stored classification and lists the newest
// records, at most recent of them. recent <= 0 means DefaultRecent.
func (s *Store) Summary(ctx context.Context, recent int) (*Summary, error) {
	if recent <= 0 {
		recent = DefaultRecent
	}
	sum := &Summary{
		Distribution: make(map[string]int64),
		ByMethod:     make(map[string]int64),
		Recent:       []Record{},
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence), 0), COALESCE(SUM(degraded), 0)
		FROM classifications`).Scan(&sum.Total, &sum.AverageConfidence, &sum.Degraded)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate classifications")
	}

	if err := s.countBy(ctx, "label", sum.Distribution); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "method", sum.ByMethod); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, filename, strategy, label, confidence,
			method, extraction_method, degraded, cached, latency_ms
		FROM classifications
		ORDER BY created_at DESC, id
		LIMIT ?`, recent)
	if err != nil {
		return nil, errors.Wrap(err, "query recent classifications")
	}
	defer rows.Close()

	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.ID, &created, &r.Filename, &r.Strategy, &r.Label, &r.Confidence,
			&r.Method, &r.ExtractionMethod, &r.Degraded, &r.Cached, &r.LatencyMs); err != nil {
			return nil, errors.Wrap(err, "scan classification")
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		sum.Recent = append(sum.Recent, r)
	}
	return sum, errors.Wrap(rows.Err(), "iterate classifications")
}

// countBy fills out with row counts grouped by column, which must be a
// trusted column name.
func (s *Store) countBy(ctx context.Context, column string, out map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM classifications GROUP BY `+column)
	if err != nil {
		return errors.Wrapf(err, "group classifications by %s", column)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return errors.Wrap(err, "scan group")
		}
		out[key] = n
	}
	return errors.Wrap(rows.Err(), "iterate groups")
}
