package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/go-tangra/go-tangra-sbom/internal/collector"
	"github.com/go-tangra/go-tangra-sbom/internal/component"
)

// SnapshotRecord summarizes one stored run.
type SnapshotRecord struct {
	RunID          uuid.UUID
	Hostname       string
	Platform       string
	Collector      string
	CollectedAt    time.Time
	StoredAt       time.Time
	ComponentCount int
}

// ListFilter holds optional query parameters for listing runs.
type ListFilter struct {
	Hostname        string
	CollectedAfter  *time.Time
	CollectedBefore *time.Time
	PageSize        int
	Page            int
}

// Store archives inventory snapshots in a SQLite file.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a snapshot and its components in one transaction and
// returns the stored_at time.
func (s *Store) Insert(ctx context.Context, snap *collector.Snapshot) (time.Time, error) {
	storedAt := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, hostname, platform, platform_version, kernel_version, collector, collected_at, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID.String(),
		snap.Hostname,
		snap.Platform,
		snap.PlatformVersion,
		snap.KernelVersion,
		snap.Collector,
		formatTime(snap.CollectedAt),
		formatTime(storedAt),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO components (run_id, seq, kind, name, component_id, version, path, modified, publishers, raw_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return time.Time{}, fmt.Errorf("prepare component insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range snap.Components {
		publishers, err := json.Marshal(c.Publishers)
		if err != nil {
			return time.Time{}, fmt.Errorf("marshal publishers of %s: %w", c.ID, err)
		}
		var raw sql.NullString
		if len(c.RawInfo) > 0 {
			raw = sql.NullString{String: string(c.RawInfo), Valid: true}
		}
		var modified string
		if !c.Modified.IsZero() {
			modified = formatTime(c.Modified)
		}

		if _, err := stmt.ExecContext(ctx,
			snap.RunID.String(), i, c.Kind.String(), c.Name, c.ID, c.Version, c.Path,
			modified, string(publishers), raw,
		); err != nil {
			return time.Time{}, fmt.Errorf("insert component %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit: %w", err)
	}
	return storedAt, nil
}

// Get retrieves a stored snapshot with its components in collection order.
func (s *Store) Get(ctx context.Context, runID uuid.UUID) (*collector.Snapshot, error) {
	var snap collector.Snapshot
	var id, collectedAt, storedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, hostname, platform, platform_version, kernel_version, collector, collected_at, stored_at
		 FROM snapshots WHERE run_id = ?`, runID.String()).
		Scan(&id, &snap.Hostname, &snap.Platform, &snap.PlatformVersion, &snap.KernelVersion, &snap.Collector, &collectedAt, &storedAt)
	if err != nil {
		return nil, err
	}
	snap.RunID = runID
	snap.CollectedAt = parseTime(collectedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, name, component_id, version, path, modified, publishers, raw_info
		 FROM components WHERE run_id = ? ORDER BY seq`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query components: %w", err)
	}
	defer rows.Close()

	snap.Components = []component.Component{}
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		snap.Components = append(snap.Components, c)
	}
	return &snap, rows.Err()
}

// List returns run summaries matching the given filter, newest first,
// along with the total number of matching runs.
func (s *Store) List(ctx context.Context, f ListFilter) ([]SnapshotRecord, int, error) {
	where, args := buildWhere(f)

	var total int
	countQuery := "SELECT COUNT(*) FROM snapshots s" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT s.run_id, s.hostname, s.platform, s.collector, s.collected_at, s.stored_at,
		(SELECT COUNT(*) FROM components c WHERE c.run_id = s.run_id)
		FROM snapshots s` + where + ` ORDER BY s.collected_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var id, collectedAt, storedAt string
		if err := rows.Scan(&id, &rec.Hostname, &rec.Platform, &rec.Collector, &collectedAt, &storedAt, &rec.ComponentCount); err != nil {
			return nil, 0, err
		}
		if rec.RunID, err = uuid.Parse(id); err != nil {
			return nil, 0, fmt.Errorf("run id %q: %w", id, err)
		}
		rec.CollectedAt = parseTime(collectedAt)
		rec.StoredAt = parseTime(storedAt)
		records = append(records, rec)
	}

	return records, total, rows.Err()
}

// Purge deletes runs collected before now minus olderThan.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return result.RowsAffected()
}

func buildWhere(f ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if f.Hostname != "" {
		conditions = append(conditions, "s.hostname = ?")
		args = append(args, f.Hostname)
	}
	if f.CollectedAfter != nil {
		conditions = append(conditions, "s.collected_at >= ?")
		args = append(args, formatTime(*f.CollectedAfter))
	}
	if f.CollectedBefore != nil {
		conditions = append(conditions, "s.collected_at <= ?")
		args = append(args, formatTime(*f.CollectedBefore))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	where := " WHERE "
	for i, c := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(row scanner) (component.Component, error) {
	var c component.Component
	var kind, modified, publishers string
	var raw sql.NullString
	if err := row.Scan(&kind, &c.Name, &c.ID, &c.Version, &c.Path, &modified, &publishers, &raw); err != nil {
		return c, err
	}

	if err := c.Kind.UnmarshalText([]byte(kind)); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(publishers), &c.Publishers); err != nil {
		return c, fmt.Errorf("publishers of %s: %w", c.ID, err)
	}
	if raw.Valid {
		c.RawInfo = json.RawMessage(raw.String)
	}
	c.Modified = parseTime(modified)
	return c, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// IsNotFound reports whether err means the requested run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
