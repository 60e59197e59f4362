package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/taskpulse/internal/domain/model"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	memoryDSN        = ":memory:"
	busyTimeoutMS    = 5000
	sqliteDriverName = "sqlite"
)

// SQLiteStore is a durable EventStore and SnapshotStore backed by SQLite.
type SQLiteStore struct {
	db *sql.DB

	// mu guards last, the highest timestamp handed out by this process.
	mu   sync.Mutex
	last time.Time

	now func() time.Time
}

var (
	_ EventStore    = (*SQLiteStore)(nil)
	_ SnapshotStore = (*SQLiteStore)(nil)
)

// OpenSQLite opens (creating if needed) and migrates the database at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	dsn := path
	if path != memoryDSN {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMS)
	}
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, unavailable("open", err)
	}
	if path == memoryDSN {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping", err)
	}
	if err := newMigrationRunner(db).Run(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteStore{db: db, now: o.now}

	var lastMS sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(ts) FROM events").Scan(&lastMS); err != nil {
		_ = db.Close()
		return nil, unavailable("load last timestamp", err)
	}
	if lastMS.Valid {
		s.last = time.UnixMilli(lastMS.Int64).UTC()
	}
	return s, nil
}

// nextTimestamp returns the store clock truncated to milliseconds, never
// earlier than the previous one.
func (s *SQLiteStore) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC().Truncate(time.Millisecond)
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	return ts
}

// Append implements EventStore.
func (s *SQLiteStore) Append(ctx context.Context, e model.NewEvent) (model.Event, error) {
	start := time.Now()
	defer observe("append", start)

	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode metadata: %w", err)
	}
	var taskID sql.NullString
	if len(e.TaskID) > 0 {
		taskID = sql.NullString{String: string(e.TaskID), Valid: true}
	}

	stored := model.Event{
		ID:        uuid.NewString(),
		EventType: e.EventType,
		TaskID:    e.TaskID,
		Timestamp: s.nextTimestamp(),
		Metadata:  cloneMetadata(meta),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, task_id, ts, metadata) VALUES (?, ?, ?, ?, ?)`,
		stored.ID, stored.EventType, taskID, stored.Timestamp.UnixMilli(), string(metaJSON),
	); err != nil {
		return model.Event{}, unavailable("append", err)
	}
	return stored, nil
}

// CountByType implements EventStore.
func (s *SQLiteStore) CountByType(ctx context.Context, eventType string) (int64, error) {
	start := time.Now()
	defer observe("count_by_type", start)

	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE event_type = ?`, eventType,
	).Scan(&n); err != nil {
		return 0, unavailable("count by type", err)
	}
	return n, nil
}

// CountsByType implements EventStore.
func (s *SQLiteStore) CountsByType(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	defer observe("counts_by_type", start)

	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, unavailable("counts by type", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			t string
			n int64
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, unavailable("scan counts", err)
		}
		out[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("counts by type", err)
	}
	return out, nil
}

// QueryRange implements EventStore.
func (s *SQLiteStore) QueryRange(ctx context.Context, from time.Time, types []string) ([]model.Event, error) {
	start := time.Now()
	defer observe("query_range", start)

	q := `SELECT id, event_type, task_id, ts, metadata FROM events WHERE ts >= ?`
	args := []any{from.UnixMilli()}
	if len(types) > 0 {
		q += ` AND event_type IN (?` + strings.Repeat(`, ?`, len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	q += ` ORDER BY ts ASC, seq ASC`
	return s.queryEvents(ctx, "query range", q, args...)
}

// ListRecent implements EventStore.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]model.Event, error) {
	start := time.Now()
	defer observe("list_recent", start)

	if limit <= 0 {
		return []model.Event{}, nil
	}
	return s.queryEvents(ctx, "list recent",
		`SELECT id, event_type, task_id, ts, metadata FROM events ORDER BY ts DESC, seq DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, op, q string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var (
			e        model.Event
			taskID   sql.NullString
			tsMS     int64
			metaJSON string
		)
		if err := rows.Scan(&e.ID, &e.EventType, &taskID, &tsMS, &metaJSON); err != nil {
			return nil, unavailable(op, err)
		}
		if taskID.Valid {
			e.TaskID = json.RawMessage(taskID.String)
		}
		e.Timestamp = time.UnixMilli(tsMS).UTC()
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// PurgeAll implements EventStore. Snapshots are left untouched.
func (s *SQLiteStore) PurgeAll(ctx context.Context) (int64, error) {
	start := time.Now()
	defer observe("purge_all", start)

	res, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return n, nil
}

// Ping implements EventStore.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return unavailable("ping", s.db.PingContext(ctx))
}

// Upsert implements SnapshotStore.
func (s *SQLiteStore) Upsert(ctx context.Context, date string, snap model.Snapshot) error {
	start := time.Now()
	defer observe("snapshot_upsert", start)

	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (date, total_tasks, completed_tasks, incomplete_tasks, deleted_tasks, completion_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_tasks      = excluded.total_tasks,
			completed_tasks  = excluded.completed_tasks,
			incomplete_tasks = excluded.incomplete_tasks,
			deleted_tasks    = excluded.deleted_tasks,
			completion_rate  = excluded.completion_rate,
			updated_at       = excluded.updated_at`,
		date, snap.TotalTasks, snap.CompletedTasks, snap.IncompleteTasks, snap.DeletedTasks,
		snap.CompletionRate, updated.UnixMilli(),
	)
	return unavailable("snapshot upsert", err)
}

const selectSnapshot = `SELECT date, total_tasks, completed_tasks, incomplete_tasks, deleted_tasks, completion_rate, updated_at FROM snapshots`

// Get implements SnapshotStore.
func (s *SQLiteStore) Get(ctx context.Context, date string) (model.Snapshot, bool, error) {
	snaps, err := s.querySnapshots(ctx, selectSnapshot+` WHERE date = ?`, date)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	if len(snaps) == 0 {
		return model.Snapshot{}, false, nil
	}
	return snaps[0], true, nil
}

// List implements SnapshotStore.
func (s *SQLiteStore) List(ctx context.Context, from, to string) ([]model.Snapshot, error) {
	q := selectSnapshot + ` WHERE 1 = 1`
	var args []any
	if from != "" {
		q += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		q += ` AND date <= ?`
		args = append(args, to)
	}
	return s.querySnapshots(ctx, q+` ORDER BY date ASC`, args...)
}

func (s *SQLiteStore) querySnapshots(ctx context.Context, q string, args ...any) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("snapshot query", err)
	}
	defer rows.Close()

	out := []model.Snapshot{}
	for rows.Next() {
		var (
			snap      model.Snapshot
			updatedMS int64
		)
		if err := rows.Scan(&snap.Date, &snap.TotalTasks, &snap.CompletedTasks, &snap.IncompleteTasks,
			&snap.DeletedTasks, &snap.CompletionRate, &updatedMS); err != nil {
			return nil, unavailable("snapshot scan", err)
		}
		snap.UpdatedAt = time.UnixMilli(updatedMS).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("snapshot query", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
