package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"patchwatch/internal/tracked"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("store: not found")

const entityColumns = `id, owner_id, title, current_version, last_known_version,
	active, check_frequency_seconds, status, last_checked, created_at, updated_at`

// CreateEntity inserts a new tracked entity and returns it with its id.
func (s *Store) CreateEntity(ctx context.Context, entity tracked.Entity) (*tracked.Entity, error) {
	title := strings.TrimSpace(entity.Title)
	if title == "" {
		return nil, errors.New("entity title must not be empty")
	}
	now := time.Now().UTC()
	status := entity.Status
	if !tracked.ValidStatus(status) {
		status = tracked.StatusActive
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (
			owner_id, title, current_version, last_known_version,
			active, check_frequency_seconds, status, last_checked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.OwnerID,
		title,
		entity.CurrentVersion,
		entity.LastKnownVersion,
		boolToInt(entity.Active),
		int64(entity.CheckFrequency/time.Second),
		string(status),
		formatTime(entity.LastChecked),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("entity insert id: %w", err)
	}
	return s.GetEntity(ctx, id)
}

// GetEntity loads an entity with its update history.
func (s *Store) GetEntity(ctx context.Context, id int64) (*tracked.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM entities WHERE id = ?", entityColumns), id)
	entity, err := scanEntity(row)
	if err != nil {
		return nil, err
	}
	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	entity.History = history
	return entity, nil
}

// EntityFilter narrows ListEntities results. Zero values are ignored.
// Staleness is not a filter here; tracked.Entity.Stale owns that rule.
type EntityFilter struct {
	OwnerID    string
	Status     tracked.Status
	ActiveOnly bool
}

// ListEntities returns entities matching the filter, oldest-checked first.
// The dynamic WHERE clause is built with squirrel so filters compose without
// string concatenation.
func (s *Store) ListEntities(ctx context.Context, filter EntityFilter) ([]tracked.Entity, error) {
	builder := sq.Select(entityColumns).
		From("entities").
		OrderBy("last_checked ASC, id ASC")

	if filter.OwnerID != "" {
		builder = builder.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.ActiveOnly {
		builder = builder.Where(sq.Eq{"active": 1})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entity query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []tracked.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// UpdateEntityFlags persists monitoring flags and status. It never touches
// version fields; those change only through CommitUpdate.
func (s *Store) UpdateEntityFlags(ctx context.Context, id int64, active bool, frequency time.Duration, status tracked.Status) error {
	if !tracked.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET active = ?, check_frequency_seconds = ?, status = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active),
		int64(frequency/time.Second),
		string(status),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update entity flags: %w", err)
	}
	return requireRow(res)
}

// MarkChecked records a completed sweep check. On failed checks callers skip
// this so the entity is retried next interval.
func (s *Store) MarkChecked(ctx context.Context, id int64, when time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET last_checked = ?, updated_at = ? WHERE id = ?`,
		formatTime(when.UTC()),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark checked: %w", err)
	}
	return requireRow(res)
}

// MarkStatus sets the entity status without touching any other field.
func (s *Store) MarkStatus(ctx context.Context, id int64, status tracked.Status) error {
	if !tracked.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark status: %w", err)
	}
	return requireRow(res)
}

// CommitUpdate applies a confirmed update in one transaction: append the
// history record, rotate last_known_version, set the new current version,
// and flip status to update-available.
func (s *Store) CommitUpdate(ctx context.Context, entityID int64, record tracked.UpdateRecord) error {
	newVersion := strings.TrimSpace(record.Version)
	if newVersion == "" {
		return errors.New("commit requires a version")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT current_version FROM entities WHERE id = ?", entityID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load current version: %w", err)
	}

	detectedAt := record.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO update_history (entity_id, version, detected_at, changelog, size_bytes, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entityID, newVersion, formatTime(detectedAt), record.Changelog, record.SizeBytes, record.Source,
	); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET last_known_version = ?, current_version = ?, status = ?, updated_at = ? WHERE id = ?`,
		current,
		newVersion,
		string(tracked.StatusUpdateAvailable),
		formatTime(time.Now().UTC()),
		entityID,
	); err != nil {
		return fmt.Errorf("rotate versions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, entityID int64) ([]tracked.UpdateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, detected_at, changelog, size_bytes, source
		 FROM update_history WHERE entity_id = ? ORDER BY detected_at ASC, id ASC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var history []tracked.UpdateRecord
	for rows.Next() {
		var record tracked.UpdateRecord
		var detectedAt string
		if err := rows.Scan(&record.Version, &detectedAt, &record.Changelog, &record.SizeBytes, &record.Source); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		record.DetectedAt = parseTime(detectedAt)
		history = append(history, record)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*tracked.Entity, error) {
	var entity tracked.Entity
	var active int
	var frequencySeconds int64
	var status, lastChecked, createdAt, updatedAt string

	err := row.Scan(
		&entity.ID,
		&entity.OwnerID,
		&entity.Title,
		&entity.CurrentVersion,
		&entity.LastKnownVersion,
		&active,
		&frequencySeconds,
		&status,
		&lastChecked,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}

	entity.Active = active != 0
	entity.CheckFrequency = time.Duration(frequencySeconds) * time.Second
	entity.Status = tracked.ParseStatus(status)
	entity.LastChecked = parseTime(lastChecked)
	entity.CreatedAt = parseTime(createdAt)
	entity.UpdatedAt = parseTime(updatedAt)
	return &entity, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
