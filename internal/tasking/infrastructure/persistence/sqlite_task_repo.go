package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
)

// sqliteTimeFormat is RFC3339 with fixed-width nanoseconds so stored UTC
// timestamps compare correctly as strings.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteTaskRepository implements task.Repository using SQLite. UUIDs are
// stored as TEXT and timestamps as RFC3339 strings.
type SQLiteTaskRepository struct {
	conn database.Connection
}

// NewSQLiteTaskRepository creates a new SQLite task repository.
func NewSQLiteTaskRepository(conn database.Connection) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{conn: conn}
}

// Save persists the task row and any new comments, guarded by the version
// column against concurrent writes.
func (r *SQLiteTaskRepository) Save(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (
			id, created_by, assigned_to, title, description, status, priority,
			due_date, completed_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			assigned_to = excluded.assigned_to,
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			version = tasks.version + 1,
			updated_at = excluded.updated_at
		WHERE tasks.version = ?
		RETURNING version
	`

	now := time.Now().UTC()
	var newVersion int
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query,
		t.ID().String(),
		t.CreatedBy().String(),
		uuidToNullable(t.AssignedTo()),
		t.Title(),
		t.Description(),
		t.Status().String(),
		t.Priority().String(),
		timeToNullable(t.DueDate()),
		timeToNullable(t.CompletedAt()),
		t.Version(),
		t.CreatedAt().UTC().Format(sqliteTimeFormat),
		now.Format(sqliteTimeFormat),
		t.Version(),
	).Scan(&newVersion)

	if err != nil {
		if database.IsNoRows(err) {
			return ErrOptimisticLocking
		}
		return err
	}
	t.SetVersion(newVersion)

	exec = database.ExecutorFromContext(ctx, r.conn)
	for _, c := range t.Comments() {
		_, err := exec.Exec(ctx, `
			INSERT INTO task_comments (id, task_id, author_id, body, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`, c.ID.String(), t.ID().String(), c.AuthorID.String(), c.Body,
			c.CreatedAt.UTC().Format(sqliteTimeFormat))
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByID retrieves a task with its read markers and comments.
func (r *SQLiteTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	exec := database.ExecutorFromContext(ctx, r.conn)
	row, err := scanSQLiteTaskRow(exec.QueryRow(ctx, query, id.String()))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}

	readBy, err := r.loadReadMarkers(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := r.loadComments(ctx, id)
	if err != nil {
		return nil, err
	}

	return rowToTask(*row, readBy, comments)
}

func (r *SQLiteTaskRepository) loadReadMarkers(ctx context.Context, taskID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `SELECT user_id, read_at FROM task_reads WHERE task_id = ?`, taskID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readBy := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var userIDStr, readAtStr string
		if err := rows.Scan(&userIDStr, &readAtStr); err != nil {
			return nil, err
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			return nil, err
		}
		readAt, err := time.Parse(time.RFC3339Nano, readAtStr)
		if err != nil {
			return nil, err
		}
		readBy[userID] = readAt
	}
	return readBy, rows.Err()
}

func (r *SQLiteTaskRepository) loadComments(ctx context.Context, taskID uuid.UUID) ([]task.Comment, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, author_id, body, created_at
		FROM task_comments
		WHERE task_id = ?
		ORDER BY created_at
	`, taskID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []task.Comment
	for rows.Next() {
		var idStr, authorStr, body, createdStr string
		if err := rows.Scan(&idStr, &authorStr, &body, &createdStr); err != nil {
			return nil, err
		}
		c := task.Comment{Body: body}
		if c.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if c.AuthorID, err = uuid.Parse(authorStr); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// FindByAssignee lists tasks assigned to a user, most urgent first.
func (r *SQLiteTaskRepository) FindByAssignee(ctx context.Context, userID uuid.UUID, filter task.ListFilter) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ?`
	args := []any{userID.String()}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, filter.Priority)
	}

	query += `
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 1
				WHEN 'high' THEN 2
				WHEN 'medium' THEN 3
				ELSE 4
			END,
			due_date IS NULL,
			due_date,
			created_at
	`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return r.queryTasks(ctx, query, args...)
}

// FindOverdue returns open tasks whose due date is strictly before now.
func (r *SQLiteTaskRepository) FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = ?
		  AND status IN ('pending', 'in_progress')
		  AND due_date IS NOT NULL
		  AND due_date < ?
		ORDER BY due_date
	`
	return r.queryTasks(ctx, query, userID.String(), now.UTC().Format(sqliteTimeFormat))
}

// FindDueSoon returns open tasks due between now and now+window inclusive.
func (r *SQLiteTaskRepository) FindDueSoon(ctx context.Context, userID uuid.UUID, now time.Time, window time.Duration) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = ?
		  AND status IN ('pending', 'in_progress')
		  AND due_date IS NOT NULL
		  AND due_date >= ?
		  AND due_date <= ?
		ORDER BY due_date
	`
	return r.queryTasks(ctx, query, userID.String(),
		now.UTC().Format(sqliteTimeFormat),
		now.Add(window).UTC().Format(sqliteTimeFormat))
}

// FindUrgent returns open urgent-priority tasks for the user.
func (r *SQLiteTaskRepository) FindUrgent(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = ?
		  AND status IN ('pending', 'in_progress')
		  AND priority = 'urgent'
		ORDER BY due_date IS NULL, due_date, created_at
	`
	return r.queryTasks(ctx, query, userID.String())
}

// FindUnread returns recently assigned tasks without a read marker for the
// user.
func (r *SQLiteTaskRepository) FindUnread(ctx context.Context, userID uuid.UUID, since time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = ?
		  AND created_at >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM task_reads
			WHERE task_reads.task_id = tasks.id AND task_reads.user_id = ?
		  )
		ORDER BY created_at DESC
	`
	return r.queryTasks(ctx, query, userID.String(),
		since.UTC().Format(sqliteTimeFormat), userID.String())
}

// MarkRead inserts a read marker. Duplicate marks keep the first
// timestamp.
func (r *SQLiteTaskRepository) MarkRead(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO task_reads (task_id, user_id, read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (task_id, user_id) DO NOTHING
	`, taskID.String(), userID.String(), at.UTC().Format(sqliteTimeFormat))
	return err
}

// Delete removes a task. Markers and comments cascade.
func (r *SQLiteTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (r *SQLiteTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		row, err := scanSQLiteTaskRow(rows)
		if err != nil {
			return nil, err
		}
		t, err := rowToTask(*row, nil, nil)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTaskRow(s scanner) (*taskRow, error) {
	var (
		row                      taskRow
		idStr, createdByStr      string
		assignedToStr            *string
		dueDateStr, completedStr *string
		createdStr, updatedStr   string
	)

	err := s.Scan(
		&idStr,
		&createdByStr,
		&assignedToStr,
		&row.Title,
		&row.Description,
		&row.Status,
		&row.Priority,
		&dueDateStr,
		&completedStr,
		&row.Version,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		return nil, err
	}

	if row.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid task id in database: %w", err)
	}
	if row.CreatedBy, err = uuid.Parse(createdByStr); err != nil {
		return nil, fmt.Errorf("invalid created_by in database: %w", err)
	}
	if assignedToStr != nil {
		assignedTo, err := uuid.Parse(*assignedToStr)
		if err != nil {
			return nil, fmt.Errorf("invalid assigned_to in database: %w", err)
		}
		row.AssignedTo = &assignedTo
	}
	if row.DueDate, err = parseNullableRFC3339(dueDateStr); err != nil {
		return nil, err
	}
	if row.CompletedAt, err = parseNullableRFC3339(completedStr); err != nil {
		return nil, err
	}
	if row.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return nil, err
	}
	if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return nil, err
	}

	return &row, nil
}

func uuidToNullable(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func timeToNullable(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(sqliteTimeFormat)
	return &s
}

func parseNullableRFC3339(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ task.Repository = (*SQLiteTaskRepository)(nil)
