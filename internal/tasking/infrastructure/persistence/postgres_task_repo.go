// Package persistence contains database-backed task repositories.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskpulse/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/task"
	"github.com/felixgeelhaar/taskpulse/internal/tasking/domain/value_objects"
)

// ErrOptimisticLocking is returned when a concurrent write wins.
var ErrOptimisticLocking = errors.New("optimistic locking conflict")

const taskColumns = `id, created_by, assigned_to, title, description, status, priority,
       due_date, completed_at, version, created_at, updated_at`

// PostgresTaskRepository implements task.Repository using PostgreSQL.
type PostgresTaskRepository struct {
	conn database.Connection
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository.
func NewPostgresTaskRepository(conn database.Connection) *PostgresTaskRepository {
	return &PostgresTaskRepository{conn: conn}
}

// taskRow represents a database row for tasks.
type taskRow struct {
	ID          uuid.UUID
	CreatedBy   uuid.UUID
	AssignedTo  *uuid.UUID
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	CompletedAt *time.Time
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Save persists the task row and any new comments, guarded by the version
// column against concurrent writes.
func (r *PostgresTaskRepository) Save(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (
			id, created_by, assigned_to, title, description, status, priority,
			due_date, completed_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			assigned_to = EXCLUDED.assigned_to,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			due_date = EXCLUDED.due_date,
			completed_at = EXCLUDED.completed_at,
			version = tasks.version + 1,
			updated_at = NOW()
		WHERE tasks.version = $10
		RETURNING version
	`

	var newVersion int
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query,
		t.ID(),
		t.CreatedBy(),
		t.AssignedTo(),
		t.Title(),
		t.Description(),
		t.Status().String(),
		t.Priority().String(),
		t.DueDate(),
		t.CompletedAt(),
		t.Version(),
		t.CreatedAt(),
		t.UpdatedAt(),
	).Scan(&newVersion)

	if err != nil {
		if database.IsNoRows(err) {
			return ErrOptimisticLocking
		}
		return err
	}
	t.SetVersion(newVersion)

	return r.saveComments(ctx, t)
}

func (r *PostgresTaskRepository) saveComments(ctx context.Context, t *task.Task) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	for _, c := range t.Comments() {
		_, err := exec.Exec(ctx, `
			INSERT INTO task_comments (id, task_id, author_id, body, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, t.ID(), c.AuthorID, c.Body, c.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// FindByID retrieves a task with its read markers and comments.
func (r *PostgresTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var row taskRow
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.CreatedBy,
		&row.AssignedTo,
		&row.Title,
		&row.Description,
		&row.Status,
		&row.Priority,
		&row.DueDate,
		&row.CompletedAt,
		&row.Version,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
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

	return rowToTask(row, readBy, comments)
}

func (r *PostgresTaskRepository) loadReadMarkers(ctx context.Context, taskID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `SELECT user_id, read_at FROM task_reads WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readBy := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var userID uuid.UUID
		var readAt time.Time
		if err := rows.Scan(&userID, &readAt); err != nil {
			return nil, err
		}
		readBy[userID] = readAt
	}
	return readBy, rows.Err()
}

func (r *PostgresTaskRepository) loadComments(ctx context.Context, taskID uuid.UUID) ([]task.Comment, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, `
		SELECT id, author_id, body, created_at
		FROM task_comments
		WHERE task_id = $1
		ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []task.Comment
	for rows.Next() {
		var c task.Comment
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// FindByAssignee lists tasks assigned to a user, most urgent first.
func (r *PostgresTaskRepository) FindByAssignee(ctx context.Context, userID uuid.UUID, filter task.ListFilter) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = $1`
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}

	query += `
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 1
				WHEN 'high' THEN 2
				WHEN 'medium' THEN 3
				ELSE 4
			END,
			due_date NULLS LAST,
			created_at
	`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.queryTasks(ctx, query, args...)
}

// FindOverdue returns open tasks whose due date is strictly before now.
func (r *PostgresTaskRepository) FindOverdue(ctx context.Context, userID uuid.UUID, now time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = $1
		  AND status IN ('pending', 'in_progress')
		  AND due_date IS NOT NULL
		  AND due_date < $2
		ORDER BY due_date
	`
	return r.queryTasks(ctx, query, userID, now)
}

// FindDueSoon returns open tasks due between now and now+window inclusive.
func (r *PostgresTaskRepository) FindDueSoon(ctx context.Context, userID uuid.UUID, now time.Time, window time.Duration) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = $1
		  AND status IN ('pending', 'in_progress')
		  AND due_date IS NOT NULL
		  AND due_date >= $2
		  AND due_date <= $3
		ORDER BY due_date
	`
	return r.queryTasks(ctx, query, userID, now, now.Add(window))
}

// FindUrgent returns open urgent-priority tasks for the user.
func (r *PostgresTaskRepository) FindUrgent(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE assigned_to = $1
		  AND status IN ('pending', 'in_progress')
		  AND priority = 'urgent'
		ORDER BY due_date NULLS LAST, created_at
	`
	return r.queryTasks(ctx, query, userID)
}

// FindUnread returns recently assigned tasks without a read marker for the
// user.
func (r *PostgresTaskRepository) FindUnread(ctx context.Context, userID uuid.UUID, since time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		WHERE t.assigned_to = $1
		  AND t.created_at >= $2
		  AND NOT EXISTS (
			SELECT 1 FROM task_reads r
			WHERE r.task_id = t.id AND r.user_id = $1
		  )
		ORDER BY t.created_at DESC
	`
	return r.queryTasks(ctx, query, userID, since)
}

// MarkRead inserts a read marker. Duplicate marks keep the first
// timestamp.
func (r *PostgresTaskRepository) MarkRead(ctx context.Context, taskID, userID uuid.UUID, at time.Time) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO task_reads (task_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, user_id) DO NOTHING
	`, taskID, userID, at)
	return err
}

// Delete removes a task. Markers and comments cascade.
func (r *PostgresTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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

func (r *PostgresTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var row taskRow
		err := rows.Scan(
			&row.ID,
			&row.CreatedBy,
			&row.AssignedTo,
			&row.Title,
			&row.Description,
			&row.Status,
			&row.Priority,
			&row.DueDate,
			&row.CompletedAt,
			&row.Version,
			&row.CreatedAt,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		t, err := rowToTask(row, nil, nil)
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

func rowToTask(row taskRow, readBy map[uuid.UUID]time.Time, comments []task.Comment) (*task.Task, error) {
	status, err := value_objects.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("invalid status in database: %w", err)
	}
	priority, err := value_objects.ParsePriority(row.Priority)
	if err != nil {
		return nil, fmt.Errorf("invalid priority in database: %w", err)
	}

	return task.Rehydrate(
		row.ID,
		row.CreatedBy,
		row.AssignedTo,
		row.Title,
		row.Description,
		status,
		priority,
		row.DueDate,
		row.CompletedAt,
		readBy,
		comments,
		row.Version,
		row.CreatedAt,
		row.UpdatedAt,
	), nil
}

var _ task.Repository = (*PostgresTaskRepository)(nil)
