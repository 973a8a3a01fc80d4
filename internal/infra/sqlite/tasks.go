package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tutu-network/bounty/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `address, board, task_id, creator, claimer, title, description,
	bounty_amount, status, proof, created_at, updated_at`

// InsertTask allocates a task record at t.Address. Fails if the address or
// the (board, task_id) pair is already taken.
func (tx *Tx) InsertTask(ctx context.Context, t domain.Task) error {
	claimer, _ := t.Claimer.Get()
	res, err := tx.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		string(t.Address), string(t.Board), int64(t.TaskID), string(t.Creator),
		nullStr(string(claimer)), t.Title, t.Description, int64(t.BountyAmount),
		string(t.Status), t.Proof, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("insert task: address %s already allocated", t.Address)
	}
	return nil
}

// GetTask retrieves a task by address. Returns (nil, nil) when absent.
func (tx *Tx) GetTask(ctx context.Context, addr domain.Address) (*domain.Task, error) {
	row := tx.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE address = ?`, string(addr))
	return scanTask(row)
}

// GetTaskByID retrieves task number id on board. Returns (nil, nil) when absent.
func (tx *Tx) GetTaskByID(ctx context.Context, board domain.Address, id uint64) (*domain.Task, error) {
	row := tx.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE board = ? AND task_id = ?`,
		string(board), int64(id))
	return scanTask(row)
}

// ListTasks returns tasks matching filter, newest task id first per board.
func (tx *Tx) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	var where []string
	var args []any
	if f.Board != "" {
		where = append(where, "board = ?")
		args = append(args, string(f.Board))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Creator != "" {
		where = append(where, "creator = ?")
		args = append(args, string(f.Creator))
	}
	if f.Claimer != "" {
		where = append(where, "claimer = ?")
		args = append(args, string(f.Claimer))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, task_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ClaimTask binds claimer and moves CREATED → CLAIMED. Reports false if the
// task was no longer CREATED, so exactly one concurrent claimer wins.
func (tx *Tx) ClaimTask(ctx context.Context, addr domain.Address, claimer domain.Identity) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		`UPDATE tasks SET claimer = ?, status = ?, updated_at = ?
		 WHERE address = ? AND status = ? AND claimer IS NULL`,
		string(claimer), string(domain.TaskClaimed), tx.now.Unix(),
		string(addr), string(domain.TaskCreated),
	)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SubmitProof records proof and moves CLAIMED → COMPLETED, only for the
// stored claimer. Reports false if the guard did not match.
func (tx *Tx) SubmitProof(ctx context.Context, addr domain.Address, claimer domain.Identity, proof string) (bool, error) {
	res, err := tx.q.ExecContext(ctx,
		`UPDATE tasks SET proof = ?, status = ?, updated_at = ?
		 WHERE address = ? AND status = ? AND claimer = ?`,
		proof, string(domain.TaskCompleted), tx.now.Unix(),
		string(addr), string(domain.TaskClaimed), string(claimer),
	)
	if err != nil {
		return false, fmt.Errorf("submit proof: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// TransitionTask is a compare-and-set on status. Reports false if the task
// was not in from.
func (tx *Tx) TransitionTask(ctx context.Context, addr domain.Address, from, to domain.TaskStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("transition %s → %s is not allowed", from, to)
	}
	res, err := tx.q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE address = ? AND status = ?`,
		string(to), tx.now.Unix(), string(addr), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CountTasks returns the number of tasks per status.
func (tx *Tx) CountTasks(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var addr, board, creator, status string
	var claimer sql.NullString
	var taskID, amount, createdAt, updatedAt int64

	err := s.Scan(&addr, &board, &taskID, &creator, &claimer, &t.Title, &t.Description,
		&amount, &status, &t.Proof, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Address = domain.Address(addr)
	t.Board = domain.Address(board)
	t.TaskID = uint64(taskID)
	t.Creator = domain.Identity(creator)
	if claimer.Valid {
		t.Claimer = domain.ClaimedBy(domain.Identity(claimer.String))
	}
	t.BountyAmount = uint64(amount)
	t.Status = domain.TaskStatus(status)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}
