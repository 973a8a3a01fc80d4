package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tutu-network/bounty/internal/domain"
)

// ─── Board Repository ───────────────────────────────────────────────────────

// InsertBoard allocates a board record. The address is insert-if-absent:
// a second insert at the same address returns domain.ErrBoardExists.
func (tx *Tx) InsertBoard(ctx context.Context, b domain.BountyBoard) error {
	res, err := tx.q.ExecContext(ctx,
		`INSERT INTO boards (address, authority, task_count, total_bounties, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		string(b.Address), string(b.Authority), int64(b.TaskCount), int64(b.TotalBounties),
		b.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBoardExists
	}
	return nil
}

// GetBoard retrieves a board by address. Returns (nil, nil) when absent.
func (tx *Tx) GetBoard(ctx context.Context, addr domain.Address) (*domain.BountyBoard, error) {
	row := tx.q.QueryRowContext(ctx,
		`SELECT address, authority, task_count, total_bounties, created_at
		 FROM boards WHERE address = ?`, string(addr),
	)
	return scanBoard(row)
}

// AdvanceBoard bumps the task counter and lifetime bounty total. The update
// only applies if task_count still equals fromCount.
func (tx *Tx) AdvanceBoard(ctx context.Context, addr domain.Address, fromCount, totalBounties uint64) error {
	res, err := tx.q.ExecContext(ctx,
		`UPDATE boards SET task_count = ?, total_bounties = ?
		 WHERE address = ? AND task_count = ?`,
		int64(fromCount+1), int64(totalBounties), string(addr), int64(fromCount),
	)
	if err != nil {
		return fmt.Errorf("advance board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("advance board %s: task_count moved from %d", addr, fromCount)
	}
	return nil
}

// ListBoards returns every board ordered by creation.
func (tx *Tx) ListBoards(ctx context.Context) ([]domain.BountyBoard, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT address, authority, task_count, total_bounties, created_at
		 FROM boards ORDER BY created_at, address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []domain.BountyBoard
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

func scanBoard(s scanner) (*domain.BountyBoard, error) {
	var b domain.BountyBoard
	var addr, authority string
	var count, total, createdAt int64

	err := s.Scan(&addr, &authority, &count, &total, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan board: %w", err)
	}

	b.Address = domain.Address(addr)
	b.Authority = domain.Identity(authority)
	b.TaskCount = uint64(count)
	b.TotalBounties = uint64(total)
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}
