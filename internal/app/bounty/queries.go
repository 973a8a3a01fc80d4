package bounty

import (
	"context"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/metrics"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
	"github.com/tutu-network/bounty/internal/security"
)

// DefaultListLimit caps ListTasks when the filter sets no limit.
const DefaultListLimit = 100

// GetBoard returns the board at addr.
func (s *Service) GetBoard(ctx context.Context, addr domain.Address) (*domain.BountyBoard, error) {
	var b *domain.BountyBoard
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		b, err = tx.GetBoard(ctx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrBoardNotFound
	}
	return b, nil
}

// BoardOf returns the board owned by authority.
func (s *Service) BoardOf(ctx context.Context, authority domain.Identity) (*domain.BountyBoard, error) {
	return s.GetBoard(ctx, security.BoardAddress(authority))
}

// GetTask returns the task at addr.
func (s *Service) GetTask(ctx context.Context, addr domain.Address) (*domain.Task, error) {
	var t *domain.Task
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		t, err = loadTask(ctx, tx, addr)
		return err
	})
	return t, err
}

// GetTaskByID returns task number id on board.
func (s *Service) GetTaskByID(ctx context.Context, board domain.Address, id uint64) (*domain.Task, error) {
	var t *domain.Task
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		t, err = tx.GetTaskByID(ctx, board, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

// ListTasks returns tasks matching f, newest first.
func (s *Service) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	var tasks []domain.Task
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		tasks, err = tx.ListTasks(ctx, f)
		return err
	})
	return tasks, err
}

// EscrowBalance returns the funds currently locked in the task at addr.
func (s *Service) EscrowBalance(ctx context.Context, addr domain.Address) (int64, error) {
	var bal int64
	err := s.db.View(ctx, func(tx *sqlite.Tx) error {
		if _, err := loadTask(ctx, tx, addr); err != nil {
			return err
		}
		var err error
		bal, err = tx.Balance(ctx, addr)
		return err
	})
	return bal, err
}

// ListBoards returns every board, oldest first.
func (s *Service) ListBoards(ctx context.Context) ([]domain.BountyBoard, error) {
	var boards []domain.BountyBoard
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		boards, err = tx.ListBoards(ctx)
		return err
	})
	return boards, err
}

// TaskCounts returns the number of tasks in each status. Every status is
// present, zero if no task is in it.
func (s *Service) TaskCounts(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	var counts map[domain.TaskStatus]int64
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		counts, err = tx.CountTasks(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, st := range domain.AllTaskStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// RefreshTaskGauges publishes TaskCounts to the tasks-by-status gauge.
func (s *Service) RefreshTaskGauges(ctx context.Context) error {
	counts, err := s.TaskCounts(ctx)
	if err != nil {
		return err
	}
	for st, n := range counts {
		metrics.TasksByStatus.WithLabelValues(string(st)).Set(float64(n))
	}
	return nil
}
