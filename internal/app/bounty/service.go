// Package bounty implements the task lifecycle handlers.
// Each handler is one store transaction: validation, at most one status
// change and at most one fund transfer either all commit or none do.
package bounty

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/bounty/internal/app/ledger"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/events"
	"github.com/tutu-network/bounty/internal/infra/metrics"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
	"github.com/tutu-network/bounty/internal/security"
)

// Service runs the lifecycle handlers against the store.
type Service struct {
	db     *sqlite.DB
	events domain.EventPublisher
	log    *slog.Logger
}

// NewService creates a bounty service. A nil publisher discards events.
func NewService(db *sqlite.DB, pub domain.EventPublisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, events: pub, log: log.With(slog.String("component", "bounty"))}
}

// CreateTaskInput carries the creator-supplied task fields.
type CreateTaskInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	BountyAmount uint64 `json:"bounty_amount"`
}

// Validate checks the field bounds in order: title, description, amount.
func (in CreateTaskInput) Validate() error {
	if len(in.Title) > domain.TitleMaxLen {
		return domain.ErrTitleTooLong
	}
	if len(in.Description) > domain.DescriptionMaxLen {
		return domain.ErrDescriptionTooLong
	}
	if in.BountyAmount == 0 {
		return domain.ErrInvalidBountyAmount
	}
	return nil
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// InitializeBoard creates the board owned by authority. A second call for
// the same authority fails with ErrBoardExists.
func (s *Service) InitializeBoard(ctx context.Context, authority domain.Identity) (*domain.BountyBoard, error) {
	if err := authority.Validate(); err != nil {
		return nil, s.fail("initialize_board", err)
	}

	var board domain.BountyBoard
	err := s.run(ctx, "initialize_board", func(tx *sqlite.Tx) (*domain.TaskEvent, error) {
		board = domain.BountyBoard{
			Address:   security.BoardAddress(authority),
			Authority: authority,
			CreatedAt: tx.Now(),
		}
		if err := tx.InsertBoard(ctx, board); err != nil {
			return nil, err
		}
		return &domain.TaskEvent{
			Type:  domain.EventBoardInitialized,
			Board: board.Address,
			Actor: authority,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// CreateTask posts a task on board and escrows in.BountyAmount from the
// creator's balance into it.
func (s *Service) CreateTask(ctx context.Context, creator domain.Identity, board domain.Address, in CreateTaskInput) (*domain.Task, error) {
	const op = "create_task"
	if err := creator.Validate(); err != nil {
		return nil, s.fail(op, err)
	}
	if err := in.Validate(); err != nil {
		return nil, s.fail(op, err)
	}
	if in.BountyAmount > math.MaxInt64 {
		return nil, s.fail(op, domain.ErrArithmeticOverflow)
	}

	var task domain.Task
	err := s.run(ctx, op, func(tx *sqlite.Tx) (*domain.TaskEvent, error) {
		b, err := tx.GetBoard(ctx, board)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, domain.ErrBoardNotFound
		}
		if b.TaskCount >= math.MaxInt64 || b.TotalBounties > math.MaxInt64-in.BountyAmount {
			return nil, domain.ErrArithmeticOverflow
		}

		task = domain.Task{
			Address:      security.TaskAddress(b.Address, b.TaskCount),
			Board:        b.Address,
			TaskID:       b.TaskCount,
			Creator:      creator,
			Claimer:      domain.Unclaimed(),
			Title:        in.Title,
			Description:  in.Description,
			BountyAmount: in.BountyAmount,
			Status:       domain.TaskCreated,
			CreatedAt:    tx.Now(),
			UpdatedAt:    tx.Now(),
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return nil, err
		}
		if err := tx.AdvanceBoard(ctx, b.Address, b.TaskCount, b.TotalBounties+in.BountyAmount); err != nil {
			return nil, err
		}
		err = ledger.Transfer(ctx, tx, domain.Transfer{
			From:        domain.AccountOf(creator),
			To:          task.Address,
			Amount:      in.BountyAmount,
			Type:        domain.TxEscrow,
			TaskAddress: task.Address,
			Description: "escrow for task " + task.Title,
		})
		if err != nil {
			return nil, err
		}
		return taskEvent(domain.EventTaskCreated, &task, creator, in.BountyAmount), nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ClaimTask binds claimer to a CREATED task. Any other status fails with
// a StatusError wrapping ErrTaskAlreadyClaimed.
func (s *Service) ClaimTask(ctx context.Context, claimer domain.Identity, addr domain.Address) (*domain.Task, error) {
	const op = "claim_task"
	if err := claimer.Validate(); err != nil {
		return nil, s.fail(op, err)
	}

	var task *domain.Task
	err := s.run(ctx, op, func(tx *sqlite.Tx) (*domain.TaskEvent, error) {
		t, err := loadTask(ctx, tx, addr)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskCreated {
			return nil, domain.NewStatusError(op, domain.ErrTaskAlreadyClaimed, domain.TaskCreated, t.Status)
		}
		ok, err := tx.ClaimTask(ctx, addr, claimer)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, casFailed(ctx, tx, op, domain.ErrTaskAlreadyClaimed, addr, domain.TaskCreated)
		}
		if task, err = loadTask(ctx, tx, addr); err != nil {
			return nil, err
		}
		return taskEvent(domain.EventTaskClaimed, task, claimer, 0), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// SubmitCompletion records proof for a CLAIMED task. Only the claimer may
// submit, and only once.
func (s *Service) SubmitCompletion(ctx context.Context, caller domain.Identity, addr domain.Address, proof string) (*domain.Task, error) {
	const op = "submit_completion"
	if err := caller.Validate(); err != nil {
		return nil, s.fail(op, err)
	}
	if len(proof) > domain.ProofMaxLen {
		return nil, s.fail(op, domain.ErrProofTooLong)
	}

	var task *domain.Task
	err := s.run(ctx, op, func(tx *sqlite.Tx) (*domain.TaskEvent, error) {
		t, err := loadTask(ctx, tx, addr)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.TaskClaimed {
			return nil, domain.NewStatusError(op, domain.ErrInvalidTaskStatus, domain.TaskClaimed, t.Status)
		}
		if !t.Claimer.Is(caller) {
			return nil, domain.ErrUnauthorized
		}
		ok, err := tx.SubmitProof(ctx, addr, caller, proof)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, casFailed(ctx, tx, op, domain.ErrInvalidTaskStatus, addr, domain.TaskClaimed)
		}
		if task, err = loadTask(ctx, tx, addr); err != nil {
			return nil, err
		}
		return taskEvent(domain.EventTaskCompleted, task, caller, 0), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ApproveCompletion pays the escrow to the claimer. The status moves to
// APPROVED in the same transaction as the payout, so a replay fails the
// status guard instead of paying twice.
func (s *Service) ApproveCompletion(ctx context.Context, caller domain.Identity, addr domain.Address) (*domain.Task, error) {
	return s.resolve(ctx, "approve_completion", caller, addr, domain.TaskApproved)
}

// RejectCompletion refunds the escrow to the creator.
func (s *Service) RejectCompletion(ctx context.Context, caller domain.Identity, addr domain.Address) (*domain.Task, error) {
	return s.resolve(ctx, "reject_completion", caller, addr, domain.TaskRejected)
}

// resolve disburses a COMPLETED task's escrow: to the claimer on
// APPROVED, back to the creator on REJECTED.
func (s *Service) resolve(ctx context.Context, op string, caller domain.Identity, addr domain.Address, to domain.TaskStatus) (*domain.Task, error) {
	if err := caller.Validate(); err != nil {
		return nil, s.fail(op, err)
	}

	var task *domain.Task
	err := s.run(ctx, op, func(tx *sqlite.Tx) (*domain.TaskEvent, error) {
		t, err := loadTask(ctx, tx, addr)
		if err != nil {
			return nil, err
		}
		if t.Creator != caller {
			return nil, domain.ErrUnauthorized
		}
		if t.Status != domain.TaskCompleted {
			return nil, domain.NewStatusError(op, domain.ErrInvalidTaskStatus, domain.TaskCompleted, t.Status)
		}

		xfer := domain.Transfer{
			From:        t.Address,
			Amount:      t.BountyAmount,
			TaskAddress: t.Address,
		}
		evType := domain.EventTaskRejected
		if to == domain.TaskApproved {
			claimer, ok := t.Claimer.Get()
			if !ok {
				return nil, domain.ErrUnauthorized
			}
			xfer.To, xfer.Type, xfer.Description = domain.AccountOf(claimer), domain.TxPayout, "bounty payout"
			evType = domain.EventTaskApproved
		} else {
			xfer.To, xfer.Type, xfer.Description = domain.AccountOf(t.Creator), domain.TxRefund, "bounty refund"
		}

		ok, err := tx.TransitionTask(ctx, addr, domain.TaskCompleted, to)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, casFailed(ctx, tx, op, domain.ErrInvalidTaskStatus, addr, domain.TaskCompleted)
		}
		if err := ledger.Transfer(ctx, tx, xfer); err != nil {
			return nil, err
		}
		if task, err = loadTask(ctx, tx, addr); err != nil {
			return nil, err
		}
		return taskEvent(evType, task, caller, t.BountyAmount), nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ─── Plumbing ───────────────────────────────────────────────────────────────

// run executes fn atomically, then records metrics and publishes the
// returned event once the transaction has committed.
func (s *Service) run(ctx context.Context, op string, fn func(tx *sqlite.Tx) (*domain.TaskEvent, error)) error {
	start := time.Now()
	var ev *domain.TaskEvent
	err := s.db.Atomic(ctx, func(tx *sqlite.Tx) error {
		var err error
		ev, err = fn(tx)
		if ev != nil {
			ev.Timestamp = tx.Now()
		}
		return err
	})
	metrics.HandlerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return s.fail(op, err)
	}

	ev.ID = uuid.NewString()
	record(ev)
	s.log.Info(string(ev.Type),
		slog.String("board", string(ev.Board)),
		slog.String("task", string(ev.Task)),
		slog.Uint64("task_id", ev.TaskID),
		slog.String("actor", ev.Actor.Short()),
	)
	if err := s.events.Publish(ctx, *ev); err != nil {
		s.log.Warn("event publish failed", slog.String("type", string(ev.Type)), slog.Any("error", err))
	}
	return nil
}

// fail counts and logs a rejected operation and returns err unchanged.
func (s *Service) fail(op string, err error) error {
	kind := domain.ErrorKind(err)
	metrics.HandlerErrors.WithLabelValues(op, kind).Inc()
	level := slog.LevelDebug
	if kind == "Internal" {
		level = slog.LevelError
	}
	s.log.Log(context.Background(), level, "operation rejected",
		slog.String("op", op), slog.String("kind", kind), slog.Any("error", err))
	return err
}

func record(ev *domain.TaskEvent) {
	switch ev.Type {
	case domain.EventBoardInitialized:
		metrics.BoardsInitialized.Inc()
		return
	case domain.EventTaskCreated:
		metrics.EscrowedTotal.Add(float64(ev.Amount))
	case domain.EventTaskApproved:
		metrics.DisbursedTotal.WithLabelValues("payout").Add(float64(ev.Amount))
	case domain.EventTaskRejected:
		metrics.DisbursedTotal.WithLabelValues("refund").Add(float64(ev.Amount))
	}
	metrics.TaskTransitions.WithLabelValues(string(ev.Status)).Inc()
}

func taskEvent(typ domain.EventType, t *domain.Task, actor domain.Identity, amount uint64) *domain.TaskEvent {
	return &domain.TaskEvent{
		Type:   typ,
		Board:  t.Board,
		Task:   t.Address,
		TaskID: t.TaskID,
		Actor:  actor,
		Status: t.Status,
		Amount: amount,
	}
}

func loadTask(ctx context.Context, tx *sqlite.Tx, addr domain.Address) (*domain.Task, error) {
	t, err := tx.GetTask(ctx, addr)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

// casFailed builds the StatusError for a conditional update that matched
// no row, reporting the status the task holds now.
func casFailed(ctx context.Context, tx *sqlite.Tx, op string, kind error, addr domain.Address, expected domain.TaskStatus) error {
	t, err := loadTask(ctx, tx, addr)
	if err != nil {
		return errors.Join(kind, err)
	}
	return domain.NewStatusError(op, kind, expected, t.Status)
}
