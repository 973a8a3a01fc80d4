package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/bounty/internal/app/bounty"
	"github.com/tutu-network/bounty/internal/domain"
)

// ─── Boards ─────────────────────────────────────────────────────────────────

func (s *Server) handleInitializeBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.bounty.InitializeBoard(r.Context(), callerOf(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.bounty.ListBoards(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if boards == nil {
		boards = []domain.BountyBoard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.bounty.GetBoard(r.Context(), boardParam(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

type taskView struct {
	*domain.Task
	Escrow int64 `json:"escrow"`
}

type submitRequest struct {
	Proof string `json:"proof"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.TaskFilter{
		Board:   boardParam(r),
		Creator: domain.Identity(q.Get("creator")),
		Claimer: domain.Identity(q.Get("claimer")),
	}
	if v := q.Get("status"); v != "" {
		st, err := domain.ParseTaskStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		f.Status = st
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a non-negative integer")
		return
	}
	f.Limit = limit

	tasks, err := s.bounty.ListTasks(r.Context(), f)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in bounty.CreateTaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid request body: "+err.Error())
		return
	}
	t, err := s.bounty.CreateTask(r.Context(), callerOf(r), boardParam(r), in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	escrow, err := s.bounty.EscrowBalance(r.Context(), t.Address)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView{Task: t, Escrow: escrow})
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	s.respondTask(w)(s.bounty.ClaimTask(r.Context(), callerOf(r), t.Address))
}

func (s *Server) handleSubmitCompletion(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid request body: "+err.Error())
		return
	}
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	s.respondTask(w)(s.bounty.SubmitCompletion(r.Context(), callerOf(r), t.Address, req.Proof))
}

func (s *Server) handleApproveCompletion(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	s.respondTask(w)(s.bounty.ApproveCompletion(r.Context(), callerOf(r), t.Address))
}

func (s *Server) handleRejectCompletion(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	s.respondTask(w)(s.bounty.RejectCompletion(r.Context(), callerOf(r), t.Address))
}

// lookupTask resolves {board}/{id} to a stored task, writing the error
// response itself when it cannot.
func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*domain.Task, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "task id must be an unsigned integer")
		return nil, false
	}
	t, err := s.bounty.GetTaskByID(r.Context(), boardParam(r), id)
	if err != nil {
		s.writeDomainError(w, err)
		return nil, false
	}
	return t, true
}

func (s *Server) respondTask(w http.ResponseWriter) func(*domain.Task, error) {
	return func(t *domain.Task, err error) {
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func boardParam(r *http.Request) domain.Address {
	return domain.Address(chi.URLParam(r, "board"))
}

// ─── Accounts ───────────────────────────────────────────────────────────────

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr := domain.Address(chi.URLParam(r, "address"))
	bal, err := s.wallet.Balance(r.Context(), addr)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "balance": bal})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a non-negative integer")
		return
	}
	entries, err := s.wallet.History(r.Context(), domain.Address(chi.URLParam(r, "address")), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid request body: "+err.Error())
		return
	}
	caller := callerOf(r)
	bal, err := s.wallet.Deposit(r.Context(), caller, req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": domain.AccountOf(caller), "balance": bal})
}
