// Package domain holds the bounty board types.
// A Task is a single escrowed bounty that flows through
// create → claim → submit → approve | reject.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Field bounds, measured in bytes.
const (
	TitleMaxLen       = 100
	DescriptionMaxLen = 500
	ProofMaxLen       = 500
)

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "CREATED"
	TaskClaimed   TaskStatus = "CLAIMED"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskApproved  TaskStatus = "APPROVED"
	TaskRejected  TaskStatus = "REJECTED"
)

// AllTaskStatuses lists every status in lifecycle order.
var AllTaskStatuses = []TaskStatus{TaskCreated, TaskClaimed, TaskCompleted, TaskApproved, TaskRejected}

// transitions is the complete forward-only lifecycle graph.
var transitions = map[TaskStatus][]TaskStatus{
	TaskCreated:   {TaskClaimed},
	TaskClaimed:   {TaskCompleted},
	TaskCompleted: {TaskApproved, TaskRejected},
}

// ParseTaskStatus accepts a status name in any case ("created", "CLAIMED").
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the five lifecycle states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskCreated, TaskClaimed, TaskCompleted, TaskApproved, TaskRejected:
		return true
	}
	return false
}

// IsTerminal returns true once the escrow has been disbursed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskApproved || s == TaskRejected
}

// HoldsEscrow returns true while the bounty is still locked in the task.
func (s TaskStatus) HoldsEscrow() bool {
	return s == TaskCreated || s == TaskClaimed || s == TaskCompleted
}

// CanTransition reports whether from → to is an edge of the lifecycle graph.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ─── Claimer ────────────────────────────────────────────────────────────────

// Claimer is either Unclaimed or ClaimedBy(identity). The zero value is
// Unclaimed. Once set it is never cleared: there is no setter.
type Claimer struct {
	id  Identity
	set bool
}

// Unclaimed returns the empty claimer.
func Unclaimed() Claimer { return Claimer{} }

// ClaimedBy returns a claimer bound to id.
func ClaimedBy(id Identity) Claimer { return Claimer{id: id, set: true} }

// Get returns the claimer identity and whether one is set.
func (c Claimer) Get() (Identity, bool) { return c.id, c.set }

// IsSet reports whether the task has been claimed.
func (c Claimer) IsSet() bool { return c.set }

// Is reports whether the claimer is set and equal to id.
func (c Claimer) Is(id Identity) bool { return c.set && c.id == id }

// String returns the identity or "" when unclaimed.
func (c Claimer) String() string { return string(c.id) }

// MarshalJSON renders an unclaimed task as null.
func (c Claimer) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte("null"), nil
	}
	return json.Marshal(string(c.id))
}

// UnmarshalJSON accepts null or an identity string.
func (c *Claimer) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*c = Unclaimed()
		return nil
	}
	*c = ClaimedBy(Identity(*s))
	return nil
}

// ─── Task ───────────────────────────────────────────────────────────────────

// Task is one posted bounty, stored at TaskAddress(Board, TaskID).
type Task struct {
	Address      Address    `json:"address"`
	Board        Address    `json:"board"`
	TaskID       uint64     `json:"task_id"`
	Creator      Identity   `json:"creator"`
	Claimer      Claimer    `json:"claimer"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	BountyAmount uint64     `json:"bounty_amount"`
	Status       TaskStatus `json:"status"`
	Proof        string     `json:"proof"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsTerminal returns true if the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// CheckInvariants verifies the record-level invariants of a stored task.
func (t *Task) CheckInvariants() error {
	if t.BountyAmount == 0 {
		return fmt.Errorf("task %d: %w", t.TaskID, ErrInvalidBountyAmount)
	}
	if len(t.Title) > TitleMaxLen {
		return fmt.Errorf("task %d: %w", t.TaskID, ErrTitleTooLong)
	}
	if len(t.Description) > DescriptionMaxLen {
		return fmt.Errorf("task %d: %w", t.TaskID, ErrDescriptionTooLong)
	}
	if len(t.Proof) > ProofMaxLen {
		return fmt.Errorf("task %d: %w", t.TaskID, ErrProofTooLong)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %d: invalid status %q", t.TaskID, t.Status)
	}
	if t.Claimer.IsSet() != (t.Status != TaskCreated) {
		return fmt.Errorf("task %d: claimer set=%v inconsistent with status %s",
			t.TaskID, t.Claimer.IsSet(), t.Status)
	}
	return nil
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Board   Address
	Status  TaskStatus
	Creator Identity
	Claimer Identity
	Limit   int
}
