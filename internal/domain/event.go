package domain

import "time"

// EventType names a committed lifecycle transition.
type EventType string

const (
	EventBoardInitialized EventType = "board.initialized"
	EventTaskCreated      EventType = "task.created"
	EventTaskClaimed      EventType = "task.claimed"
	EventTaskCompleted    EventType = "task.completed"
	EventTaskApproved     EventType = "task.approved"
	EventTaskRejected     EventType = "task.rejected"
)

// TaskEvent is published after a handler commits.
type TaskEvent struct {
	ID        string     `json:"id"`
	Type      EventType  `json:"type"`
	Board     Address    `json:"board"`
	Task      Address    `json:"task,omitempty"`
	TaskID    uint64     `json:"task_id"`
	Actor     Identity   `json:"actor"`
	Status    TaskStatus `json:"status,omitempty"`
	Amount    uint64     `json:"amount,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
