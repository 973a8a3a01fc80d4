package domain

import "time"

// Seed tags for address derivation.
const (
	BoardSeed = "bounty_board"
	TaskSeed  = "task"
)

// BountyBoard is the registry of tasks owned by one authority.
// TaskCount is also the next task's sequence number. TotalBounties is a
// lifetime sum of posted bounties; it never decreases.
type BountyBoard struct {
	Address       Address   `json:"address"`
	Authority     Identity  `json:"authority"`
	TaskCount     uint64    `json:"task_count"`
	TotalBounties uint64    `json:"total_bounties"`
	CreatedAt     time.Time `json:"created_at"`
}
