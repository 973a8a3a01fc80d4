package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/tutu-network/bounty/internal/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

func success(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ "+format+"\n", a...)
}

func warn(w io.Writer, format string, a ...any) {
	yellow.Fprintf(w, "⚠️  "+format+"\n", a...)
}

// printError prints err with its kind; status mismatches also show the
// expected and actual status.
func printError(w io.Writer, err error) {
	kind := domain.ErrorKind(err)
	if kind == "Internal" {
		red.Fprintf(w, "Error: %v\n", err)
		return
	}
	red.Fprintf(w, "%s\n", kind)
	fmt.Fprintf(w, "  %v\n", err)
	var se *domain.StatusError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "  expected: %s\n  actual:   %s\n", se.Expected, se.Actual)
	}
}

func statusColor(s domain.TaskStatus) *color.Color {
	switch s {
	case domain.TaskCreated:
		return cyan
	case domain.TaskClaimed, domain.TaskCompleted:
		return yellow
	case domain.TaskApproved:
		return green
	default:
		return red
	}
}

func printBoard(w io.Writer, b *domain.BountyBoard) {
	fmt.Fprintf(w, "Address:        %s\n", b.Address)
	fmt.Fprintf(w, "Authority:      %s\n", b.Authority)
	fmt.Fprintf(w, "Tasks:          %d\n", b.TaskCount)
	fmt.Fprintf(w, "Total bounties: %d\n", b.TotalBounties)
	fmt.Fprintf(w, "Created:        %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printBoards(w io.Writer, boards []domain.BountyBoard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tAUTHORITY\tTASKS\tTOTAL BOUNTIES")
	for _, b := range boards {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", b.Address, b.Authority.Short(), b.TaskCount, b.TotalBounties)
	}
	return tw.Flush()
}

func printTask(w io.Writer, t *domain.Task, escrow int64) {
	claimer := "-"
	if id, ok := t.Claimer.Get(); ok {
		claimer = string(id)
	}
	fmt.Fprintf(w, "Task:        #%d\n", t.TaskID)
	fmt.Fprintf(w, "Address:     %s\n", t.Address)
	fmt.Fprintf(w, "Board:       %s\n", t.Board)
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "Status:      %s\n", statusColor(t.Status).Sprint(t.Status))
	fmt.Fprintf(w, "Bounty:      %d\n", t.BountyAmount)
	fmt.Fprintf(w, "Escrow:      %d\n", escrow)
	fmt.Fprintf(w, "Creator:     %s\n", t.Creator)
	fmt.Fprintf(w, "Claimer:     %s\n", claimer)
	if t.Proof != "" {
		fmt.Fprintf(w, "Proof:       %s\n", t.Proof)
	}
}

func printTasks(w io.Writer, tasks []domain.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBOUNTY\tCREATOR\tCLAIMER\tTITLE")
	for _, t := range tasks {
		claimer := "-"
		if id, ok := t.Claimer.Get(); ok {
			claimer = id.Short()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			t.TaskID, t.Status, t.BountyAmount, t.Creator.Short(), claimer, t.Title)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, entries []domain.LedgerEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tSIDE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04"), e.Type, e.EntryType, e.Amount, e.Balance, e.Description)
	}
	return tw.Flush()
}
