package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tutu-network/bounty/internal/app/bounty"
	"github.com/tutu-network/bounty/internal/daemon"
	"github.com/tutu-network/bounty/internal/domain"
)

func init() {
	taskCmd.PersistentFlags().StringVar(&taskBoard, "board", "", "Board address (default: your own board)")

	taskCreateCmd.Flags().StringVar(&createTitle, "title", "", "Task title (max 100 bytes)")
	taskCreateCmd.Flags().StringVar(&createDescription, "description", "", "Task description (max 500 bytes)")
	taskCreateCmd.Flags().Uint64Var(&createAmount, "amount", 0, "Bounty amount to escrow")
	_ = taskCreateCmd.MarkFlagRequired("title")
	_ = taskCreateCmd.MarkFlagRequired("amount")

	taskListCmd.Flags().StringVar(&listStatus, "status", "", "Only tasks in this status")
	taskListCmd.Flags().BoolVar(&listMine, "mine", false, "Only tasks you posted")
	taskListCmd.Flags().BoolVar(&listClaimed, "claimed", false, "Only tasks you claimed")
	taskListCmd.Flags().BoolVar(&listAll, "all", false, "Tasks on every board")
	taskListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum tasks to show")

	taskCmd.AddCommand(taskCreateCmd, taskClaimCmd, taskSubmitCmd, taskApproveCmd,
		taskRejectCmd, taskShowCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

var (
	taskBoard string

	createTitle       string
	createDescription string
	createAmount      uint64

	listStatus  string
	listMine    bool
	listClaimed bool
	listAll     bool
	listLimit   int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Post, claim and resolve tasks",
}

// taskEnv is what every task subcommand needs: the daemon, the caller and
// the board it addresses.
type taskEnv struct {
	d      *daemon.Daemon
	caller domain.Identity
	board  domain.Address
}

func openTaskEnv() (*taskEnv, error) {
	kp, err := self()
	if err != nil {
		return nil, err
	}
	d, err := openDaemon()
	if err != nil {
		return nil, err
	}
	return &taskEnv{d: d, caller: kp.Identity(), board: boardFlag(taskBoard, kp.Identity())}, nil
}

// resolveTask maps a task id argument on the env's board to its address.
func (e *taskEnv) resolveTask(ctx context.Context, arg string) (*domain.Task, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("task id %q must be an unsigned integer", arg)
	}
	return e.d.Bounty.GetTaskByID(ctx, e.board, id)
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Post a task and escrow its bounty",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openTaskEnv()
		if err != nil {
			return err
		}
		defer e.d.Close()

		t, err := e.d.Bounty.CreateTask(cmd.Context(), e.caller, e.board, bounty.CreateTaskInput{
			Title:        createTitle,
			Description:  createDescription,
			BountyAmount: createAmount,
		})
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "task #%d created, %d escrowed", t.TaskID, t.BountyAmount)
		return nil
	},
}

// transitionCmd builds claim/approve/reject, which differ only in the
// handler they call.
func transitionCmd(use, short, verb string, fn func(s *bounty.Service, ctx context.Context, caller domain.Identity, addr domain.Address) (*domain.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openTaskEnv()
			if err != nil {
				return err
			}
			defer e.d.Close()

			t, err := e.resolveTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err = fn(e.d.Bounty, cmd.Context(), e.caller, t.Address)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "task #%d %s (%s)", t.TaskID, verb, t.Status)
			return nil
		},
	}
}

var taskClaimCmd = transitionCmd("claim", "Claim an open task", "claimed", (*bounty.Service).ClaimTask)

var taskApproveCmd = transitionCmd("approve", "Approve a submission and pay the claimer", "approved", (*bounty.Service).ApproveCompletion)

var taskRejectCmd = transitionCmd("reject", "Reject a submission and refund the escrow", "rejected", (*bounty.Service).RejectCompletion)

var taskSubmitCmd = &cobra.Command{
	Use:   "submit ID PROOF",
	Short: "Submit proof of completion for a claimed task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openTaskEnv()
		if err != nil {
			return err
		}
		defer e.d.Close()

		t, err := e.resolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		t, err = e.d.Bounty.SubmitCompletion(cmd.Context(), e.caller, t.Address, args[1])
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "task #%d submitted (%s)", t.TaskID, t.Status)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a task and its escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openTaskEnv()
		if err != nil {
			return err
		}
		defer e.d.Close()

		t, err := e.resolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		escrow, err := e.d.Bounty.EscrowBalance(cmd.Context(), t.Address)
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), t, escrow)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openTaskEnv()
		if err != nil {
			return err
		}
		defer e.d.Close()

		f := domain.TaskFilter{Limit: listLimit}
		if !listAll {
			f.Board = e.board
		}
		if listStatus != "" {
			if f.Status, err = domain.ParseTaskStatus(listStatus); err != nil {
				return err
			}
		}
		if listMine {
			f.Creator = e.caller
		}
		if listClaimed {
			f.Claimer = e.caller
		}

		tasks, err := e.d.Bounty.ListTasks(cmd.Context(), f)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks. Post one with 'bounty task create'.")
			return nil
		}
		return printTasks(cmd.OutOrStdout(), tasks)
	},
}
