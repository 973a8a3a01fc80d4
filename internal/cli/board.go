package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutu-network/bounty/internal/domain"
)

func init() {
	boardCmd.AddCommand(boardInitCmd, boardShowCmd, boardListCmd)
	rootCmd.AddCommand(boardCmd)
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage bounty boards",
}

var boardInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the board owned by the local identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := self()
		if err != nil {
			return err
		}
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		b, err := d.Bounty.InitializeBoard(cmd.Context(), kp.Identity())
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "board %s", b.Address)
		return nil
	},
}

var boardShowCmd = &cobra.Command{
	Use:   "show [ADDRESS]",
	Short: "Show a board (default: your own)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var addr domain.Address
		if len(args) == 1 {
			addr = domain.Address(args[0])
		} else {
			kp, err := self()
			if err != nil {
				return err
			}
			addr = boardFlag("", kp.Identity())
		}

		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		b, err := d.Bounty.GetBoard(cmd.Context(), addr)
		if err != nil {
			return err
		}
		printBoard(cmd.OutOrStdout(), b)
		return nil
	},
}

var boardListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every board",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		boards, err := d.Bounty.ListBoards(cmd.Context())
		if err != nil {
			return err
		}
		if len(boards) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No boards. Create yours with 'bounty board init'.")
			return nil
		}
		return printBoards(cmd.OutOrStdout(), boards)
	},
}
