package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tutu-network/bounty/internal/domain"
)

func init() {
	walletHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
	walletCmd.AddCommand(walletBalanceCmd, walletDepositCmd, walletHistoryCmd, walletAuditCmd)
	rootCmd.AddCommand(walletCmd)
}

var historyLimit int

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Inspect and fund balances",
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance [ADDRESS]",
	Short: "Show a balance (default: your own account)",
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
			addr = domain.AccountOf(kp.Identity())
		}

		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		bal, err := d.Wallet.Balance(cmd.Context(), addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", bal)
		return nil
	},
}

var walletDepositCmd = &cobra.Command{
	Use:   "deposit AMOUNT",
	Short: "Mint test funds into your account from the faucet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("amount %q must be an unsigned integer", args[0])
		}
		kp, err := self()
		if err != nil {
			return err
		}
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		bal, err := d.Wallet.Deposit(cmd.Context(), kp.Identity(), amount)
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "deposited %d, balance %d", amount, bal)
		return nil
	},
}

var walletHistoryCmd = &cobra.Command{
	Use:   "history [ADDRESS]",
	Short: "Show ledger entries for an account (default: your own)",
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
			addr = domain.AccountOf(kp.Identity())
		}

		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		entries, err := d.Wallet.History(cmd.Context(), addr, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No ledger entries.")
			return nil
		}
		return printHistory(cmd.OutOrStdout(), entries)
	},
}

var walletAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check that the ledger balances and every escrow matches its task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		r, err := d.Wallet.Audit(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Debits:  %d\nCredits: %d\n", r.Debits, r.Credits)
		for _, m := range r.Mismatches {
			warn(w, "task %s (%s) escrow %d, bounty %d", m.Task, m.Status, m.Balance, m.Bounty)
		}
		if !r.Balanced() {
			return fmt.Errorf("ledger audit failed")
		}
		success(w, "ledger balanced")
		return nil
	},
}
