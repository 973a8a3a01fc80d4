package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/bounty/internal/daemon"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/security"
)

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite an existing keypair")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default from config)")
	rootCmd.AddCommand(keygenCmd, whoamiCmd, tokenCmd)
}

var (
	keygenForce bool
	tokenTTL    time.Duration
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the local Ed25519 identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := security.GenerateKeypair()
		if err != nil {
			return err
		}
		if err := security.SaveKeypair(daemon.BountyHome(), kp, keygenForce); err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "identity %s", kp.Identity())
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the local identity, its account and its board address",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := self()
		if err != nil {
			return err
		}
		id := kp.Identity()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Identity: %s\n", id)
		fmt.Fprintf(w, "Account:  %s\n", domain.AccountOf(id))
		fmt.Fprintf(w, "Board:    %s\n", security.BoardAddress(id))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := self()
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl <= 0 {
			cfg, err := daemon.LoadConfig()
			if err != nil {
				return err
			}
			ttl = cfg.TokenTTL()
		}
		tok, err := security.IssueToken(kp, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
