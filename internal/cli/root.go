// Package cli implements the bounty command-line interface using Cobra.
// Commands run against the local store under $BOUNTY_HOME and act as the
// identity whose keys live in $BOUNTY_HOME/keys.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutu-network/bounty/internal/daemon"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/security"
)

var rootCmd = &cobra.Command{
	Use:   "bounty",
	Short: "Escrowed task bounties",
	Long: `bounty runs a bounty board: creators escrow funds into tasks, claimers
do the work and submit proof, and creators approve (pay the claimer) or
reject (refund themselves).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// openDaemon loads config and opens the local store.
func openDaemon() (*daemon.Daemon, error) {
	return daemon.New()
}

// self returns the local keypair, explaining how to create one if missing.
func self() (*security.Keypair, error) {
	kp, err := security.LoadKeypair(daemon.BountyHome())
	if errors.Is(err, security.ErrNoKeypair) {
		return nil, fmt.Errorf("no identity in %s: run 'bounty keygen' first", daemon.BountyHome())
	}
	return kp, err
}

// boardFlag resolves --board, defaulting to the caller's own board.
func boardFlag(value string, id domain.Identity) domain.Address {
	if value != "" {
		return domain.Address(value)
	}
	return security.BoardAddress(id)
}
