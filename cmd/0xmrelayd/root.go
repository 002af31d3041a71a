package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	flagHome = "home"

	defaultHomeDir = ".0xmrelay"
)

// NewRootCmd builds the bare root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "0xmrelayd",
		Short: "Gasless transaction relay and milestone attestation daemon",
		Long: `0xmrelayd relays signed meta-transactions to the ledger on behalf of
users, pays their gas through an admin relay account, and keeps the
off-chain milestone index consistent with the ledger's event log.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String(flagHome, "", "home directory for config and data (default: ~/"+defaultHomeDir+")")
	return cmd
}

// InitRootCmd attaches the subcommands.
func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		initConfigCmd(),
		startCmd(),
		createWalletCmd(),
	)
}

func resolveHome(cmd *cobra.Command) (string, error) {
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil {
		return "", err
	}
	if home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, defaultHomeDir), nil
}
