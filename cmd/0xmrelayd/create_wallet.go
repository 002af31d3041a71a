package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chids04/0xm-relay/config"
	"github.com/chids04/0xm-relay/db"
	"github.com/chids04/0xm-relay/keyvault"
	"github.com/chids04/0xm-relay/logger"
)

func createWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-wallet [user-id]",
		Short: "Create (or show) the signing wallet for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := resolveHome(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if cfg.VaultPassphrase == "" {
				return fmt.Errorf("missing VAULT_PASSPHRASE in environment")
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
			database, err := db.OpenFileDB(filepath.Join(cfg.Home, "data"), cfg.DBFileName, true)
			if err != nil {
				return err
			}
			defer database.Close()

			vault, err := keyvault.New(database, cfg.VaultPassphrase, log)
			if err != nil {
				return err
			}
			wallet, err := vault.CreateWallet(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("user %s -> %s\n", wallet.UserID, wallet.Address)
			return nil
		},
	}
}
