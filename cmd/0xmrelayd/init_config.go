package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chids04/0xm-relay/config"
)

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := resolveHome(cmd)
			if err != nil {
				return err
			}
			if err := config.Save(config.DefaultConfig(home), home); err != nil {
				return err
			}
			fmt.Printf("wrote default config under %s\n", home)
			fmt.Println("fill in the contract addresses, then set RELAY_ADMIN_KEY and VAULT_PASSPHRASE in the environment")
			return nil
		},
	}
}
