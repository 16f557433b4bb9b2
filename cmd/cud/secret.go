package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-usage-dashboard/internal/services/secret"
)

func secretCmd() *cobra.Command {
	var copyIt bool

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print the gateway secret, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDataDir(); err != nil {
				return fmt.Errorf("no data directory for the secret file: %w", err)
			}
			if cfg.SecretPath == "" {
				return errors.New("secret path not configured")
			}

			sec, err := secret.LoadOrCreate(cfg.SecretPath)
			if err != nil {
				return err
			}

			if copyIt {
				if err := clipboard.WriteAll(sec); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Copied gateway secret to clipboard")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), sec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyIt, "copy", false, "copy the secret to the clipboard instead of printing it")
	return cmd
}
