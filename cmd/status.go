package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/crosschat/internal/config"
	"github.com/nextlevelbuilder/crosschat/internal/store"
)

// statusCmd prints a fleet-wide snapshot — the CLI counterpart of the
// in-Discord `status` slash command, both reading the same stores.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a snapshot of relay channels, partners, and whitelist size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			stores, closeStores, err := openStores(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeStores()

			ctx := context.Background()
			report, err := buildStatusReport(ctx, stores)
			if err != nil {
				return err
			}
			fmt.Print(report)
			return nil
		},
	}
}

// buildStatusReport is shared with internal/commands' `status` slash
// command handler so the two surfaces never drift.
func buildStatusReport(ctx context.Context, s *store.Stores) (string, error) {
	channels, err := s.Channels.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	partners, err := s.Partners.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list partners: %w", err)
	}
	whitelist, err := s.Whitelist.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list whitelist: %w", err)
	}

	return fmt.Sprintf(
		"active relay channels: %d\npartner servers: %d\nwhitelist entries: %d\n",
		len(channels), len(partners), len(whitelist),
	), nil
}
